package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hireloop/screener/config"
	"github.com/hireloop/screener/internal/rag"
	srv "github.com/hireloop/screener/internal/server"
	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

func main() {
	var root = &cobra.Command{Use: "screener"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./config/config.json)")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("SCREENER_HTTP_ADDR")
			}
			return srv.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				if cfg, err := config.LoadConfig(configPath); err == nil {
					dsn = cfg.Storage.Postgres.DSN()
				}
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var ingest = &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Chunk, embed, and index knowledge documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[INGEST] ", log.LstdFlags)
			chunker := rag.NewChunker(cfg.Knowledge.SentencesPerChunk, cfg.Knowledge.OverlapSentences, cfg.Knowledge.MaxChunkRunes)
			indexer := rag.NewIndexer(llm, st, logger)

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				text, err := rag.ExtractText(f, path, cfg.Knowledge.MaxDocumentBytes)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				name := filepath.Base(path)
				docID, err := st.CreateKnowledgeDocument(ctx, name, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				chunks, err := chunker.Chunk(docID, name, text)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				report, err := indexer.IndexChunks(ctx, chunks)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				logger.Printf("%s: %d chunks indexed, %d failed", path, len(report.Indexed), len(report.Failed))
				for _, fail := range report.Failed {
					logger.Printf("%s: chunk %s: %s", path, fail.ChunkID, fail.Reason)
				}
			}
			return nil
		},
	}

	root.AddCommand(serve, migrate, ingest)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

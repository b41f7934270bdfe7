package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hireloop/screener/config"
	"github.com/hireloop/screener/internal/notify"
	"github.com/hireloop/screener/internal/rag"
	"github.com/hireloop/screener/internal/runtime"
	"github.com/hireloop/screener/internal/scoring"
	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

// Run wires every dependency and serves the API until the listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	scorer := scoring.NewScorer(llm, cfg.Screening.MaxResumeRunes, log.New(log.Writer(), "[SCREEN] ", log.LstdFlags))
	chunker := rag.NewChunker(cfg.Knowledge.SentencesPerChunk, cfg.Knowledge.OverlapSentences, cfg.Knowledge.MaxChunkRunes)
	indexer := rag.NewIndexer(llm, st, log.New(log.Writer(), "[INGEST] ", log.LstdFlags))
	generator := rag.NewGenerator(llm, st, cfg.Knowledge.SearchTopK, cfg.Knowledge.SearchThreshold, log.New(log.Writer(), "[QUESTIONS] ", log.LstdFlags))

	// Transition events go to Redis Streams when configured, otherwise to the
	// in-memory publisher. Decisions never wait on delivery either way.
	notifyLogger := log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)
	var publisher notify.Publisher = notify.NewMemoryPublisher(notifyLogger)
	if cfg.Storage.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		publisher = notify.NewStreamPublisher(rdb, cfg.Notify.Stream, cfg.Notify.MaxLen)
		consumer := notify.NewConsumer(rdb, cfg.Notify.Stream, cfg.Notify.ConsumerGroup, "screener-1", notify.LogSender{Logger: notifyLogger}, notifyLogger)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				notifyLogger.Printf("consumer stopped: %v", err)
			}
		}()
	}

	api := e.Group("/api")
	(&AuthHandler{Store: st, Secret: secret}).Register(api.Group("/auth"))

	recruiter := []echo.MiddlewareFunc{runtime.EchoAuthMiddleware(secret), runtime.RequireRole(runtime.RoleRecruiter)}

	me := api.Group("/me", runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"user_id": c.Get("user_id").(string)})
	})

	jobs := api.Group("/jobs", recruiter...)
	(&JobsHandler{Store: st}).Register(jobs)

	apps := api.Group("/applications", runtime.EchoAuthMiddleware(secret))
	appsHandler := &ApplicationsHandler{
		Store:     st,
		Scorer:    scorer,
		Publisher: publisher,
		Secret:    secret,
		Logger:    baseLogger,
	}
	appsHandler.Register(jobs, apps)

	(&SessionsHandler{
		Store:     st,
		Generator: generator,
		Aptitude:  cfg.Screening.AptitudeQuestions,
		Technical: cfg.Screening.TechnicalQuestions,
	}).Register(apps)

	knowledge := api.Group("/knowledge", recruiter...)
	(&KnowledgeHandler{
		Store:    st,
		Chunker:  chunker,
		Indexer:  indexer,
		Provider: llm,
		TopK:     cfg.Knowledge.SearchTopK,
		MaxBytes: cfg.Knowledge.MaxDocumentBytes,
	}).Register(knowledge)

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

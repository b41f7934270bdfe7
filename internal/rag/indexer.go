package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

var (
	chunksIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screener_chunks_indexed_total",
		Help: "Knowledge chunks embedded and upserted.",
	})
	chunkIndexFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screener_chunk_index_failures_total",
		Help: "Knowledge chunks that failed to index.",
	})
)

// ChunkStore is the slice of the store the indexer needs.
type ChunkStore interface {
	UpsertChunk(ctx context.Context, rec store.ChunkRecord) error
	SearchChunks(ctx context.Context, vector []float32, sourceID string, topK int, threshold float64) ([]store.ChunkSearchResult, error)
}

// ChunkFailure names one chunk that could not be indexed and why.
type ChunkFailure struct {
	ChunkID string `json:"chunkId"`
	Reason  string `json:"reason"`
}

// IndexReport describes a batch ingestion outcome. Successes already committed
// are never discarded because a sibling failed.
type IndexReport struct {
	Indexed []string       `json:"indexed"`
	Failed  []ChunkFailure `json:"failed,omitempty"`
}

// Indexer embeds chunks and upserts them into the vector store, idempotently
// per chunk id.
type Indexer struct {
	provider provider.Provider
	chunks   ChunkStore
	logger   *log.Logger
}

func NewIndexer(p provider.Provider, chunks ChunkStore, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Indexer{provider: p, chunks: chunks, logger: logger}
}

// IndexChunks embeds the batch in one provider call and upserts each chunk in
// order. An embedding failure aborts the whole batch (nothing was committed);
// a per-chunk upsert failure is recorded and the remaining chunks proceed.
func (ix *Indexer) IndexChunks(ctx context.Context, batch []Chunk) (IndexReport, error) {
	if len(batch) == 0 {
		return IndexReport{}, ErrNothingToIndex
	}

	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Text
	}
	vectors, err := ix.provider.CreateEmbedding(ctx, texts)
	if err != nil {
		return IndexReport{}, fmt.Errorf("embed %d chunks: %w", len(batch), err)
	}
	if len(vectors) != len(batch) {
		return IndexReport{}, fmt.Errorf("embedding service returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	var report IndexReport
	for i, ch := range batch {
		rec := store.ChunkRecord{
			ID:           ch.ID,
			SourceID:     ch.SourceID,
			DocumentName: ch.DocumentName,
			Ordinal:      ch.Ordinal,
			Text:         ch.Text,
			Vector:       vectors[i],
			Metadata: map[string]interface{}{
				"document_name": ch.DocumentName,
				"ordinal":       ch.Ordinal,
			},
		}
		if err := ix.chunks.UpsertChunk(ctx, rec); err != nil {
			ix.logger.Printf("upsert chunk %s failed: %v", ch.ID, err)
			report.Failed = append(report.Failed, ChunkFailure{ChunkID: ch.ID, Reason: err.Error()})
			chunkIndexFailures.Inc()
			continue
		}
		report.Indexed = append(report.Indexed, ch.ID)
		chunksIndexedTotal.Inc()
	}
	return report, nil
}

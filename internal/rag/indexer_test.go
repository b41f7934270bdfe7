package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

type fakeProvider struct {
	completeFn func(ctx context.Context, messages []provider.Message) (string, error)
	embedFn    func(ctx context.Context, input []string) ([][]float32, error)
}

func (f *fakeProvider) Complete(ctx context.Context, messages []provider.Message) (string, error) {
	if f.completeFn == nil {
		return "", errors.New("complete not stubbed")
	}
	return f.completeFn(ctx, messages)
}

func (f *fakeProvider) CreateEmbedding(ctx context.Context, input []string) ([][]float32, error) {
	if f.embedFn == nil {
		vectors := make([][]float32, len(input))
		for i := range vectors {
			vectors[i] = []float32{0.1, 0.2}
		}
		return vectors, nil
	}
	return f.embedFn(ctx, input)
}

type fakeChunkStore struct {
	upserted []store.ChunkRecord
	upsertFn func(rec store.ChunkRecord) error
	hits     []store.ChunkSearchResult
	searchFn func(vector []float32, sourceID string, topK int, threshold float64) ([]store.ChunkSearchResult, error)
}

func (f *fakeChunkStore) UpsertChunk(_ context.Context, rec store.ChunkRecord) error {
	if f.upsertFn != nil {
		if err := f.upsertFn(rec); err != nil {
			return err
		}
	}
	f.upserted = append(f.upserted, rec)
	return nil
}

func (f *fakeChunkStore) SearchChunks(_ context.Context, vector []float32, sourceID string, topK int, threshold float64) ([]store.ChunkSearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(vector, sourceID, topK, threshold)
	}
	return f.hits, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestIndexerCommitsAllChunks(t *testing.T) {
	chunks := &fakeChunkStore{}
	ix := NewIndexer(&fakeProvider{}, chunks, quietLogger())

	batch := []Chunk{
		{ID: "doc-1:0", SourceID: "doc-1", DocumentName: "Handbook", Ordinal: 0, Text: "first"},
		{ID: "doc-1:1", SourceID: "doc-1", DocumentName: "Handbook", Ordinal: 1, Text: "second"},
	}
	report, err := ix.IndexChunks(context.Background(), batch)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(report.Indexed) != 2 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(chunks.upserted) != 2 || chunks.upserted[1].ID != "doc-1:1" {
		t.Fatalf("unexpected upserts: %+v", chunks.upserted)
	}
}

func TestIndexerReportsPerChunkFailures(t *testing.T) {
	chunks := &fakeChunkStore{
		upsertFn: func(rec store.ChunkRecord) error {
			if rec.ID == "doc-1:0" {
				return errors.New("disk full")
			}
			return nil
		},
	}
	ix := NewIndexer(&fakeProvider{}, chunks, quietLogger())

	batch := []Chunk{
		{ID: "doc-1:0", SourceID: "doc-1", Text: "first"},
		{ID: "doc-1:1", SourceID: "doc-1", Text: "second"},
	}
	report, err := ix.IndexChunks(context.Background(), batch)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(report.Indexed) != 1 || report.Indexed[0] != "doc-1:1" {
		t.Fatalf("expected the surviving chunk committed, got %+v", report)
	}
	if len(report.Failed) != 1 || report.Failed[0].ChunkID != "doc-1:0" || report.Failed[0].Reason != "disk full" {
		t.Fatalf("unexpected failure report: %+v", report.Failed)
	}
}

func TestIndexerEmbeddingFailureAbortsBatch(t *testing.T) {
	chunks := &fakeChunkStore{}
	p := &fakeProvider{embedFn: func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: 503", provider.ErrUpstream)
	}}
	ix := NewIndexer(p, chunks, quietLogger())

	_, err := ix.IndexChunks(context.Background(), []Chunk{{ID: "doc-1:0", SourceID: "doc-1", Text: "first"}})
	if !errors.Is(err, provider.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(chunks.upserted) != 0 {
		t.Fatalf("nothing should be committed on embedding failure, got %d upserts", len(chunks.upserted))
	}
}

func TestIndexerEmptyBatch(t *testing.T) {
	ix := NewIndexer(&fakeProvider{}, &fakeChunkStore{}, quietLogger())
	if _, err := ix.IndexChunks(context.Background(), nil); !errors.Is(err, ErrNothingToIndex) {
		t.Fatalf("expected ErrNothingToIndex, got %v", err)
	}
}

func TestIndexerVectorCountMismatch(t *testing.T) {
	p := &fakeProvider{embedFn: func(_ context.Context, input []string) ([][]float32, error) {
		return [][]float32{{0.1}}, nil
	}}
	ix := NewIndexer(p, &fakeChunkStore{}, quietLogger())
	_, err := ix.IndexChunks(context.Background(), []Chunk{
		{ID: "doc-1:0", SourceID: "doc-1", Text: "first"},
		{ID: "doc-1:1", SourceID: "doc-1", Text: "second"},
	})
	if err == nil {
		t.Fatal("expected error on vector count mismatch")
	}
}

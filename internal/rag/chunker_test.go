package rag

import (
	"errors"
	"strings"
	"testing"
)

func TestChunkerOverlappingWindows(t *testing.T) {
	c := NewChunker(2, 1, 0)
	text := "One. Two. Three. Four. Five. Six."
	chunks, err := c.Chunk("doc-1", "Handbook", text)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("expected 5 overlapping chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "doc-1:0" || chunks[4].ID != "doc-1:4" {
		t.Fatalf("unexpected chunk ids %q %q", chunks[0].ID, chunks[4].ID)
	}
	if chunks[0].Text != "One. Two." {
		t.Fatalf("unexpected first chunk %q", chunks[0].Text)
	}
	// One-sentence overlap: each chunk starts with the previous chunk's last sentence.
	if !strings.HasPrefix(chunks[1].Text, "Two.") {
		t.Fatalf("expected overlap into second chunk, got %q", chunks[1].Text)
	}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Fatalf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
		if ch.SourceID != "doc-1" || ch.DocumentName != "Handbook" {
			t.Fatalf("chunk %d lost attribution: %+v", i, ch)
		}
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(5, 1, 0)
	if _, err := c.Chunk("doc-1", "Handbook", "   \n\t "); !errors.Is(err, ErrNothingToIndex) {
		t.Fatalf("expected ErrNothingToIndex, got %v", err)
	}
}

func TestChunkerNoTerminalPunctuation(t *testing.T) {
	c := NewChunker(5, 1, 0)
	chunks, err := c.Chunk("doc-1", "Notes", "a bare fragment without punctuation")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "a bare fragment without punctuation" {
		t.Fatalf("expected single fallback chunk, got %+v", chunks)
	}
}

func TestChunkerCapsChunkLength(t *testing.T) {
	c := NewChunker(1, 0, 10)
	chunks, err := c.Chunk("doc-1", "Notes", "this sentence is much longer than ten runes.")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if got := len([]rune(chunks[0].Text)); got != 10 {
		t.Fatalf("expected truncation to 10 runes, got %d", got)
	}
}

package rag

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNothingToIndex is returned when a document yields no chunks. Callers must
// surface it instead of treating an empty ingestion as success.
var ErrNothingToIndex = errors.New("document produced no indexable text")

// Chunk is a bounded slice of a document's text with attribution metadata so
// it can be retrieved, cited, and later deleted as a set.
type Chunk struct {
	ID           string
	SourceID     string
	DocumentName string
	Ordinal      int
	Text         string
}

// Chunker splits raw document text into overlapping sentence windows.
type Chunker struct {
	sentencesPerChunk int
	overlapSentences  int
	maxChunkRunes     int
	splitter          *regexp.Regexp
}

// NewChunker builds a chunker. Non-positive window sizes fall back to defaults;
// overlap is clamped below the window so the cursor always advances.
func NewChunker(sentencesPerChunk, overlapSentences, maxChunkRunes int) *Chunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	if maxChunkRunes <= 0 {
		maxChunkRunes = 2000
	}
	return &Chunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		maxChunkRunes:     maxChunkRunes,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits text into ordered chunks with ids of the form
// "<sourceID>:<ordinal>". Empty or whitespace-only input fails with
// ErrNothingToIndex.
func (c *Chunker) Chunk(sourceID, documentName, text string) ([]Chunk, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, errors.New("source id required")
	}
	sentences := c.splitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, ErrNothingToIndex
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []Chunk
	i := 0
	ordinal := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		content := strings.Join(sentences[i:end], " ")
		if runes := []rune(content); len(runes) > c.maxChunkRunes {
			content = string(runes[:c.maxChunkRunes])
		}
		chunks = append(chunks, Chunk{
			ID:           fmt.Sprintf("%s:%d", sourceID, ordinal),
			SourceID:     sourceID,
			DocumentName: documentName,
			Ordinal:      ordinal,
			Text:         content,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		ordinal++
	}
	return chunks, nil
}

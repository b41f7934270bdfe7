package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hireloop/screener/internal/helpers"
	"github.com/hireloop/screener/internal/screening"
	"github.com/hireloop/screener/internal/store"
	"github.com/hireloop/screener/provider"
)

// ErrBadGeneration means the model produced output that could not be coerced
// into a valid question bank even after a retry.
var ErrBadGeneration = errors.New("model produced an unusable question bank")

// ErrNoContext means retrieval found nothing to ground the questions on.
// Generation never falls back to the model's free recall.
var ErrNoContext = errors.New("no knowledge material retrieved to ground questions")

// GenerateRequest carries the inputs for a grounded question bank.
type GenerateRequest struct {
	JobTitle       string
	Skills         []string
	Difficulty     string // easy|medium|hard, empty means medium
	AptitudeCount  int
	TechnicalCount int
	SourceID       string // optional: restrict retrieval to one document
}

// Generator builds assessment question banks grounded on retrieved
// knowledge-base chunks instead of the model's free recall.
type Generator struct {
	provider  provider.Provider
	chunks    ChunkStore
	topK      int
	threshold float64
	logger    *log.Logger
}

func NewGenerator(p provider.Provider, chunks ChunkStore, topK int, threshold float64, logger *log.Logger) *Generator {
	if topK <= 0 {
		topK = 8
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[QUESTIONS] ", log.LstdFlags)
	}
	return &Generator{provider: p, chunks: chunks, topK: topK, threshold: threshold, logger: logger}
}

// Generate retrieves the most relevant chunks for the job profile, then asks
// the model for a question bank constrained to that material. One retry on a
// malformed response, then ErrBadGeneration.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) ([]screening.Question, error) {
	if req.AptitudeCount <= 0 && req.TechnicalCount <= 0 {
		return nil, fmt.Errorf("at least one question requested: %w", ErrBadGeneration)
	}
	switch req.Difficulty {
	case "":
		req.Difficulty = screening.DifficultyMedium
	case screening.DifficultyEasy, screening.DifficultyMedium, screening.DifficultyHard:
	default:
		return nil, fmt.Errorf("unknown difficulty %q: %w", req.Difficulty, ErrBadGeneration)
	}

	query := req.JobTitle
	if len(req.Skills) > 0 {
		query += " " + strings.Join(req.Skills, " ")
	}
	query += " " + req.Difficulty
	vectors, err := g.provider.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for one query", len(vectors))
	}

	hits, err := g.chunks.SearchChunks(ctx, vectors[0], req.SourceID, g.topK, g.threshold)
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoContext, query)
	}

	prompt := g.buildPrompt(req, hits)
	messages := []provider.Message{
		{Role: "system", Content: questionSystemPrompt},
		{Role: "user", Content: prompt},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := g.provider.Complete(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("generate questions: %w", err)
		}
		bank, err := g.parseBank(raw, req)
		if err == nil {
			return bank, nil
		}
		lastErr = err
		g.logger.Printf("attempt %d: rejected model output: %v", attempt+1, err)
		messages = append(messages,
			provider.Message{Role: "assistant", Content: raw},
			provider.Message{Role: "user", Content: "The previous output was invalid: " + err.Error() + ". Return ONLY the corrected JSON object, nothing else."},
		)
	}
	return nil, fmt.Errorf("%w: %v", ErrBadGeneration, lastErr)
}

func (g *Generator) parseBank(raw string, req GenerateRequest) ([]screening.Question, error) {
	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	bank, err := screening.NormalizeQuestionBank(json.RawMessage(payload))
	if err != nil {
		return nil, err
	}
	apt, tech := screening.SplitByCategory(bank)
	if len(apt) < req.AptitudeCount {
		return nil, fmt.Errorf("expected %d aptitude questions, got %d", req.AptitudeCount, len(apt))
	}
	if len(tech) < req.TechnicalCount {
		return nil, fmt.Errorf("expected %d technical questions, got %d", req.TechnicalCount, len(tech))
	}
	// Trim any surplus the model produced; order inside each category kept.
	trimmed := append(apt[:req.AptitudeCount:req.AptitudeCount], tech[:req.TechnicalCount]...)
	return trimmed, nil
}

func (g *Generator) buildPrompt(req GenerateRequest, hits []store.ChunkSearchResult) string {
	var sb strings.Builder
	sb.WriteString("Reference material:\n")
	for i, hit := range hits {
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, hit.DocumentName, hit.Text)
	}
	fmt.Fprintf(&sb, "\nJob title: %s\n", req.JobTitle)
	if len(req.Skills) > 0 {
		fmt.Fprintf(&sb, "Required skills: %s\n", strings.Join(req.Skills, ", "))
	}
	fmt.Fprintf(&sb, "Target difficulty: %s\n", req.Difficulty)
	fmt.Fprintf(&sb, `
Write exactly %d aptitude questions and %d technical questions at %s difficulty as a JSON object:
{
  "aptitude": [ { "id": "apt-1", "question": "...", "options": ["...","...","...","..."], "correctOptionIndex": 0, "explanation": "...", "category": "aptitude", "difficulty": "%s" } ],
  "technical": [ { "id": "tech-1", "question": "...", "options": ["...","...","...","..."], "correctOptionIndex": 0, "explanation": "...", "category": "technical", "difficulty": "%s" } ]
}
Each question must have exactly 4 options and one correct index. Every question must be answerable from the reference material above.
`, req.AptitudeCount, req.TechnicalCount, req.Difficulty, req.Difficulty, req.Difficulty)
	return sb.String()
}

const questionSystemPrompt = `You are an assessment author. You write multiple-choice questions strictly grounded on the reference material you are given. Never invent facts that the material does not support. Respond with JSON only.`

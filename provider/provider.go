package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hireloop/screener/config"
	openai_provider "github.com/hireloop/screener/provider/openai"
)

// Client represents different LLM providers.
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// ErrUpstream marks generative/embedding service failures so callers can keep
// them distinct from validation errors. Implementations wrap transport and
// non-200 failures with it.
var ErrUpstream = errors.New("upstream model service unavailable")

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface the screening pipeline consumes: free-form text in,
// text or vectors out. The model itself is a black box.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		inner := openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.CompletionModel, cfg.EmbeddingModel, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
		return upstreamMarked{inner: inner}, nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

// upstreamMarked folds every client failure into the ErrUpstream category so
// the pipeline never confuses a model outage with a validation error.
type upstreamMarked struct {
	inner interface {
		Complete(ctx context.Context, messages []openai_provider.Message) (string, error)
		CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	}
}

func (u upstreamMarked) Complete(ctx context.Context, messages []Message) (string, error) {
	converted := make([]openai_provider.Message, len(messages))
	for i, m := range messages {
		converted[i] = openai_provider.Message{Role: m.Role, Content: m.Content}
	}
	out, err := u.inner.Complete(ctx, converted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return out, nil
}

func (u upstreamMarked) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := u.inner.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return vecs, nil
}

// Package langchain provides an embedding service adapter over langchaingo
// embedders (Ollama and OpenAI).
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
)

// Embedder is the langchaingo embedding call.
type Embedder interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Config holds configuration for an embedding service.
type Config struct {
	Model   string
	BaseURL string

	// APIKey is required for OpenAI and ignored for Ollama.
	APIKey string
}

// EmbeddingService generates embeddings with a langchaingo embedder.
type EmbeddingService struct {
	embedder Embedder
	model    string
}

// New wraps an existing embedder.
func New(embedder Embedder, model string) *EmbeddingService {
	return &EmbeddingService{embedder: embedder, model: model}
}

// NewOllama creates an Ollama embedding service.
func NewOllama(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	emb, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("ollama: failed to initialise embedder: %w", err)
	}
	return New(emb, cfg.Model), nil
}

// NewOpenAI creates an OpenAI embedding service.
func NewOpenAI(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithEmbeddingModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	emb, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to initialise embedder: %w", err)
	}
	return New(emb, cfg.Model), nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := s.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embed with %s: %v", domain.ErrLLMUnavailable, s.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed with %s: got %d vectors for %d texts", s.model, len(vectors), len(texts))
	}
	return vectors, nil
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short string.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// Package ai provides factory functions for creating AI service adapters
// and the retriever from application settings.
package ai

import (
	"context"
	"fmt"
	"time"

	embedlangchain "github.com/custodia-labs/acqgen/internal/adapters/driven/embedding/langchain"
	anthropicllm "github.com/custodia-labs/acqgen/internal/adapters/driven/llm/anthropic"
	langchainllm "github.com/custodia-labs/acqgen/internal/adapters/driven/llm/langchain"
	ollamallm "github.com/custodia-labs/acqgen/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/llm/resilient"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/retrieval/corpus"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/retrieval/pgvector"
	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Retriever        driven.Retriever
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if generation runs without an LLM.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Retriever != nil {
		r.Retriever.Close()
	}
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("AI: %s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Init builds the LLM, embedding service and retriever described by
// settings. Unreachable or misconfigured services are recorded as warnings
// and left nil so generation degrades to the deterministic pipeline; only a
// nil settings value is an error.
func Init(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}
	result := &InitResult{}

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	switch {
	case err != nil:
		result.warn("%v", err)
	case llm != nil:
		result.LLMService = resilient.New(llm, resilient.Config{
			RequestsPerMinute: settings.LLM.RequestsPerMinute,
		})
	}
	result.FellBack = result.LLMService == nil

	embedding, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		result.warn("%v", err)
	}
	result.EmbeddingService = embedding

	retriever, err := CreateRetriever(ctx, &settings.Retrieval, embedding)
	if err != nil {
		result.warn("%v", err)
	}
	result.Retriever = retriever

	return result, nil
}

// CreateRetriever builds the configured retriever. A corpus backend with no
// directory yields no retriever and no error.
func CreateRetriever(
	ctx context.Context,
	settings *domain.RetrievalSettings,
	embedding driven.EmbeddingService,
) (driven.Retriever, error) {
	if settings == nil {
		return nil, nil
	}

	switch settings.Backend {
	case domain.RetrievalCorpus, "":
		if settings.CorpusDir == "" {
			return nil, nil
		}
		loader, err := corpus.NewLoader(settings.CorpusDir, nil)
		if err != nil {
			return nil, err
		}
		return corpus.New(loader), nil

	case domain.RetrievalPGVector:
		if embedding == nil {
			return nil, fmt.Errorf("%w: pgvector retrieval needs an embedding provider",
				domain.ErrRetrievalUnavailable)
		}
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		r, err := pgvector.New(ctx, pgvector.Config{
			DSN:        settings.DSN,
			Table:      settings.Table,
			Dimensions: probeDimensions(ctx, embedding),
		}, embedding)
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("%w: retrieval backend %q", domain.ErrUnsupportedType, settings.Backend)
	}
}

// probeDimensions embeds a short probe to learn the vector size. A failed
// probe yields zero so the retriever's default applies.
func probeDimensions(ctx context.Context, embedding driven.EmbeddingService) int {
	vec, err := embedding.Embed(ctx, "dimension probe")
	if err != nil {
		logger.Debug("AI: embedding probe failed: %v", err)
		return 0
	}
	return len(vec)
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'acqgen settings set embedding.provider' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'acqgen settings set llm.provider' to fix",
			domain.ErrLLMUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		svc, err := createOllamaEmbedding(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderOpenAI:
		svc, err := createOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

func createOllamaEmbedding(settings *domain.EmbeddingSettings) (*embedlangchain.EmbeddingService, error) {
	return embedlangchain.NewOllama(embedlangchain.Config{
		Model:   settings.Model,
		BaseURL: settings.BaseURL,
	})
}

func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (*embedlangchain.EmbeddingService, error) {
	return embedlangchain.NewOpenAI(embedlangchain.Config{
		Model:   settings.Model,
		BaseURL: settings.BaseURL,
		APIKey:  settings.APIKey,
	})
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		svc, err := createOpenAILLM(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := createAnthropicLLM(settings)
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

func createOllamaLLM(settings *domain.LLMSettings) *ollamallm.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM goes through langchaingo so OpenAI-compatible servers
// work with a base URL override.
func createOpenAILLM(settings *domain.LLMSettings) (*langchainllm.LLMService, error) {
	return langchainllm.NewOpenAI(langchainllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func createAnthropicLLM(settings *domain.LLMSettings) (*anthropicllm.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or any OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider. Empty disables LLM features.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerMinute bounds the request rate. Zero means unlimited.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RetrievalBackend selects the retriever implementation.
type RetrievalBackend string

// Available retrieval backends.
const (
	// RetrievalCorpus scores chunks from a local directory of source files.
	RetrievalCorpus RetrievalBackend = "corpus"

	// RetrievalPGVector queries a Postgres pgvector table.
	RetrievalPGVector RetrievalBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b RetrievalBackend) IsValid() bool {
	return b == RetrievalCorpus || b == RetrievalPGVector
}

// RetrievalSettings holds retriever configuration.
type RetrievalSettings struct {
	Backend RetrievalBackend

	// CorpusDir is the source directory for the corpus backend.
	CorpusDir string

	// DSN is the Postgres connection string for the pgvector backend.
	DSN string

	// Table is the pgvector table name.
	Table string
}

// StoreBackend selects the metadata store implementation.
type StoreBackend string

// Available metadata store backends.
const (
	StoreSQLite StoreBackend = "sqlite"
	StoreMemory StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	return b == StoreSQLite || b == StoreMemory
}

// PipelineSettings controls the generation pipeline.
type PipelineSettings struct {
	// MinFactsPerStage is the number of distinct facts of a kind below which
	// the next extraction stage runs.
	MinFactsPerStage int

	// TopK is the number of chunks retrieved per document.
	TopK int

	// MaxIterations is the refinement pass budget per document.
	MaxIterations int

	// AcceptThreshold is the overall score at which a draft is accepted.
	AcceptThreshold float64

	// Concurrency bounds how many independent documents run at once.
	Concurrency int

	// GenerationTimeout bounds each suspending call (retrieval, structured
	// extraction, revision).
	GenerationTimeout time.Duration
}

// Pipeline defaults.
const (
	DefaultMinFactsPerStage  = 3
	DefaultTopK              = 8
	DefaultMaxIterations     = 3
	MaxIterationsCap         = 10
	DefaultAcceptThreshold   = GoodThreshold
	DefaultConcurrency       = 4
	DefaultGenerationTimeout = 60 * time.Second
)

// AppSettings holds all application settings.
type AppSettings struct {
	LLM       LLMSettings
	Embedding EmbeddingSettings
	Retrieval RetrievalSettings
	Pipeline  PipelineSettings
	Quality   QualityWeights
	Store     StoreBackend

	// CatalogPath is an optional YAML catalogue replacing the built-in one.
	CatalogPath string
}

// DefaultAppSettings returns settings with sensible defaults.
// AI features are left unconfigured; generation then runs on the
// deterministic extraction stages only.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM:       LLMSettings{},
		Embedding: EmbeddingSettings{},
		Retrieval: RetrievalSettings{
			Backend: RetrievalCorpus,
			Table:   "acquisition_chunks",
		},
		Pipeline: DefaultPipelineSettings(),
		Quality:  DefaultQualityWeights(),
		Store:    StoreSQLite,
	}
}

// DefaultPipelineSettings returns the default pipeline configuration.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		MinFactsPerStage:  DefaultMinFactsPerStage,
		TopK:              DefaultTopK,
		MaxIterations:     DefaultMaxIterations,
		AcceptThreshold:   DefaultAcceptThreshold,
		Concurrency:       DefaultConcurrency,
		GenerationTimeout: DefaultGenerationTimeout,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-sonnet-4-5",
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

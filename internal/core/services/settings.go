package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider          = "llm.provider"
	keyLLMModel             = "llm.model"
	keyLLMBaseURL           = "llm.base_url"
	keyLLMAPIKey            = "llm.api_key"
	keyLLMRequestsPerMinute = "llm.requests_per_minute"
	keyEmbedProvider        = "embedding.provider"
	keyEmbedModel           = "embedding.model"
	keyEmbedBaseURL         = "embedding.base_url"
	keyEmbedAPIKey          = "embedding.api_key"
	keyRetrievalBackend     = "retrieval.backend"
	keyRetrievalCorpusDir   = "retrieval.corpus_dir"
	keyRetrievalDSN         = "retrieval.dsn"
	keyRetrievalTable       = "retrieval.table"
	keyMinFactsPerStage     = "pipeline.min_facts_per_stage"
	keyTopK                 = "pipeline.top_k"
	keyMaxIterations        = "pipeline.max_iterations"
	keyAcceptThreshold      = "pipeline.accept_threshold"
	keyConcurrency          = "pipeline.concurrency"
	keyGenerationTimeout    = "pipeline.generation_timeout_seconds"
	keyWeightHallucination  = "quality.weights.hallucination"
	keyWeightVague          = "quality.weights.vague_language"
	keyWeightCitations      = "quality.weights.citations"
	keyWeightCompliance     = "quality.weights.compliance"
	keyWeightCompleteness   = "quality.weights.completeness"
	keyCatalogPath          = "catalog.path"
	keyStoreBackend         = "store.backend"
)

// settingField binds a config key to its place in AppSettings.
type settingField struct {
	get func(s *domain.AppSettings) any
	set func(s *domain.AppSettings, value string) error
}

func stringField(ptr func(s *domain.AppSettings) *string) settingField {
	return settingField{
		get: func(s *domain.AppSettings) any { return *ptr(s) },
		set: func(s *domain.AppSettings, value string) error {
			*ptr(s) = value
			return nil
		},
	}
}

func intField(ptr func(s *domain.AppSettings) *int) settingField {
	return settingField{
		get: func(s *domain.AppSettings) any { return *ptr(s) },
		set: func(s *domain.AppSettings, value string) error {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInput, value)
			}
			*ptr(s) = n
			return nil
		},
	}
}

func floatField(ptr func(s *domain.AppSettings) *float64) settingField {
	return settingField{
		get: func(s *domain.AppSettings) any { return *ptr(s) },
		set: func(s *domain.AppSettings, value string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidInput, value)
			}
			*ptr(s) = f
			return nil
		},
	}
}

// settingFields lists every configurable key.
var settingFields = map[string]settingField{
	keyLLMProvider: {
		get: func(s *domain.AppSettings) any { return s.LLM.Provider.String() },
		set: func(s *domain.AppSettings, v string) error { s.LLM.Provider = domain.AIProvider(v); return nil },
	},
	keyLLMModel:             stringField(func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	keyLLMBaseURL:           stringField(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	keyLLMAPIKey:            stringField(func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	keyLLMRequestsPerMinute: intField(func(s *domain.AppSettings) *int { return &s.LLM.RequestsPerMinute }),
	keyEmbedProvider: {
		get: func(s *domain.AppSettings) any { return s.Embedding.Provider.String() },
		set: func(s *domain.AppSettings, v string) error { s.Embedding.Provider = domain.AIProvider(v); return nil },
	},
	keyEmbedModel:   stringField(func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
	keyEmbedBaseURL: stringField(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	keyEmbedAPIKey:  stringField(func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
	keyRetrievalBackend: {
		get: func(s *domain.AppSettings) any { return string(s.Retrieval.Backend) },
		set: func(s *domain.AppSettings, v string) error {
			s.Retrieval.Backend = domain.RetrievalBackend(v)
			return nil
		},
	},
	keyRetrievalCorpusDir: stringField(func(s *domain.AppSettings) *string { return &s.Retrieval.CorpusDir }),
	keyRetrievalDSN:       stringField(func(s *domain.AppSettings) *string { return &s.Retrieval.DSN }),
	keyRetrievalTable:     stringField(func(s *domain.AppSettings) *string { return &s.Retrieval.Table }),
	keyMinFactsPerStage:   intField(func(s *domain.AppSettings) *int { return &s.Pipeline.MinFactsPerStage }),
	keyTopK:               intField(func(s *domain.AppSettings) *int { return &s.Pipeline.TopK }),
	keyMaxIterations:      intField(func(s *domain.AppSettings) *int { return &s.Pipeline.MaxIterations }),
	keyAcceptThreshold:    floatField(func(s *domain.AppSettings) *float64 { return &s.Pipeline.AcceptThreshold }),
	keyConcurrency:        intField(func(s *domain.AppSettings) *int { return &s.Pipeline.Concurrency }),
	keyGenerationTimeout: {
		get: func(s *domain.AppSettings) any { return int(s.Pipeline.GenerationTimeout / time.Second) },
		set: func(s *domain.AppSettings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %q is not a whole number of seconds", domain.ErrInvalidInput, v)
			}
			s.Pipeline.GenerationTimeout = time.Duration(n) * time.Second
			return nil
		},
	},
	keyWeightHallucination: floatField(func(s *domain.AppSettings) *float64 { return &s.Quality.Hallucination }),
	keyWeightVague:         floatField(func(s *domain.AppSettings) *float64 { return &s.Quality.VagueLanguage }),
	keyWeightCitations:     floatField(func(s *domain.AppSettings) *float64 { return &s.Quality.Citations }),
	keyWeightCompliance:    floatField(func(s *domain.AppSettings) *float64 { return &s.Quality.Compliance }),
	keyWeightCompleteness:  floatField(func(s *domain.AppSettings) *float64 { return &s.Quality.Completeness }),
	keyCatalogPath:         stringField(func(s *domain.AppSettings) *string { return &s.CatalogPath }),
	keyStoreBackend: {
		get: func(s *domain.AppSettings) any { return string(s.Store) },
		set: func(s *domain.AppSettings, v string) error { s.Store = domain.StoreBackend(v); return nil },
	},
}

// secretKeys are never written when empty so a saved key is not erased by
// a settings struct that was loaded without it.
var secretKeys = map[string]bool{
	keyLLMAPIKey:   true,
	keyEmbedAPIKey: true,
}

// SettingKeys returns every configurable key in sorted order.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingFields))
	for k := range settingFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Keys returns every configurable key in sorted order.
func (s *SettingsService) Keys() []string {
	return SettingKeys()
}

// Get retrieves current application settings. Keys that are missing or
// hold an unusable value keep their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	settings := defaults

	for _, key := range SettingKeys() {
		raw, ok := s.configStore.Get(key)
		if !ok {
			continue
		}
		value := fmt.Sprint(raw)
		if value == "" {
			continue
		}
		candidate := settings
		if err := settingFields[key].set(&candidate, value); err != nil {
			continue
		}
		if validateField(key, &candidate) != nil {
			continue
		}
		settings = candidate
	}

	return &settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}
	for _, key := range SettingKeys() {
		value := settingFields[key].get(settings)
		if secretKeys[key] && value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Set updates a single setting by its configuration key. The value is
// parsed and validated before it is stored.
func (s *SettingsService) Set(key, value string) error {
	field, ok := settingFields[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := field.set(settings, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := validateField(key, settings); err != nil {
		return err
	}
	if err := s.configStore.Set(key, field.get(settings)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	// Local providers need a base URL; cloud providers use their own
	if provider == domain.AIProviderOllama {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// validateSettings checks cross-field constraints as well as every field.
func validateSettings(settings *domain.AppSettings) error {
	for _, key := range SettingKeys() {
		if err := validateField(key, settings); err != nil {
			return err
		}
	}
	if settings.Retrieval.Backend == domain.RetrievalPGVector {
		if settings.Retrieval.DSN == "" {
			return fmt.Errorf("%w: retrieval backend pgvector requires %s", domain.ErrInvalidInput, keyRetrievalDSN)
		}
		if !settings.Embedding.IsConfigured() {
			return fmt.Errorf("%w: retrieval backend pgvector requires an embedding provider", domain.ErrInvalidInput)
		}
	}
	return nil
}

// validateField checks the value stored under key.
//
//nolint:gocyclo // One case per key
func validateField(key string, s *domain.AppSettings) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, key, fmt.Sprintf(format, args...))
	}

	switch key {
	case keyLLMProvider:
		if s.LLM.Provider != "" && !s.LLM.Provider.IsValid() {
			return invalid("unknown provider %q", s.LLM.Provider)
		}
	case keyEmbedProvider:
		if s.Embedding.Provider == "" {
			return nil
		}
		if !s.Embedding.Provider.IsValid() {
			return invalid("unknown provider %q", s.Embedding.Provider)
		}
		if s.Embedding.Provider == domain.AIProviderAnthropic {
			return invalid("anthropic does not provide embeddings")
		}
	case keyLLMRequestsPerMinute:
		if s.LLM.RequestsPerMinute < 0 {
			return invalid("must not be negative")
		}
	case keyRetrievalBackend:
		if !s.Retrieval.Backend.IsValid() {
			return invalid("must be %q or %q", domain.RetrievalCorpus, domain.RetrievalPGVector)
		}
	case keyStoreBackend:
		if !s.Store.IsValid() {
			return invalid("must be %q or %q", domain.StoreSQLite, domain.StoreMemory)
		}
	case keyMinFactsPerStage, keyTopK, keyConcurrency:
		if settingFields[key].get(s).(int) < 1 {
			return invalid("must be at least 1")
		}
	case keyMaxIterations:
		if s.Pipeline.MaxIterations < 0 || s.Pipeline.MaxIterations > domain.MaxIterationsCap {
			return invalid("must be between 0 and %d", domain.MaxIterationsCap)
		}
	case keyAcceptThreshold:
		if s.Pipeline.AcceptThreshold <= 0 || s.Pipeline.AcceptThreshold > 100 {
			return invalid("must be in (0, 100]")
		}
	case keyGenerationTimeout:
		if s.Pipeline.GenerationTimeout < time.Second {
			return invalid("must be at least 1 second")
		}
	case keyWeightHallucination, keyWeightVague, keyWeightCitations, keyWeightCompliance, keyWeightCompleteness:
		if settingFields[key].get(s).(float64) < 0 {
			return invalid("must not be negative")
		}
	}
	return nil
}

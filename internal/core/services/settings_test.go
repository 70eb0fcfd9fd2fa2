package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/acqgen/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"llm.provider":                        "anthropic",
		"llm.model":                           "claude-sonnet-4-5",
		"llm.api_key":                         "sk-ant-test",
		"llm.requests_per_minute":             int64(30),
		"retrieval.corpus_dir":                "/srv/corpus",
		"pipeline.top_k":                      int64(12),
		"pipeline.accept_threshold":           80.5,
		"pipeline.generation_timeout_seconds": int64(90),
		"quality.weights.citations":           0.4,
		"store.backend":                       "memory",
		"catalog.path":                        "/etc/acqgen/catalog.yaml",
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", settings.LLM.Model)
	assert.Equal(t, "sk-ant-test", settings.LLM.APIKey)
	assert.Equal(t, 30, settings.LLM.RequestsPerMinute)
	assert.Equal(t, "/srv/corpus", settings.Retrieval.CorpusDir)
	assert.Equal(t, 12, settings.Pipeline.TopK)
	assert.InDelta(t, 80.5, settings.Pipeline.AcceptThreshold, 1e-9)
	assert.Equal(t, 90*time.Second, settings.Pipeline.GenerationTimeout)
	assert.InDelta(t, 0.4, settings.Quality.Citations, 1e-9)
	assert.Equal(t, domain.StoreMemory, settings.Store)
	assert.Equal(t, "/etc/acqgen/catalog.yaml", settings.CatalogPath)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"llm.provider":              "invalid_provider",
		"retrieval.backend":         "elasticsearch",
		"pipeline.top_k":            int64(0),
		"pipeline.max_iterations":   int64(99),
		"pipeline.concurrency":      "lots",
		"quality.weights.citations": -1.0,
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.Retrieval.Backend, settings.Retrieval.Backend)
	assert.Equal(t, defaults.Pipeline, settings.Pipeline)
	assert.Equal(t, defaults.Quality, settings.Quality)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	settings := domain.DefaultAppSettings()
	settings.LLM = domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
	}
	settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "nomic-embed-text",
		BaseURL:  "http://localhost:11434",
	}
	settings.Retrieval = domain.RetrievalSettings{
		Backend: domain.RetrievalPGVector,
		DSN:     "postgres://localhost/acq",
		Table:   "chunks",
	}
	settings.Pipeline.MaxIterations = 5
	settings.Pipeline.GenerationTimeout = 2 * time.Minute

	require.NoError(t, service.Save(&settings))

	retrieved, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *retrieved)
}

func TestSettingsService_Save_KeepsStoredAPIKey(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"llm.api_key": "sk-keep"})
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	require.NoError(t, service.Save(&settings))

	assert.Equal(t, "sk-keep", store.GetString("llm.api_key"))
}

func TestSettingsService_Save_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *domain.AppSettings)
	}{
		{"zero top k", func(s *domain.AppSettings) { s.Pipeline.TopK = 0 }},
		{"iterations above cap", func(s *domain.AppSettings) { s.Pipeline.MaxIterations = domain.MaxIterationsCap + 1 }},
		{"threshold above 100", func(s *domain.AppSettings) { s.Pipeline.AcceptThreshold = 101 }},
		{"negative weight", func(s *domain.AppSettings) { s.Quality.Compliance = -0.1 }},
		{"sub-second timeout", func(s *domain.AppSettings) { s.Pipeline.GenerationTimeout = time.Millisecond }},
		{"unknown store", func(s *domain.AppSettings) { s.Store = "redis" }},
		{"anthropic embeddings", func(s *domain.AppSettings) { s.Embedding.Provider = domain.AIProviderAnthropic }},
		{"pgvector without dsn", func(s *domain.AppSettings) {
			s.Retrieval.Backend = domain.RetrievalPGVector
			s.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}
		}},
		{"pgvector without embeddings", func(s *domain.AppSettings) {
			s.Retrieval.Backend = domain.RetrievalPGVector
			s.Retrieval.DSN = "postgres://localhost/acq"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			service := NewSettingsService(store, nil)
			settings := domain.DefaultAppSettings()
			tt.modify(&settings)

			err := service.Save(&settings)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, stored := store.Get("pipeline.top_k")
			assert.False(t, stored, "nothing is written when validation fails")
		})
	}
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, s *domain.AppSettings)
	}{
		{"llm.provider", "ollama", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, domain.AIProviderOllama, s.LLM.Provider)
		}},
		{"pipeline.top_k", "16", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, 16, s.Pipeline.TopK)
		}},
		{"pipeline.accept_threshold", "82.5", func(t *testing.T, s *domain.AppSettings) {
			assert.InDelta(t, 82.5, s.Pipeline.AcceptThreshold, 1e-9)
		}},
		{"pipeline.max_iterations", "0", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, 0, s.Pipeline.MaxIterations)
		}},
		{"pipeline.generation_timeout_seconds", "45", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, 45*time.Second, s.Pipeline.GenerationTimeout)
		}},
		{"retrieval.backend", "pgvector", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, domain.RetrievalPGVector, s.Retrieval.Backend)
		}},
		{"quality.weights.completeness", "0.5", func(t *testing.T, s *domain.AppSettings) {
			assert.InDelta(t, 0.5, s.Quality.Completeness, 1e-9)
		}},
		{"catalog.path", "catalog.yaml", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, "catalog.yaml", s.CatalogPath)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore(), nil)

			require.NoError(t, service.Set(tt.key, tt.value))

			settings, err := service.Get()
			require.NoError(t, err)
			tt.check(t, settings)
		})
	}
}

func TestSettingsService_Set_Errors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"no.such.key", "1"},
		{"pipeline.top_k", "many"},
		{"pipeline.top_k", "0"},
		{"pipeline.max_iterations", "11"},
		{"pipeline.accept_threshold", "0"},
		{"pipeline.generation_timeout_seconds", "1.5"},
		{"llm.provider", "gemini"},
		{"embedding.provider", "anthropic"},
		{"store.backend", "postgres"},
		{"quality.weights.citations", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			store := memory.NewConfigStore()
			service := NewSettingsService(store, nil)

			err := service.Set(tt.key, tt.value)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, stored := store.Get(tt.key)
			assert.False(t, stored)
		})
	}
}

func TestSettingKeys(t *testing.T) {
	keys := SettingKeys()

	assert.Contains(t, keys, "llm.provider")
	assert.Contains(t, keys, "pipeline.concurrency")
	assert.Contains(t, keys, "quality.weights.hallucination")
	assert.IsIncreasing(t, keys)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	tests := []struct {
		name        string
		provider    domain.AIProvider
		model       string
		apiKey      string
		wantModel   string
		wantBaseURL string
	}{
		{"ollama default model", domain.AIProviderOllama, "", "", "llama3.2", "http://localhost:11434"},
		{"openai custom model", domain.AIProviderOpenAI, "gpt-4.1", "sk-test", "gpt-4.1", ""},
		{"anthropic default model", domain.AIProviderAnthropic, "", "sk-ant", "claude-sonnet-4-5", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore(), nil)

			require.NoError(t, service.SetLLMProvider(tt.provider, tt.model, tt.apiKey))

			settings, err := service.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.provider, settings.LLM.Provider)
			assert.Equal(t, tt.wantModel, settings.LLM.Model)
			assert.Equal(t, tt.wantBaseURL, settings.LLM.BaseURL)
			assert.Equal(t, tt.apiKey, settings.LLM.APIKey)
		})
	}
}

func TestSettingsService_SetLLMProvider_Errors(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.ErrorIs(t, service.SetLLMProvider("gemini", "", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetLLMProvider(domain.AIProviderOpenAI, "", ""), domain.ErrInvalidInput)
}

// failingConfigStore fails Set for one key, or every key when failOn is empty.
type failingConfigStore struct {
	*memory.ConfigStore
	failOn string
}

func (f *failingConfigStore) Set(key string, value any) error {
	if f.failOn == "" || key == f.failOn {
		return assert.AnError
	}
	return f.ConfigStore.Set(key, value)
}

func TestSettingsService_StoreErrors(t *testing.T) {
	store := &failingConfigStore{ConfigStore: memory.NewConfigStore(), failOn: "llm.provider"}
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	assert.ErrorIs(t, service.Save(&settings), assert.AnError)
	assert.ErrorIs(t, service.Set("llm.provider", "ollama"), assert.AnError)
	assert.Error(t, service.SetLLMProvider(domain.AIProviderOllama, "llama3.2", ""))
}

func TestSettingsService_Validate(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)
	assert.NoError(t, service.Validate())

	store := memory.NewConfigStore(map[string]any{
		"retrieval.backend": "pgvector",
	})
	service = NewSettingsService(store, nil)
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidInput)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

// mockAIConfigValidator returns fixed errors.
type mockAIConfigValidator struct {
	embedErr error
	llmErr   error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embedErr
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	tests := []struct {
		name      string
		validator *mockAIConfigValidator
		wantErr   bool
	}{
		{"nil validator skips", nil, false},
		{"success", &mockAIConfigValidator{}, false},
		{"failure", &mockAIConfigValidator{embedErr: assert.AnError, llmErr: assert.AnError}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var service *SettingsService
			if tt.validator == nil {
				service = NewSettingsService(memory.NewConfigStore(), nil)
			} else {
				service = NewSettingsService(memory.NewConfigStore(), tt.validator)
			}

			llmErr := service.ValidateLLMConfig()
			embedErr := service.ValidateEmbeddingConfig()

			if tt.wantErr {
				assert.Error(t, llmErr)
				assert.Error(t, embedErr)
			} else {
				assert.NoError(t, llmErr)
				assert.NoError(t, embedErr)
			}
		})
	}
}

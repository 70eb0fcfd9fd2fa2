package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/custodia-labs/acqgen/internal/adapters/driven/retrieval/corpus"
	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// ollamaServer answers the tags endpoint used by the Ollama ping.
func ollamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestInitResult_Close_AllServices(t *testing.T) {
	emb, err := createOllamaEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  "http://localhost:11434",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loader, err := corpus.NewLoader(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := &InitResult{
		EmbeddingService: emb,
		LLMService: createOllamaLLM(&domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  "http://localhost:11434",
		}),
		Retriever: corpus.New(loader),
	}

	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			// Anthropic has no embeddings, so the settings are not configured.
			name: "anthropic provider returns nil",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			wantNil: true,
		},
		{
			name:     "openai without key returns nil",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name:     "unknown provider returns nil",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "test-key"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)

			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantNil && svc != nil {
				t.Error("expected nil service, got non-nil")
			}
			if !tt.wantNil && svc == nil {
				t.Error("expected non-nil service, got nil")
			}
			if svc != nil {
				svc.Close()
			}
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.LLMSettings
		wantNil   bool
		wantModel string
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name: "ollama provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "llama3.2",
			},
			wantModel: "llama3.2",
		},
		{
			name: "openai provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "gpt-4o-mini",
			},
			wantModel: "gpt-4o-mini",
		},
		{
			name: "anthropic provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			wantModel: "claude-sonnet-4-5",
		},
		{
			name:     "anthropic without key returns nil",
			settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if svc != nil {
					t.Error("expected nil service, got non-nil")
				}
				return
			}
			if svc == nil {
				t.Fatal("expected non-nil service, got nil")
			}
			defer svc.Close()
			if svc.ModelName() != tt.wantModel {
				t.Errorf("ModelName() = %q, want %q", svc.ModelName(), tt.wantModel)
			}
		})
	}
}

func TestCreateAndValidateLLMService(t *testing.T) {
	t.Run("reachable ollama", func(t *testing.T) {
		server := ollamaServer(t, http.StatusOK)

		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  server.URL,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
	})

	t.Run("unreachable ollama", func(t *testing.T) {
		server := ollamaServer(t, http.StatusInternalServerError)

		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  server.URL,
		})
		if !errors.Is(err, domain.ErrLLMUnavailable) {
			t.Errorf("expected ErrLLMUnavailable, got %v", err)
		}
		if svc != nil {
			t.Error("expected nil service")
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{})
		if svc != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", svc, err)
		}
	})
}

func TestValidateLLMConfig(t *testing.T) {
	server := ollamaServer(t, http.StatusOK)

	if err := ValidateLLMConfig(nil); err != nil {
		t.Errorf("nil settings: unexpected error: %v", err)
	}
	if err := ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL}); err != nil {
		t.Errorf("reachable ollama: unexpected error: %v", err)
	}

	down := ollamaServer(t, http.StatusServiceUnavailable)
	if err := ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down.URL}); err == nil {
		t.Error("unavailable ollama: expected error")
	}
}

func TestValidateEmbeddingConfig_Unconfigured(t *testing.T) {
	if err := ValidateEmbeddingConfig(nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateRetriever(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "survey.md"), []byte("# Survey\n\nVendor pricing averaged $450,000."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Run("nil settings", func(t *testing.T) {
		r, err := CreateRetriever(context.Background(), nil, nil)
		if r != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", r, err)
		}
	})

	t.Run("corpus without directory", func(t *testing.T) {
		r, err := CreateRetriever(context.Background(), &domain.RetrievalSettings{Backend: domain.RetrievalCorpus}, nil)
		if r != nil || err != nil {
			t.Errorf("expected nil, nil; got %v, %v", r, err)
		}
	})

	t.Run("corpus directory", func(t *testing.T) {
		r, err := CreateRetriever(context.Background(), &domain.RetrievalSettings{
			Backend:   domain.RetrievalCorpus,
			CorpusDir: dir,
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer r.Close()

		chunks, err := r.Query(context.Background(), "vendor pricing", 3)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(chunks) != 1 || !strings.Contains(chunks[0].Text, "$450,000") {
			t.Errorf("unexpected chunks: %+v", chunks)
		}
	})

	t.Run("pgvector without embedding", func(t *testing.T) {
		r, err := CreateRetriever(context.Background(), &domain.RetrievalSettings{
			Backend: domain.RetrievalPGVector,
			DSN:     "postgres://localhost/acq",
		}, nil)
		if r != nil {
			t.Error("expected nil retriever")
		}
		if !errors.Is(err, domain.ErrRetrievalUnavailable) {
			t.Errorf("expected ErrRetrievalUnavailable, got %v", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := CreateRetriever(context.Background(), &domain.RetrievalSettings{Backend: "solr"}, nil)
		if !errors.Is(err, domain.ErrUnsupportedType) {
			t.Errorf("expected ErrUnsupportedType, got %v", err)
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("nil settings", func(t *testing.T) {
		if _, err := Init(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("defaults fall back", func(t *testing.T) {
		settings := domain.DefaultAppSettings()

		result, err := Init(context.Background(), &settings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if !result.FellBack {
			t.Error("expected FellBack without an LLM")
		}
		if len(result.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", result.Warnings)
		}
	})

	t.Run("ollama llm is wrapped", func(t *testing.T) {
		server := ollamaServer(t, http.StatusOK)
		settings := domain.DefaultAppSettings()
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL, Model: "llama3.2"}

		result, err := Init(context.Background(), &settings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if result.FellBack || result.LLMService == nil {
			t.Fatal("expected an LLM service")
		}
		if result.LLMService.ModelName() != "llama3.2" {
			t.Errorf("ModelName() = %q", result.LLMService.ModelName())
		}
	})

	t.Run("unreachable services become warnings", func(t *testing.T) {
		server := ollamaServer(t, http.StatusBadGateway)
		settings := domain.DefaultAppSettings()
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL}
		settings.Retrieval = domain.RetrievalSettings{Backend: domain.RetrievalPGVector, DSN: "postgres://x"}

		result, err := Init(context.Background(), &settings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer result.Close()

		if !result.FellBack {
			t.Error("expected FellBack")
		}
		if result.Retriever != nil {
			t.Error("expected no retriever")
		}
		if len(result.Warnings) != 2 {
			t.Errorf("expected 2 warnings, got %v", result.Warnings)
		}
	})
}

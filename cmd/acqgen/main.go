// Command acqgen generates government acquisition packages.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/acqgen/internal/adapters/driven/ai"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/config/file"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/render/markdown"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/retrieval/corpus"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/storage/artifacts"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/acqgen/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/acqgen/internal/adapters/driving/cli"
	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/core/services"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cli.SetVersion(version)

	configDir, err := file.DefaultDir()
	if err != nil {
		return fmt.Errorf("config directory: %w", err)
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	catalog, err := file.NewCatalogLoader(settings.CatalogPath).Catalog()
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}

	// Prompts are editable on disk and reloaded when they change.
	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"), services.DefaultPrompts())
	if err != nil {
		return fmt.Errorf("prompt store: %w", err)
	}
	if err := os.MkdirAll(prompts.Dir(), 0700); err == nil {
		if watcher, err := file.NewPromptWatcher(prompts.Dir(), prompts); err != nil {
			logger.Warn("Prompts: not watching %s: %v", prompts.Dir(), err)
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	aiResult, err := ai.Init(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise AI services: %w", err)
	}
	defer aiResult.Close()

	dataDir := filepath.Join(configDir, "data")
	var store driven.MetadataStore
	switch settings.Store {
	case domain.StoreMemory:
		store = memory.NewMetadataStore()
	default:
		db, err := sqlite.NewStore(dataDir)
		if err != nil {
			return fmt.Errorf("open metadata store: %w", err)
		}
		defer db.Close()
		store = db.MetadataStore()
	}

	renderer, err := markdown.NewRenderer(filepath.Join(configDir, "templates"))
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	artifactStore, err := artifacts.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	extraction := services.NewExtractionService(aiResult.LLMService, services.ExtractionConfig{
		MinFactsPerStage:  settings.Pipeline.MinFactsPerStage,
		StructuredTimeout: settings.Pipeline.GenerationTimeout,
	})
	extraction.SetPromptStore(prompts)

	quality := services.NewQualityService(settings.Quality)

	var reviser services.DocumentReviser
	if aiResult.LLMService != nil {
		llmReviser := services.NewLLMReviser(aiResult.LLMService)
		llmReviser.SetPromptStore(prompts)
		reviser = llmReviser
	}

	relay := cli.NewProgressRelay()
	packageService, err := services.NewPackageService(
		catalog,
		store,
		renderer,
		extraction,
		quality,
		aiResult.Retriever,
		reviser,
		artifactStore,
		relay,
		services.PackageConfigFromSettings(settings.Pipeline),
	)
	if err != nil {
		return fmt.Errorf("create package service: %w", err)
	}

	cli.SetServices(cli.Services{
		Package:  packageService,
		Quality:  quality,
		Settings: settingsService,
		Index:    newIndexService(settings, aiResult),
		Catalog:  catalog,
		Progress: relay,
		Warnings: aiResult.Warnings,
	})

	return cli.Execute()
}

// newIndexService returns nil unless the retriever can store chunks and a
// corpus directory is configured.
func newIndexService(settings *domain.AppSettings, aiResult *ai.InitResult) driving.IndexService {
	indexer, ok := aiResult.Retriever.(driven.ChunkIndexer)
	if !ok || settings.Retrieval.CorpusDir == "" {
		return nil
	}
	loader, err := corpus.NewLoader(settings.Retrieval.CorpusDir, nil)
	if err != nil {
		logger.Warn("Index: %v", err)
		return nil
	}
	return services.NewIndexService(loader, indexer)
}

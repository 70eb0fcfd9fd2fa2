package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure ExtractionService implements the interface.
var _ driving.ExtractionService = (*ExtractionService)(nil)

// Ensure ExtractionService can use custom prompts.
var _ driven.PromptStoreAware = (*ExtractionService)(nil)

// Default extraction settings.
const (
	DefaultStructuredTimeout = 60 * time.Second
)

// StageFunc extracts facts of one kind from chunks. Stage functions never
// fail; a stage with nothing to offer returns no facts.
type StageFunc func(ctx context.Context, chunks []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact

type extractionStage struct {
	stage domain.ExtractionStage
	run   StageFunc
}

// ExtractionConfig configures the extraction pipeline.
type ExtractionConfig struct {
	// MinFactsPerStage is the number of distinct facts of a kind below which
	// the next stage runs.
	MinFactsPerStage int

	// StructuredTimeout bounds the structured generation call.
	StructuredTimeout time.Duration
}

// ExtractionService converts retrieved chunks into typed facts using
// ordered stages: pattern, metadata, structured generation and fallback.
// It reads no store and holds no state between calls.
type ExtractionService struct {
	config  ExtractionConfig
	llm     driven.LLMService
	prompts driven.PromptStore
	stages  []extractionStage
}

// NewExtractionService creates an extraction service.
// The llm parameter is optional; without it the structured stage yields no facts.
func NewExtractionService(llm driven.LLMService, config ExtractionConfig) *ExtractionService {
	if config.MinFactsPerStage <= 0 {
		config.MinFactsPerStage = domain.DefaultMinFactsPerStage
	}
	if config.StructuredTimeout <= 0 {
		config.StructuredTimeout = DefaultStructuredTimeout
	}
	s := &ExtractionService{
		config: config,
		llm:    llm,
	}
	s.stages = []extractionStage{
		{domain.StagePattern, patternStage},
		{domain.StageMetadata, metadataStage},
		{domain.StageStructured, s.structuredStage},
		{domain.StageFallback, fallbackStage},
	}
	return s
}

// SetPromptStore sets the prompt store for the structured stage prompt.
func (s *ExtractionService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Extract returns a fact set covering every requested kind (all kinds when
// none are given). It never fails: kinds the earlier stages cannot support
// are filled with fallback placeholders.
func (s *ExtractionService) Extract(ctx context.Context, chunks []domain.Chunk, kinds ...domain.FactKind) domain.FactSet {
	if len(kinds) == 0 {
		kinds = domain.AllFactKinds()
	}

	if len(chunks) == 0 {
		logger.Warn("Extraction: no chunks, all %d kinds degraded", len(kinds))
		var facts []domain.ExtractedFact
		for _, kind := range kinds {
			facts = append(facts, fallbackStage(ctx, nil, kind)...)
		}
		return domain.NewFactSet(facts)
	}

	var facts []domain.ExtractedFact
	for _, kind := range kinds {
		facts = append(facts, s.extractKind(ctx, chunks, kind)...)
	}
	return domain.NewFactSet(facts)
}

func (s *ExtractionService) extractKind(ctx context.Context, chunks []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact {
	collected := newFactCollector()
	for _, stage := range s.stages {
		if collected.len() >= s.config.MinFactsPerStage {
			break
		}
		// Placeholders only stand in for a kind with nothing real.
		if stage.stage == domain.StageFallback && collected.len() > 0 {
			break
		}
		found := stage.run(ctx, chunks, kind)
		added := collected.add(stage.stage, found)
		logger.Debug("Extraction: %s stage found %d %s facts (%d new)", stage.stage, len(found), kind, added)
	}
	return collected.facts()
}

// fallbackStage emits one zero-confidence placeholder for kind.
func fallbackStage(_ context.Context, _ []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact {
	logger.Warn("%v: %s fell through to fallback", domain.ErrExtractionDegraded, kind)
	return []domain.ExtractedFact{{
		Kind:       kind,
		Key:        "fallback:" + string(kind),
		Text:       FallbackText(kind),
		Confidence: 0,
		Stage:      domain.StageFallback,
	}}
}

// FallbackText is the placeholder text for a kind with no extracted facts.
func FallbackText(kind domain.FactKind) string {
	return "[" + string(kind) + " not found in source material]"
}

// factCollector deduplicates facts by kind and normalised text, keeping the
// highest-precedence instance in first-seen order.
type factCollector struct {
	index map[string]int
	list  []domain.ExtractedFact
}

func newFactCollector() *factCollector {
	return &factCollector{index: make(map[string]int)}
}

func (c *factCollector) len() int {
	return len(c.list)
}

// add stamps facts with the stage and a fresh ID and returns how many were new.
func (c *factCollector) add(stage domain.ExtractionStage, facts []domain.ExtractedFact) int {
	added := 0
	for _, f := range facts {
		if f.Text == "" {
			continue
		}
		f.Stage = stage
		f.ID = uuid.NewString()
		key := string(f.Kind) + "|" + f.NormalizedText()
		if i, ok := c.index[key]; ok {
			kept := &c.list[i]
			if f.Stage.Precedence() < kept.Stage.Precedence() {
				f.Key = firstNonEmpty(f.Key, kept.Key)
				*kept = f
			} else if kept.Key == "" {
				kept.Key = f.Key
			}
			continue
		}
		c.index[key] = len(c.list)
		c.list = append(c.list, f)
		added++
	}
	return added
}

func (c *factCollector) facts() []domain.ExtractedFact {
	return c.list
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package driving

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// ExtractionService converts retrieved chunks into typed facts.
type ExtractionService interface {
	// Extract returns a fact set covering every requested kind. It never
	// fails; kinds without source support are filled with fallback facts.
	Extract(ctx context.Context, chunks []domain.Chunk, kinds ...domain.FactKind) domain.FactSet
}

// QualityService scores document drafts.
type QualityService interface {
	// Evaluate scores text against its metadata. It is a pure function of
	// its inputs.
	Evaluate(text string, input domain.EvaluationInput) domain.QualityReport
}

package driving

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// IndexService loads a corpus into the retrieval index.
type IndexService interface {
	// Index indexes every corpus document. Per-source failures are listed in
	// the summary; the error is reserved for an unreadable corpus.
	Index(ctx context.Context) (*domain.IndexSummary, error)
}

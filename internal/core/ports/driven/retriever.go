package driven

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// Retriever returns source material relevant to a query.
// The core only depends on this contract; the backing index is external.
type Retriever interface {
	// Query returns up to k chunks ranked by descending similarity.
	Query(ctx context.Context, text string, k int) ([]domain.Chunk, error)

	// Close releases resources.
	Close() error
}

// CorpusSource reads the source documents of a corpus.
type CorpusSource interface {
	// Load returns every readable document, ordered by source ID.
	Load(ctx context.Context) ([]domain.SourceDocument, error)
}

// ChunkIndexer stores chunks in a retrieval index.
type ChunkIndexer interface {
	// Index replaces the chunks held for sourceID.
	Index(ctx context.Context, sourceID string, chunks []string) error
}

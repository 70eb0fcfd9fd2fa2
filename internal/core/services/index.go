package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService copies a corpus into a retrieval index.
type IndexService struct {
	source  driven.CorpusSource
	indexer driven.ChunkIndexer
}

// NewIndexService creates an index service.
func NewIndexService(source driven.CorpusSource, indexer driven.ChunkIndexer) *IndexService {
	return &IndexService{source: source, indexer: indexer}
}

// Index loads the corpus and indexes each document in source order. A
// source that fails to index is recorded and the rest continue.
func (s *IndexService) Index(ctx context.Context) (*domain.IndexSummary, error) {
	if s.source == nil || s.indexer == nil {
		return nil, fmt.Errorf("%w: indexing needs a corpus and an index", domain.ErrRetrievalUnavailable)
	}

	logger.Section("Index")
	docs, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	summary := &domain.IndexSummary{}
	for _, doc := range docs {
		if len(doc.Chunks) == 0 {
			continue
		}
		if err := s.indexer.Index(ctx, doc.SourceID, doc.Chunks); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			logger.Warn("Index: %s failed: %v", doc.SourceID, err)
			summary.Failed = append(summary.Failed, doc.SourceID)
			continue
		}
		logger.Debug("Index: %s (%d chunks)", doc.SourceID, len(doc.Chunks))
		summary.Sources++
		summary.Chunks += len(doc.Chunks)
	}
	return summary, nil
}

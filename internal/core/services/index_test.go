package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

type staticCorpus struct {
	docs []domain.SourceDocument
	err  error
}

func (c staticCorpus) Load(_ context.Context) ([]domain.SourceDocument, error) {
	return c.docs, c.err
}

type recordingIndexer struct {
	failFor map[string]error
	indexed map[string][]string
}

func (r *recordingIndexer) Index(_ context.Context, sourceID string, chunks []string) error {
	if err := r.failFor[sourceID]; err != nil {
		return err
	}
	if r.indexed == nil {
		r.indexed = make(map[string][]string)
	}
	r.indexed[sourceID] = chunks
	return nil
}

func TestIndexService_Index(t *testing.T) {
	corpus := staticCorpus{docs: []domain.SourceDocument{
		{SourceID: "market/survey.md", Chunks: []string{"a", "b"}},
		{SourceID: "empty.txt"},
		{SourceID: "broken.html", Chunks: []string{"c"}},
		{SourceID: "sow.txt", Chunks: []string{"d"}},
	}}
	indexer := &recordingIndexer{failFor: map[string]error{"broken.html": errors.New("embedding failed")}}

	summary, err := NewIndexService(corpus, indexer).Index(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, []string{"broken.html"}, summary.Failed)
	assert.Equal(t, []string{"a", "b"}, indexer.indexed["market/survey.md"])
	assert.NotContains(t, indexer.indexed, "empty.txt")
}

func TestIndexService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		svc     *IndexService
		wantErr error
	}{
		{
			name:    "no indexer",
			svc:     NewIndexService(staticCorpus{}, nil),
			wantErr: domain.ErrRetrievalUnavailable,
		},
		{
			name:    "unreadable corpus",
			svc:     NewIndexService(staticCorpus{err: domain.ErrRetrievalUnavailable}, &recordingIndexer{}),
			wantErr: domain.ErrRetrievalUnavailable,
		},
		{
			name: "cancelled",
			svc: NewIndexService(
				staticCorpus{docs: []domain.SourceDocument{{SourceID: "a.txt", Chunks: []string{"x"}}}},
				&recordingIndexer{failFor: map[string]error{"a.txt": context.Canceled}},
			),
			wantErr: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Index(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

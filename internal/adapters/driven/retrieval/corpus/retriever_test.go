package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/postprocessors/chunker"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func newTestRetriever(t *testing.T, dir string) *Retriever {
	t.Helper()
	loader, err := NewLoader(dir, chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(0)))
	require.NoError(t, err)
	return New(loader)
}

func TestLoader_Load(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"notes.txt":          "Vendors quoted between $1.2M and $1.5M.",
		"reports/survey.md":  "# Survey\n\nThree vendors responded.",
		"reports/page.html":  "<html><body><p>Cloud hosting required.</p></body></html>",
		"image.png":          "binary",
		".hidden/secret.txt": "ignored",
		".draft.txt":         "ignored",
		"empty.txt":          "   ",
	})
	loader, err := NewLoader(dir, nil)
	require.NoError(t, err)

	docs, err := loader.Load(context.Background())

	require.NoError(t, err)
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.SourceID)
	}
	assert.Equal(t, []string{"notes.txt", "reports/page.html", "reports/survey.md"}, ids)
	assert.Equal(t, []string{"Survey\nThree vendors responded."}, docs[2].Chunks)
}

func TestLoader_Errors(t *testing.T) {
	_, err := NewLoader("", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	loader, err := NewLoader(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	_, err = loader.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	loader, err = NewLoader(file, nil)
	require.NoError(t, err)
	_, err = loader.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestRetriever_Query(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.txt": "The system must support cloud hosting and data migration.",
		"b.txt": "Estimated cost is $2.4M over five years for cloud hosting.",
		"c.txt": "Delivery is due by 30 September 2025.",
	})
	r := newTestRetriever(t, dir)

	chunks, err := r.Query(context.Background(), "cloud hosting cost", 5)

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "b.txt", chunks[0].SourceID)
	assert.InDelta(t, 1.0, chunks[0].SimilarityScore, 1e-9)
	assert.Equal(t, "a.txt", chunks[1].SourceID)
	assert.InDelta(t, 2.0/3.0, chunks[1].SimilarityScore, 1e-9)
}

func TestRetriever_QueryLimitsAndEdgeCases(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.txt": "cloud hosting",
		"b.txt": "cloud migration",
		"c.txt": "cloud security",
	})
	r := newTestRetriever(t, dir)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		k     int
		want  int
	}{
		{"k bounds results", "cloud", 2, 2},
		{"zero k", "cloud", 0, 0},
		{"no usable terms", "the and of", 5, 0},
		{"no matches", "payroll", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := r.Query(ctx, tt.query, tt.k)
			require.NoError(t, err)
			assert.NotNil(t, chunks)
			assert.Len(t, chunks, tt.want)
		})
	}
}

func TestRetriever_EqualScoresKeepCorpusOrder(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"b.txt": "cloud",
		"a.txt": "cloud",
	})
	r := newTestRetriever(t, dir)

	chunks, err := r.Query(context.Background(), "cloud", 2)

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a.txt", chunks[0].SourceID)
	assert.Equal(t, "b.txt", chunks[1].SourceID)
}

func TestRetriever_RefreshPicksUpNewFiles(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.txt": "cloud hosting"})
	r := newTestRetriever(t, dir)
	ctx := context.Background()

	chunks, err := r.Query(ctx, "migration", 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("data migration"), 0o600))
	require.NoError(t, r.Refresh(ctx))

	chunks, err = r.Query(ctx, "migration", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "b.txt", chunks[0].SourceID)
}

func TestRetriever_MissingDirectory(t *testing.T) {
	r := newTestRetriever(t, filepath.Join(t.TempDir(), "missing"))

	_, err := r.Query(context.Background(), "cloud", 5)

	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestRetriever_CancelledContext(t *testing.T) {
	r := newTestRetriever(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Query(ctx, "cloud", 5)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTermSet(t *testing.T) {
	terms := termSet("The Contractor shall deliver FAR-compliant reports; cost $2.4M.")

	assert.True(t, terms["contractor"])
	assert.True(t, terms["far"])
	assert.True(t, terms["compliant"])
	assert.False(t, terms["the"])
	assert.False(t, terms["shall"])
	assert.False(t, terms["2"])
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) (*Store, driven.MetadataStore) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store, store.MetadataStore()
}

func testFact(kind domain.FactKind, text string) domain.ExtractedFact {
	return domain.ExtractedFact{
		ID:         text,
		Kind:       kind,
		Text:       text,
		Confidence: 0.9,
		Stage:      domain.StagePattern,
	}
}

func testRecord(docType, program string, facts ...domain.ExtractedFact) domain.DocumentRecord {
	return domain.DocumentRecord{
		DocumentType:  docType,
		ProgramName:   program,
		ExposedFacts:  domain.NewFactSet(facts),
		FileReference: "packages/" + program + "/" + docType + ".md",
	}
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, store.Path())
}

func TestNewStore_ReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.MetadataStore().Commit(ctx, testRecord("mrr", "Apollo"), false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.MetadataStore().AllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMetadataStore_CommitAndGet(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()

	value := 1250000.0
	cost := testFact(domain.FactKindCost, "$1,250,000")
	cost.NumericValue = &value
	cost.Unit = "USD"
	record := testRecord("igce", "Apollo", cost, testFact(domain.FactKindMetric, "99.9% availability"))
	record.GeneratedAt = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	record.Quality = &domain.QualityReport{
		OverallScore: 82.5,
		Grade:        domain.GradeGood,
		Issues:       []string{"Vague phrase: TBD"},
		Suggestions:  []string{},
	}
	record.Refinement = []domain.RefinementIteration{{Iteration: 1, ScoreBefore: 70, ScoreAfter: 82.5, Applied: true}}
	record.Outcome = domain.OutcomeAccepted

	id, err := meta.Commit(ctx, record, false)
	require.NoError(t, err)

	got, err := meta.Get(ctx, "igce", "Apollo")
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(1), got.Sequence)
	assert.True(t, record.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, record.FileReference, got.FileReference)
	assert.Equal(t, record.ExposedFacts.Facts, got.ExposedFacts.Facts)
	require.NotNil(t, got.Quality)
	assert.Equal(t, *record.Quality, *got.Quality)
	assert.Equal(t, record.Refinement, got.Refinement)
	assert.Equal(t, domain.OutcomeAccepted, got.Outcome)
	assert.False(t, got.Superseded)
	assert.Empty(t, got.Supersedes)
}

func TestMetadataStore_GetNotFound(t *testing.T) {
	_, meta := setupTestStore(t)

	_, err := meta.Get(context.Background(), "mrr", "Apollo")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMetadataStore_DuplicateCommit(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()
	first, err := meta.Commit(ctx, testRecord("mrr", "Apollo"), false)
	require.NoError(t, err)

	_, err = meta.Commit(ctx, testRecord("mrr", "Apollo"), false)

	var dup *domain.DuplicateDocumentError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first, dup.ExistingID)
	assert.True(t, errors.Is(err, domain.ErrDuplicateDocument))

	records, err := meta.AllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMetadataStore_OverwriteSupersedes(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()
	first, err := meta.Commit(ctx, testRecord("igce", "Apollo", testFact(domain.FactKindCost, "$1,000,000")), false)
	require.NoError(t, err)
	second, err := meta.Commit(ctx, testRecord("igce", "Apollo", testFact(domain.FactKindCost, "$2,000,000")), true)
	require.NoError(t, err)

	live, err := meta.Get(ctx, "igce", "Apollo")
	require.NoError(t, err)
	assert.Equal(t, second, live.ID)
	assert.Equal(t, first, live.Supersedes)

	records, err := meta.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.True(t, records[0].Superseded)
	assert.Equal(t, "$1,000,000", records[0].ExposedFacts.Facts[0].Text)

	costs, err := meta.Lookup(ctx, "Apollo", domain.FactKindCost)
	require.NoError(t, err)
	require.Equal(t, 1, costs.Len())
	assert.Equal(t, "$2,000,000", costs.Facts[0].Text)
}

func TestMetadataStore_OverwriteLeavesEarlierRowsUntouched(t *testing.T) {
	store, meta := setupTestStore(t)
	ctx := context.Background()
	var ids []domain.DocumentID
	for _, cost := range []string{"$1,000,000", "$2,000,000", "$3,000,000"} {
		id, err := meta.Commit(ctx, testRecord("igce", "Apollo", testFact(domain.FactKindCost, cost)), true)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := meta.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	tests := []struct {
		supersedes domain.DocumentID
		superseded bool
	}{
		{"", true},
		{ids[0], true},
		{ids[1], false},
	}
	for i, tt := range tests {
		assert.Equal(t, ids[i], records[i].ID)
		assert.Equal(t, tt.supersedes, records[i].Supersedes, "record %d", i)
		assert.Equal(t, tt.superseded, records[i].Superseded, "record %d", i)
	}

	var live int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM live_documents").Scan(&live))
	assert.Equal(t, 1, live)
}

func TestMetadataStore_LookupMostRecentWins(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()
	older := testFact(domain.FactKindDate, "2026-01-15")
	older.Key = "award_date"
	newer := testFact(domain.FactKindDate, "2026-03-01")
	newer.Key = "award_date"

	_, err := meta.Commit(ctx, testRecord("plan", "Apollo", older, testFact(domain.FactKindDate, "2026-06-30")), false)
	require.NoError(t, err)
	_, err = meta.Commit(ctx, testRecord("pws", "Apollo", newer), false)
	require.NoError(t, err)

	dates, err := meta.Lookup(ctx, "Apollo", domain.FactKindDate)
	require.NoError(t, err)

	require.Equal(t, 2, dates.Len())
	assert.Equal(t, "2026-03-01", dates.Facts[0].Text)
	assert.Equal(t, "2026-06-30", dates.Facts[1].Text)

	planOnly, err := meta.Lookup(ctx, "Apollo", domain.FactKindDate, "plan")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", planOnly.Facts[0].Text)
}

func TestMetadataStore_LookupFilters(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()
	_, _ = meta.Commit(ctx, testRecord("mrr", "Apollo", testFact(domain.FactKindEntity, "Acme Corp")), false)
	_, _ = meta.Commit(ctx, testRecord("plan", "Apollo", testFact(domain.FactKindEntity, "Globex")), false)
	_, _ = meta.Commit(ctx, testRecord("mrr", "Gemini", testFact(domain.FactKindEntity, "Initech")), false)

	tests := []struct {
		name    string
		program string
		kind    domain.FactKind
		types   []string
		want    []string
	}{
		{"all types", "Apollo", domain.FactKindEntity, nil, []string{"Acme Corp", "Globex"}},
		{"two types", "Apollo", domain.FactKindEntity, []string{"plan", "mrr"}, []string{"Acme Corp", "Globex"}},
		{"one type", "Apollo", domain.FactKindEntity, []string{"plan"}, []string{"Globex"}},
		{"other program", "Gemini", domain.FactKindEntity, nil, []string{"Initech"}},
		{"other kind", "Apollo", domain.FactKindCost, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := meta.Lookup(ctx, tt.program, tt.kind, tt.types...)
			require.NoError(t, err)
			var texts []string
			for _, f := range set.Facts {
				texts = append(texts, f.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}

	_, err := meta.Lookup(ctx, "Apollo", domain.FactKind("price"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMetadataStore_CancelledCommitLeavesNoRecord(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := meta.Commit(ctx, testRecord("mrr", "Apollo", testFact(domain.FactKindCost, "$5")), false)
	require.Error(t, err)

	records, err := meta.AllRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMetadataStore_RejectsIncompleteRecord(t *testing.T) {
	_, meta := setupTestStore(t)

	_, err := meta.Commit(context.Background(), testRecord("mrr", ""), false)

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMetadataStore_ConcurrentCommits(t *testing.T) {
	_, meta := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := meta.Commit(ctx, testRecord(fmt.Sprintf("doc_%d", n), "Apollo",
				testFact(domain.FactKindRequirement, fmt.Sprintf("The system shall do %d", n))), false)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := meta.AllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 10)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Sequence)
	}

	reqs, err := meta.Lookup(ctx, "Apollo", domain.FactKindRequirement)
	require.NoError(t, err)
	assert.Equal(t, 10, reqs.Len())
}

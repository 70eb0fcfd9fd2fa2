package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
// Records are kept in commit order and copied on the way in and out, so
// callers never share slices with the store.
type MetadataStore struct {
	mu       sync.RWMutex
	records  []domain.DocumentRecord
	live     map[string]int // program/type -> index into records
	sequence int64
	now      func() time.Time
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		live: make(map[string]int),
		now:  time.Now,
	}
}

// Commit appends a record.
func (s *MetadataStore) Commit(
	ctx context.Context,
	record domain.DocumentRecord,
	overwrite bool,
) (domain.DocumentID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if record.DocumentType == "" || record.ProgramName == "" {
		return "", domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := liveKey(record.ProgramName, record.DocumentType)
	prev, exists := s.live[key]
	if exists && !overwrite {
		return "", &domain.DuplicateDocumentError{
			DocumentType: record.DocumentType,
			ProgramName:  record.ProgramName,
			ExistingID:   s.records[prev].ID,
		}
	}

	s.sequence++
	committed := cloneRecord(record)
	committed.ID = domain.DocumentID(uuid.New().String())
	committed.Sequence = s.sequence
	committed.Superseded = false
	committed.Supersedes = ""
	if committed.GeneratedAt.IsZero() {
		committed.GeneratedAt = s.now()
	}
	if exists {
		committed.Supersedes = s.records[prev].ID
	}

	s.records = append(s.records, committed)
	s.live[key] = len(s.records) - 1
	return committed.ID, nil
}

// Lookup merges facts of kind across the program's live records.
func (s *MetadataStore) Lookup(
	ctx context.Context,
	program string,
	kind domain.FactKind,
	documentTypes ...string,
) (domain.FactSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.FactSet{}, err
	}
	if !kind.IsValid() {
		return domain.FactSet{}, domain.ErrInvalidInput
	}

	s.mu.RLock()
	matched := make([]domain.DocumentRecord, 0, len(s.live))
	for _, i := range s.live {
		r := s.records[i]
		if r.ProgramName == program && r.Matches(documentTypes) {
			matched = append(matched, cloneRecord(r))
		}
	}
	s.mu.RUnlock()

	return domain.MergeLatest(matched, kind), nil
}

// Get returns the live record for a document type and program.
func (s *MetadataStore) Get(ctx context.Context, documentType, program string) (*domain.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.live[liveKey(program, documentType)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r := cloneRecord(s.records[i])
	return &r, nil
}

// AllRecords returns every record in commit order.
func (s *MetadataStore) AllRecords(ctx context.Context) ([]domain.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	superseded := make(map[domain.DocumentID]bool, len(s.records))
	for _, r := range s.records {
		if r.Supersedes != "" {
			superseded[r.Supersedes] = true
		}
	}
	out := make([]domain.DocumentRecord, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
		out[i].Superseded = superseded[r.ID]
	}
	return out, nil
}

// Close is a no-op.
func (s *MetadataStore) Close() error {
	return nil
}

func liveKey(program, documentType string) string {
	return program + "\x00" + documentType
}

func cloneRecord(r domain.DocumentRecord) domain.DocumentRecord {
	r.ExposedFacts.Facts = append([]domain.ExtractedFact(nil), r.ExposedFacts.Facts...)
	r.Refinement = append([]domain.RefinementIteration(nil), r.Refinement...)
	if r.Quality != nil {
		q := *r.Quality
		q.Issues = append([]string(nil), q.Issues...)
		q.Suggestions = append([]string(nil), q.Suggestions...)
		r.Quality = &q
	}
	return r
}

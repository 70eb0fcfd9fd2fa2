package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

// Document rows are never updated. A record is superseded when a later
// record names it in supersedes; live_documents points at the current one.
const documentColumns = `d.sequence, d.id, d.document_type, d.program_name, d.generated_at,
	d.file_reference, d.supersedes,
	EXISTS (SELECT 1 FROM documents n WHERE n.supersedes = d.id),
	d.quality, d.refinement, d.outcome`

// Commit appends a record and its facts in one transaction.
func (s *metadataStore) Commit(
	ctx context.Context,
	record domain.DocumentRecord,
	overwrite bool,
) (domain.DocumentID, error) {
	if record.DocumentType == "" || record.ProgramName == "" {
		return "", domain.ErrInvalidInput
	}

	qualityJSON, err := json.Marshal(record.Quality)
	if err != nil {
		return "", fmt.Errorf("marshalling quality report: %w", err)
	}
	refinementJSON, err := json.Marshal(record.Refinement)
	if err != nil {
		return "", fmt.Errorf("marshalling refinement history: %w", err)
	}
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = time.Now()
	}

	s.store.commitMu.Lock()
	defer s.store.commitMu.Unlock()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT document_id FROM live_documents
		WHERE program_name = ? AND document_type = ?
	`, record.ProgramName, record.DocumentType).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = ""
	case err != nil:
		return "", fmt.Errorf("checking live record: %w", err)
	case !overwrite:
		return "", &domain.DuplicateDocumentError{
			DocumentType: record.DocumentType,
			ProgramName:  record.ProgramName,
			ExistingID:   domain.DocumentID(existing),
		}
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents
			(id, document_type, program_name, generated_at, file_reference,
			 supersedes, quality, refinement, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, record.DocumentType, record.ProgramName, record.GeneratedAt.UTC(), record.FileReference,
		nullString(existing), string(qualityJSON), string(refinementJSON), string(record.Outcome)); err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO live_documents (program_name, document_type, document_id) VALUES (?, ?, ?)
		ON CONFLICT (program_name, document_type) DO UPDATE SET document_id = excluded.document_id
	`, record.ProgramName, record.DocumentType, id); err != nil {
		return "", fmt.Errorf("marking %s live: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facts (document_id, position, kind, data) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, f := range record.ExposedFacts.Facts {
		data, err := json.Marshal(f)
		if err != nil {
			return "", fmt.Errorf("marshalling fact: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(f.Kind), string(data)); err != nil {
			return "", fmt.Errorf("saving fact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return domain.DocumentID(id), nil
}

// Lookup merges facts of kind across the program's live records.
func (s *metadataStore) Lookup(
	ctx context.Context,
	program string,
	kind domain.FactKind,
	documentTypes ...string,
) (domain.FactSet, error) {
	if !kind.IsValid() {
		return domain.FactSet{}, domain.ErrInvalidInput
	}

	query := `
		SELECT d.id, d.sequence, d.document_type, f.data
		FROM facts f
		JOIN documents d ON d.id = f.document_id
		JOIN live_documents l ON l.document_id = d.id
		WHERE d.program_name = ? AND f.kind = ?`
	args := []any{program, string(kind)}
	if len(documentTypes) > 0 {
		query += " AND d.document_type IN (?" + strings.Repeat(", ?", len(documentTypes)-1) + ")"
		for _, t := range documentTypes {
			args = append(args, t)
		}
	}
	query += " ORDER BY d.sequence, f.position"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.FactSet{}, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord
	var facts []domain.ExtractedFact
	flush := func() {
		if len(records) > 0 {
			records[len(records)-1].ExposedFacts = domain.FactSet{Facts: facts}
		}
		facts = nil
	}
	for rows.Next() {
		var id, docType, data string
		var sequence int64
		if err := rows.Scan(&id, &sequence, &docType, &data); err != nil {
			return domain.FactSet{}, fmt.Errorf("scanning fact: %w", err)
		}
		if len(records) == 0 || string(records[len(records)-1].ID) != id {
			flush()
			records = append(records, domain.DocumentRecord{
				ID:           domain.DocumentID(id),
				Sequence:     sequence,
				DocumentType: docType,
				ProgramName:  program,
			})
		}
		var f domain.ExtractedFact
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return domain.FactSet{}, fmt.Errorf("unmarshalling fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return domain.FactSet{}, fmt.Errorf("iterating facts: %w", err)
	}
	flush()

	return domain.MergeLatest(records, kind), nil
}

// Get returns the live record for a document type and program.
func (s *metadataStore) Get(ctx context.Context, documentType, program string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM live_documents l JOIN documents d ON d.id = l.document_id
		WHERE l.document_type = ? AND l.program_name = ?
	`, documentType, program)

	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	facts, err := s.facts(ctx, string(record.ID))
	if err != nil {
		return nil, err
	}
	record.ExposedFacts = domain.NewFactSet(facts[string(record.ID)])
	return record, nil
}

// AllRecords returns every record in commit order.
func (s *metadataStore) AllRecords(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents d ORDER BY d.sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	facts, err := s.facts(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].ExposedFacts = domain.NewFactSet(facts[string(records[i].ID)])
	}
	return records, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *metadataStore) Close() error {
	return nil
}

// facts loads facts grouped by document ID, for one document or all.
func (s *metadataStore) facts(ctx context.Context, documentID string) (map[string][]domain.ExtractedFact, error) {
	query := "SELECT document_id, data FROM facts"
	var args []any
	if documentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, documentID)
	}
	query += " ORDER BY document_id, position"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.ExtractedFact)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		var f domain.ExtractedFact
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("unmarshalling fact: %w", err)
		}
		out[id] = append(out[id], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.DocumentRecord, error) {
	var r domain.DocumentRecord
	var id, outcome string
	var supersedes, qualityJSON, refinementJSON sql.NullString
	var superseded bool
	if err := row.Scan(&r.Sequence, &id, &r.DocumentType, &r.ProgramName, &r.GeneratedAt,
		&r.FileReference, &supersedes, &superseded, &qualityJSON, &refinementJSON, &outcome); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	r.ID = domain.DocumentID(id)
	r.Supersedes = domain.DocumentID(supersedes.String)
	r.Superseded = superseded
	r.Outcome = domain.RefinementOutcome(outcome)

	if qualityJSON.Valid && qualityJSON.String != jsonNull {
		var q domain.QualityReport
		if err := json.Unmarshal([]byte(qualityJSON.String), &q); err != nil {
			return nil, fmt.Errorf("unmarshalling quality report: %w", err)
		}
		r.Quality = &q
	}
	if refinementJSON.Valid && refinementJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(refinementJSON.String), &r.Refinement); err != nil {
			return nil, fmt.Errorf("unmarshalling refinement history: %w", err)
		}
	}
	return &r, nil
}

package driven

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// MetadataStore is the append-only registry of committed documents and the
// facts they exposed. Implementations must be safe for concurrent use.
// Only the orchestrator commits; extraction only reads.
type MetadataStore interface {
	// Commit appends a record and returns its ID. If a live record exists
	// for the same document type and program, Commit returns a
	// *domain.DuplicateDocumentError unless overwrite is true, in which case
	// the existing record is marked superseded and retained for audit.
	// The store assigns ID, Sequence and (if zero) GeneratedAt.
	Commit(ctx context.Context, record domain.DocumentRecord, overwrite bool) (domain.DocumentID, error)

	// Lookup merges facts of kind across live records of the program whose
	// type is in documentTypes (all types when empty). The most recently
	// committed record wins for the same logical fact.
	Lookup(ctx context.Context, program string, kind domain.FactKind, documentTypes ...string) (domain.FactSet, error)

	// Get returns the live record for a document type and program.
	// Returns domain.ErrNotFound if none exists.
	Get(ctx context.Context, documentType, program string) (*domain.DocumentRecord, error)

	// AllRecords returns every record, superseded included, in commit order.
	AllRecords(ctx context.Context) ([]domain.DocumentRecord, error)

	// Close releases resources.
	Close() error
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown document type, provider or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Structured extraction and refinement are skipped without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRetrievalUnavailable indicates no retriever is configured.
	// Extraction degrades to fallback facts without source material.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrExtractionDegraded is informational: a fact kind fell through to
	// the fallback stage. It is logged, never returned to callers.
	ErrExtractionDegraded = errors.New("extraction degraded")

	// ErrDuplicateDocument indicates a record already exists for the
	// document type and program.
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrSchemaValidation indicates a structured generation response did not
	// match the requested shape. It never leaves the extraction service.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrRefinementExhausted is informational: the refinement loop reached
	// its iteration cap without meeting the threshold.
	ErrRefinementExhausted = errors.New("refinement exhausted")

	// ErrDependencyUnresolved indicates an upstream document or fact a
	// document consumes has not been committed.
	ErrDependencyUnresolved = errors.New("dependency unresolved")

	// ErrCyclicDependency indicates the catalogue's dependency graph has a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

// DuplicateDocumentError is returned by a metadata store commit when a
// record for the same document type and program already exists.
type DuplicateDocumentError struct {
	DocumentType string
	ProgramName  string
	ExistingID   DocumentID
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("%s: %s for program %q already committed as %s",
		ErrDuplicateDocument, e.DocumentType, e.ProgramName, e.ExistingID)
}

func (e *DuplicateDocumentError) Unwrap() error { return ErrDuplicateDocument }

// SchemaValidationError describes why a structured response was rejected.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrSchemaValidation, e.Reason)
	}
	return fmt.Sprintf("%s: field %s: %s", ErrSchemaValidation, e.Field, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }

// DependencyUnresolvedError names the upstream documents and fact kinds a
// document needs but cannot find in the metadata store.
type DependencyUnresolvedError struct {
	DocumentType     string
	MissingDocuments []string
	MissingKinds     []FactKind
}

func (e *DependencyUnresolvedError) Error() string {
	var parts []string
	if len(e.MissingDocuments) > 0 {
		parts = append(parts, "missing documents "+strings.Join(e.MissingDocuments, ", "))
	}
	if len(e.MissingKinds) > 0 {
		kinds := make([]string, len(e.MissingKinds))
		for i, k := range e.MissingKinds {
			kinds[i] = string(k)
		}
		parts = append(parts, "missing facts "+strings.Join(kinds, ", "))
	}
	return fmt.Sprintf("%s: %s: %s", ErrDependencyUnresolved, e.DocumentType, strings.Join(parts, "; "))
}

func (e *DependencyUnresolvedError) Unwrap() error { return ErrDependencyUnresolved }

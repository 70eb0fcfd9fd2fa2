package driven

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// RenderInput is everything a template needs to populate a document.
type RenderInput struct {
	Spec        domain.DocumentSpec
	ProgramName string
	Description string
	Facts       domain.FactSet
	Chunks      []domain.Chunk
}

// Renderer populates a document template with facts.
// Output format is the renderer's concern; the core only scores text.
type Renderer interface {
	// Render returns the populated document text for the given template.
	// An unknown template falls back to the default template.
	Render(ctx context.Context, templateID string, input RenderInput) (string, error)
}

// ArtifactStore persists rendered documents and returns a file reference.
type ArtifactStore interface {
	// Save writes the document and returns a reference to it. Every call
	// yields a new reference; earlier documents are left in place.
	Save(ctx context.Context, program, documentType string, sequence int, content string) (string, error)

	// Discard removes a saved document whose record was never committed.
	Discard(ctx context.Context, reference string) error

	// Load reads a document by reference.
	Load(ctx context.Context, reference string) (string, error)
}

package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptFactExtraction asks for facts of one kind as JSON.
	// The template expects %s (kind), %s (JSON schema) and %s (source text).
	PromptFactExtraction = "fact_extraction"

	// PromptDocumentRevision asks for a revised draft.
	// The template expects %s (document title), %s (findings) and %s (draft).
	PromptDocumentRevision = "document_revision"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}

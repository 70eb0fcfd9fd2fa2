package services

import "github.com/custodia-labs/acqgen/internal/core/ports/driven"

// DefaultPrompts returns the built-in prompt templates by name. Prompt
// stores seed user-editable files from these.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptFactExtraction:   defaultFactExtractionPrompt,
		driven.PromptDocumentRevision: defaultDocumentRevisionPrompt,
	}
}

package driven

import "context"

// Normaliser converts a source file into plain text for chunking.
// Each normaliser handles specific file extensions (e.g. ".html", ".md").
type Normaliser interface {
	// Extensions returns the lower-case file extensions this normaliser handles.
	Extensions() []string

	// Normalise returns the text content of the file.
	Normalise(ctx context.Context, name string, content []byte) (string, error)
}

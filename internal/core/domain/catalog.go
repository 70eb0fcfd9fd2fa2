package domain

import "fmt"

// Phase is a procurement phase.
type Phase string

// Procurement phases in order.
const (
	PhasePreSolicitation  Phase = "pre_solicitation"
	PhaseSolicitation     Phase = "solicitation"
	PhasePostSolicitation Phase = "post_solicitation"
)

// IsValid returns true if the phase is recognised.
func (p Phase) IsValid() bool {
	switch p {
	case PhasePreSolicitation, PhaseSolicitation, PhasePostSolicitation:
		return true
	default:
		return false
	}
}

// Description returns a human-readable phase name.
func (p Phase) Description() string {
	switch p {
	case PhasePreSolicitation:
		return "Pre-Solicitation"
	case PhaseSolicitation:
		return "Solicitation"
	case PhasePostSolicitation:
		return "Post-Solicitation"
	default:
		return "Unknown"
	}
}

// SectionSpec describes one required section of a document and the fact
// kinds that populate it.
type SectionSpec struct {
	Title string     `json:"title" yaml:"title"`
	Kinds []FactKind `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

// DocumentSpec is the catalogue entry for one document type.
type DocumentSpec struct {
	// Type is the stable identifier, e.g. "acquisition_plan".
	Type string `json:"type" yaml:"type"`

	// Title is the display name.
	Title string `json:"title" yaml:"title"`

	Phase Phase `json:"phase" yaml:"phase"`

	// DependsOn lists document types that must be committed first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Consumes lists fact kinds owed by the upstream documents.
	Consumes []FactKind `json:"consumes,omitempty" yaml:"consumes,omitempty"`

	// Extract lists fact kinds extracted from retrieved context.
	Extract []FactKind `json:"extract" yaml:"extract"`

	// Query is the retrieval query; the program description is appended.
	Query string `json:"query" yaml:"query"`

	// Template identifies the renderer template.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	Sections []SectionSpec `json:"sections" yaml:"sections"`

	// RequiredClauses are regulatory references the document must cite.
	RequiredClauses []string `json:"required_clauses,omitempty" yaml:"required_clauses,omitempty"`

	MinWords int `json:"min_words" yaml:"min_words"`
}

// RequiredSections returns the section titles.
func (d DocumentSpec) RequiredSections() []string {
	titles := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		titles[i] = s.Title
	}
	return titles
}

// Catalog is the ordered list of document types in a package. List order is
// the default generation order; DependsOn edges constrain it.
type Catalog struct {
	Documents []DocumentSpec `json:"documents" yaml:"documents"`
}

// Get returns the spec for a document type.
func (c Catalog) Get(documentType string) (DocumentSpec, bool) {
	for _, d := range c.Documents {
		if d.Type == documentType {
			return d, true
		}
	}
	return DocumentSpec{}, false
}

// Types returns the document types in list order.
func (c Catalog) Types() []string {
	types := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		types[i] = d.Type
	}
	return types
}

// Validate checks that types are unique and known, phases and kinds are
// valid and every dependency refers to a catalogued document.
func (c Catalog) Validate() error {
	if len(c.Documents) == 0 {
		return fmt.Errorf("%w: catalogue has no documents", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.Documents))
	for _, d := range c.Documents {
		if d.Type == "" {
			return fmt.Errorf("%w: document with empty type", ErrInvalidInput)
		}
		if seen[d.Type] {
			return fmt.Errorf("%w: duplicate document type %s", ErrInvalidInput, d.Type)
		}
		seen[d.Type] = true
		if !d.Phase.IsValid() {
			return fmt.Errorf("%w: %s has invalid phase %q", ErrInvalidInput, d.Type, d.Phase)
		}
		for _, k := range append(append([]FactKind{}, d.Extract...), d.Consumes...) {
			if !k.IsValid() {
				return fmt.Errorf("%w: %s has invalid fact kind %q", ErrInvalidInput, d.Type, k)
			}
		}
		for _, s := range d.Sections {
			for _, k := range s.Kinds {
				if !k.IsValid() {
					return fmt.Errorf("%w: %s section %q has invalid fact kind %q", ErrInvalidInput, d.Type, s.Title, k)
				}
			}
		}
	}
	for _, d := range c.Documents {
		for _, dep := range d.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: %s depends on unknown document %s", ErrInvalidInput, d.Type, dep)
			}
			if dep == d.Type {
				return fmt.Errorf("%w: %s depends on itself", ErrCyclicDependency, d.Type)
			}
		}
	}
	return nil
}

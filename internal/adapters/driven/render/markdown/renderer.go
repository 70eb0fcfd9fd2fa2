// Package markdown renders acquisition documents as Markdown from Go text
// templates.
//
// Every document uses the embedded "document" template unless a template
// with the document's template ID is found in the override directory
// (<id>.md.tmpl). Templates receive a View.
package markdown

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

//go:embed templates/*.md.tmpl
var builtin embed.FS

// DefaultTemplate is the template used when no override exists.
const DefaultTemplate = "document"

// View is the data passed to templates.
type View struct {
	Title       string
	Program     string
	Phase       string
	Description string
	Sections    []SectionView
	Clauses     []string
	Sources     []SourceView
}

// SectionView is one document section and the facts placed in it.
type SectionView struct {
	Title    string
	Facts    []FactView
	Fallback string
}

// FactView is a fact with its source citation number, if any.
type FactView struct {
	Text     string
	Kind     string
	Citation int
}

// SourceView is a numbered source reference.
type SourceView struct {
	Index int
	ID    string
}

// Renderer is a text/template based Renderer.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the built-in templates and any *.md.tmpl files in
// overrideDir. An empty or missing overrideDir uses the built-ins only.
func NewRenderer(overrideDir string) (*Renderer, error) {
	tmpl := template.New("").Funcs(template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
	})

	entries, err := builtin.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("reading built-in templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		if _, err := tmpl.New(templateName(e.Name())).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", e.Name(), err)
		}
	}

	if overrideDir != "" {
		paths, _ := filepath.Glob(filepath.Join(overrideDir, "*.md.tmpl"))
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading template %s: %w", path, err)
			}
			if _, err := tmpl.New(templateName(filepath.Base(path))).Parse(string(data)); err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", path, err)
			}
		}
	}

	return &Renderer{templates: tmpl}, nil
}

// Render populates the template named templateID, or the default
// template when none has that name.
func (r *Renderer) Render(ctx context.Context, templateID string, input driven.RenderInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpl := r.templates.Lookup(templateID)
	if tmpl == nil {
		tmpl = r.templates.Lookup(DefaultTemplate)
	}
	if tmpl == nil {
		return "", fmt.Errorf("%w: template %s", domain.ErrNotFound, templateID)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewView(input)); err != nil {
		return "", fmt.Errorf("render %s: %w", input.Spec.Type, err)
	}
	return buf.String(), nil
}

// Templates lists the available template names.
func (r *Renderer) Templates() []string {
	var names []string
	for _, t := range r.templates.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	return names
}

// NewView arranges facts into the document's sections. A fact is placed in
// every section that lists its kind; sections without kinds get a short
// statement naming the program. Facts are cited by the position of their
// source among the retrieved chunks.
func NewView(input driven.RenderInput) View {
	citations := make(map[string]int)
	var sources []SourceView
	for _, c := range input.Chunks {
		if c.SourceID == "" {
			continue
		}
		if _, ok := citations[c.SourceID]; !ok {
			citations[c.SourceID] = len(sources) + 1
			sources = append(sources, SourceView{Index: len(sources) + 1, ID: c.SourceID})
		}
	}

	view := View{
		Title:       input.Spec.Title,
		Program:     input.ProgramName,
		Phase:       input.Spec.Phase.Description(),
		Description: strings.TrimSpace(input.Description),
		Clauses:     input.Spec.RequiredClauses,
		Sources:     sources,
	}
	if view.Title == "" {
		view.Title = input.Spec.Type
	}

	for _, s := range input.Spec.Sections {
		section := SectionView{Title: s.Title}
		for _, kind := range s.Kinds {
			for _, f := range input.Facts.ByKind(kind) {
				section.Facts = append(section.Facts, FactView{
					Text:     f.Text,
					Kind:     string(f.Kind),
					Citation: citations[f.SourceID],
				})
			}
		}
		if len(section.Facts) == 0 {
			section.Fallback = fmt.Sprintf("This section covers %s for %s.",
				strings.ToLower(s.Title), input.ProgramName)
		}
		view.Sections = append(view.Sections, section)
	}
	return view
}

// templateName strips the .md.tmpl suffix.
func templateName(file string) string {
	return strings.TrimSuffix(file, ".md.tmpl")
}

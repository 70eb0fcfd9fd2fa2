package markdown

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

func testInput() driven.RenderInput {
	return driven.RenderInput{
		Spec: domain.DocumentSpec{
			Type:  "igce",
			Title: "Independent Government Cost Estimate",
			Phase: domain.PhasePreSolicitation,
			Sections: []domain.SectionSpec{
				{Title: "Cost Breakdown", Kinds: []domain.FactKind{domain.FactKindCost}},
				{Title: "Assumptions"},
			},
			RequiredClauses: []string{"FAR 36.203"},
		},
		ProgramName: "Apollo",
		Description: "Cloud hosting modernisation",
		Facts: domain.NewFactSet([]domain.ExtractedFact{
			{Kind: domain.FactKindCost, Text: "$1,250,000 for labor", SourceID: "budget.md", Stage: domain.StagePattern},
			{Kind: domain.FactKindCost, Text: "$40,000 for travel", Stage: domain.StageStructured},
			{Kind: domain.FactKindDate, Text: "2026-10-01", SourceID: "plan.md", Stage: domain.StagePattern},
		}),
		Chunks: []domain.Chunk{
			{Text: "labor", SourceID: "budget.md"},
			{Text: "more labor", SourceID: "budget.md"},
			{Text: "dates", SourceID: "plan.md"},
		},
	}
}

func TestRenderer_DefaultTemplate(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	out, err := r.Render(context.Background(), "igce", testInput())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Independent Government Cost Estimate\n"))
	assert.Contains(t, out, "**Program:** Apollo")
	assert.Contains(t, out, "**Phase:** Pre-Solicitation")
	assert.Contains(t, out, "Cloud hosting modernisation")
	assert.Contains(t, out, "## Cost Breakdown\n\n- $1,250,000 for labor [1]\n- $40,000 for travel\n")
	assert.Contains(t, out, "## Assumptions\n\nThis section covers assumptions for Apollo.")
	assert.Contains(t, out, "## Regulatory References\n\n- FAR 36.203\n")
	assert.Contains(t, out, "## Sources\n\n[1] budget.md\n[2] plan.md\n")
	assert.NotContains(t, out, "2026-10-01", "facts of kinds no section lists are not rendered")
}

func TestRenderer_OverrideTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "igce.md.tmpl"),
		[]byte("# {{.Title}} for {{.Program}}\n{{range .Sections}}{{.Title}};{{end}}"), 0600))
	r, err := NewRenderer(dir)
	require.NoError(t, err)

	out, err := r.Render(context.Background(), "igce", testInput())
	require.NoError(t, err)
	assert.Equal(t, "# Independent Government Cost Estimate for Apollo\nCost Breakdown;Assumptions;", out)

	// Other templates still use the default.
	other, err := r.Render(context.Background(), "pws", testInput())
	require.NoError(t, err)
	assert.Contains(t, other, "## Cost Breakdown")
	assert.ElementsMatch(t, []string{"document", "igce"}, r.Templates())
}

func TestNewRenderer_BadOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md.tmpl"), []byte("{{.Title"), 0600))

	_, err := NewRenderer(dir)

	assert.Error(t, err)
}

func TestRenderer_CancelledContext(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Render(ctx, "igce", testInput())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewView(t *testing.T) {
	input := testInput()
	input.Spec.Title = ""
	input.Chunks = nil

	view := NewView(input)

	assert.Equal(t, "igce", view.Title)
	assert.Empty(t, view.Sources)
	require.Len(t, view.Sections, 2)
	for _, f := range view.Sections[0].Facts {
		assert.Zero(t, f.Citation)
	}
	assert.NotEmpty(t, view.Sections[1].Fallback)
}

package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".md", ".markdown"}, New().Extensions())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "headings and paragraphs",
			content: "# Market Research\n\nThree vendors **responded** to the notice.\n\n## Pricing\n\nQuotes were *consistent*.",
			want:    "Market Research\nThree vendors responded to the notice.\nPricing\nQuotes were consistent.",
		},
		{
			name:    "links keep their label",
			content: "See the [FAR 10.001](https://www.acquisition.gov/far/10.001) guidance.",
			want:    "See the FAR 10.001 guidance.",
		},
		{
			name:    "code and images dropped",
			content: "Before\n\n```\nsecret()\n```\n\n![diagram](d.png)\n\nAfter",
			want:    "Before\nAfter",
		},
		{
			name:    "list items one per line",
			content: "- Deliver monthly reports\n- Maintain 99.9% uptime\n\n1. Phase one",
			want:    "Deliver monthly reports\nMaintain 99.9% uptime\nPhase one",
		},
		{
			name:    "soft breaks joined",
			content: "The contractor shall\nprovide support.",
			want:    "The contractor shall provide support.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Normalise(context.Background(), "notes.md", []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalise_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Normalise(ctx, "notes.md", []byte("# x"))
	assert.ErrorIs(t, err, context.Canceled)
}

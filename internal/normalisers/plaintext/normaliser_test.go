package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	exts := New().Extensions()

	assert.Contains(t, exts, ".txt")
	assert.Contains(t, exts, ".csv")
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"unchanged", []byte("Line one\nLine two"), "Line one\nLine two"},
		{"byte order mark", []byte("\xEF\xBB\xBFHello"), "Hello"},
		{"windows line endings", []byte("a\r\nb\rc"), "a\nb\nc"},
		{"trailing whitespace", []byte("a  \t\nb\n\n"), "a\nb"},
		{"invalid utf8", []byte("cost \xff estimate"), "cost � estimate"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Normalise(context.Background(), "notes.txt", tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalise_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Normalise(ctx, "notes.txt", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

var testPrompts = map[string]string{
	driven.PromptFactExtraction:   "Extract %s facts matching %s from:\n%s",
	driven.PromptDocumentRevision: "Revise the %s.\nFindings:\n%s\nDraft:\n%s",
}

func newTestPromptStore(t *testing.T, dir string) *PromptStore {
	t.Helper()
	store, err := NewPromptStore(dir, testPrompts)
	require.NoError(t, err)
	return store
}

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store := newTestPromptStore(t, dir)

	assert.Equal(t, dir, store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)

	_, err := store.Load(driven.PromptFactExtraction)
	require.NoError(t, err)

	for _, f := range []string{"fact_extraction.txt", "document_revision.txt", "README.md"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "`document_revision.txt`")
}

func TestPromptStore_Load_ReturnsDefaultContent(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	prompt, err := store.Load(driven.PromptDocumentRevision)

	require.NoError(t, err)
	assert.Equal(t, testPrompts[driven.PromptDocumentRevision], prompt)
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	customContent := "My custom prompt: %s %s %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fact_extraction.txt"), []byte(customContent), 0600))
	store := newTestPromptStore(t, dir)

	prompt, err := store.Load(driven.PromptFactExtraction)

	require.NoError(t, err)
	assert.Equal(t, customContent, prompt)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		name  string
		setup func(path string)
	}{
		{"deleted", func(path string) { _ = os.Remove(path) }},
		{"blank", func(path string) { _ = os.WriteFile(path, []byte("  \n"), 0600) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store := newTestPromptStore(t, dir)
			_, _ = store.Load(driven.PromptFactExtraction)
			tt.setup(filepath.Join(dir, "fact_extraction.txt"))
			store.Reload()

			prompt, err := store.Load(driven.PromptFactExtraction)

			require.NoError(t, err)
			assert.Equal(t, testPrompts[driven.PromptFactExtraction], prompt)
		})
	}
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	_, err := store.Load("nonexistent_prompt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CachesUntilReload(t *testing.T) {
	dir := t.TempDir()
	store := newTestPromptStore(t, dir)
	first, err := store.Load(driven.PromptFactExtraction)
	require.NoError(t, err)

	modified := "modified: %s %s %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fact_extraction.txt"), []byte(modified), 0600))

	cached, err := store.Load(driven.PromptFactExtraction)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptFactExtraction)
	require.NoError(t, err)
	assert.Equal(t, modified, fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store := newTestPromptStore(t, t.TempDir())

	const goroutines = 50
	var wg sync.WaitGroup
	results := make(chan string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptFactExtraction)
			assert.NoError(t, err)
			results <- prompt
		}()
	}
	wg.Wait()
	close(results)

	for prompt := range results {
		assert.Equal(t, testPrompts[driven.PromptFactExtraction], prompt)
	}
}

func TestPromptStore_DoesNotOverwriteExistingFiles(t *testing.T) {
	dir := t.TempDir()
	customContent := "pre-existing custom prompt"
	path := filepath.Join(dir, "document_revision.txt")
	require.NoError(t, os.WriteFile(path, []byte(customContent), 0600))
	store := newTestPromptStore(t, dir)

	_, _ = store.Load(driven.PromptFactExtraction)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, customContent, string(data))
}

func TestPromptStore_TrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fact_extraction.txt"), []byte("\n\n  prompt content  \n\n"), 0600))
	store := newTestPromptStore(t, dir)

	prompt, err := store.Load(driven.PromptFactExtraction)

	require.NoError(t, err)
	assert.Equal(t, "prompt content", prompt)
}

func TestNewPromptStore_CopiesDefaults(t *testing.T) {
	defaults := map[string]string{"x": "original"}
	store, err := NewPromptStore(t.TempDir(), defaults)
	require.NoError(t, err)
	defaults["x"] = "mutated"

	prompt, err := store.Load("x")

	require.NoError(t, err)
	assert.Equal(t, "original", prompt)
}

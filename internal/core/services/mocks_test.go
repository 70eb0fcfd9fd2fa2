package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu        sync.Mutex
	response  string
	responses []string
	err       error
	block     bool
	prompts   []string
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]
		return r, nil
	}
	return m.response, nil
}

func (m *mockLLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
	}
	return m.Generate(ctx, b.String(), driven.GenerateOptions{MaxTokens: opts.MaxTokens})
}

func (m *mockLLMService) ModelName() string            { return "mock-model" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("prompt %s: %w", name, domain.ErrNotFound)
}

func (m *mockPromptStore) Reload() {}

// mockRetriever implements driven.Retriever, returning chunks per query
// keyword.
type mockRetriever struct {
	mu      sync.Mutex
	chunks  []domain.Chunk
	byQuery map[string][]domain.Chunk
	err     error
	queries []string
}

func (m *mockRetriever) Query(_ context.Context, text string, k int) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	for needle, chunks := range m.byQuery {
		if strings.Contains(text, needle) {
			return chunks, nil
		}
	}
	if k < len(m.chunks) {
		return m.chunks[:k], nil
	}
	return m.chunks, nil
}

func (m *mockRetriever) Close() error { return nil }

// mockRenderer implements driven.Renderer by listing facts under section
// headings and citing clauses.
type mockRenderer struct {
	mu     sync.Mutex
	inputs map[string]driven.RenderInput
	err    error
}

func (m *mockRenderer) Render(_ context.Context, templateID string, input driven.RenderInput) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	if m.inputs == nil {
		m.inputs = make(map[string]driven.RenderInput)
	}
	m.inputs[input.Spec.Type] = input
	m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", input.Spec.Title, templateID)
	for _, section := range input.Spec.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Title)
		for _, kind := range section.Kinds {
			for _, f := range input.Facts.ByKind(kind) {
				fmt.Fprintf(&b, "- %s [1]\n", f.Text)
			}
		}
		b.WriteString("\n")
	}
	for _, clause := range input.Spec.RequiredClauses {
		fmt.Fprintf(&b, "This document complies with %s.\n", clause)
	}
	return b.String(), nil
}

func (m *mockRenderer) input(docType string) driven.RenderInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[docType]
}

// mockArtifactStore implements driven.ArtifactStore in memory.
type mockArtifactStore struct {
	mu        sync.Mutex
	files     map[string]string
	versions  map[string]int
	discarded []string
}

func (m *mockArtifactStore) Save(_ context.Context, program, documentType string, sequence int, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string]string)
		m.versions = make(map[string]int)
	}
	base := fmt.Sprintf("%s/%02d_%s", program, sequence, documentType)
	m.versions[base]++
	ref := fmt.Sprintf("%s_v%d.md", base, m.versions[base])
	m.files[ref] = content
	return ref, nil
}

func (m *mockArtifactStore) Discard(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, reference)
	m.discarded = append(m.discarded, reference)
	return nil
}

func (m *mockArtifactStore) Load(_ context.Context, reference string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[reference]
	if !ok {
		return "", domain.ErrNotFound
	}
	return content, nil
}

// progressRecorder collects progress events.
type progressRecorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *progressRecorder) Emit(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *progressRecorder) stages() []domain.ProgressStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProgressStage, len(p.events))
	for i, e := range p.events {
		out[i] = e.Stage
	}
	return out
}

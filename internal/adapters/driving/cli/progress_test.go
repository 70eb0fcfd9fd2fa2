package cli

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (s *recordingSink) Emit(event domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func TestProgressRelay_AttachAndDetach(t *testing.T) {
	relay := NewProgressRelay()
	sink := &recordingSink{}

	relay.Emit(domain.ProgressEvent{Stage: domain.StagePlanning})
	detach := relay.Attach(sink)
	relay.Emit(domain.ProgressEvent{Stage: domain.StageRetrieving, DocumentType: "igce"})
	detach()
	relay.Emit(domain.ProgressEvent{Stage: domain.StageFinished})

	assert.Equal(t, []domain.ProgressEvent{{Stage: domain.StageRetrieving, DocumentType: "igce"}}, sink.events)
}

func TestAttachProgress_NoRelay(t *testing.T) {
	SetServices(Services{})

	detach := attachProgress(&recordingSink{})

	assert.NotPanics(t, detach)
}

func TestStageLine(t *testing.T) {
	tests := []struct {
		stage domain.ProgressStage
		mark  string
	}{
		{domain.StageCompleted, "✓"},
		{domain.StageSkipped, "-"},
		{domain.StageFailed, "✗"},
		{domain.StageRendering, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			line := stageLine(domain.ProgressEvent{Stage: tt.stage, Message: "pws"})
			if tt.mark == "" {
				assert.Empty(t, line)
				return
			}
			assert.Contains(t, line, tt.mark)
			assert.Contains(t, line, "pws")
		})
	}
}

func TestLineSink_PrintsTerminalStatesOnly(t *testing.T) {
	buf := new(bytes.Buffer)
	sink := &lineSink{out: buf}

	sink.Emit(domain.ProgressEvent{Stage: domain.StageExtracting, Message: "extracting igce"})
	sink.Emit(domain.ProgressEvent{Stage: domain.StageCompleted, Message: "igce generated"})

	assert.NotContains(t, buf.String(), "extracting igce")
	assert.Contains(t, buf.String(), "igce generated")
}

func TestBarSink_Finishes(t *testing.T) {
	buf := new(bytes.Buffer)
	sink := newBarSink(buf, 3)

	sink.Emit(domain.ProgressEvent{Stage: domain.StageFailed, Percent: 40, Message: "pws failed"})
	sink.Emit(domain.ProgressEvent{Stage: domain.StageFinished, Percent: 100, Message: "done"})

	assert.Contains(t, buf.String(), "pws failed")
	assert.True(t, sink.bar.IsFinished())
}

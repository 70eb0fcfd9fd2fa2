package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// ProgressRelay is the sink handed to the package service. Commands attach
// the view for the current run; events with no view attached are dropped.
type ProgressRelay struct {
	mu     sync.Mutex
	target driven.ProgressSink
}

// Ensure ProgressRelay implements the interface.
var _ driven.ProgressSink = (*ProgressRelay)(nil)

// NewProgressRelay creates an empty relay.
func NewProgressRelay() *ProgressRelay {
	return &ProgressRelay{}
}

// Attach routes events to sink until the returned function is called.
func (r *ProgressRelay) Attach(sink driven.ProgressSink) (detach func()) {
	r.mu.Lock()
	r.target = sink
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.target = nil
		r.mu.Unlock()
	}
}

// Emit forwards event to the attached sink.
func (r *ProgressRelay) Emit(event domain.ProgressEvent) {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()
	if target != nil {
		target.Emit(event)
	}
}

// attachProgress attaches sink when a relay is configured.
func attachProgress(sink driven.ProgressSink) func() {
	if progressRelay == nil {
		return func() {}
	}
	return progressRelay.Attach(sink)
}

// barSink draws a progress bar on a terminal and prints terminal document
// states above it.
type barSink struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func newBarSink(out io.Writer, total int) *barSink {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.BlueString("Generating %d documents", total)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(true),
	)
	return &barSink{out: out, bar: bar}
}

func (s *barSink) Emit(event domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line := stageLine(event); line != "" {
		_ = s.bar.Clear()
		fmt.Fprintln(s.out, line)
	}
	if event.Message != "" {
		s.bar.Describe(event.Message)
	}
	_ = s.bar.Set(int(event.Percent))
	if event.Stage == domain.StageFinished {
		_ = s.bar.Finish()
	}
}

// lineSink prints one line per terminal document state, for pipes and logs.
type lineSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *lineSink) Emit(event domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line := stageLine(event); line != "" {
		fmt.Fprintln(s.out, line)
	}
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	skipMark = color.New(color.FgHiBlack).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

// stageLine renders the terminal states of a document; other stages yield
// an empty string.
func stageLine(event domain.ProgressEvent) string {
	switch event.Stage {
	case domain.StageCompleted:
		return fmt.Sprintf("%s %s", okMark("✓"), event.Message)
	case domain.StageSkipped:
		return fmt.Sprintf("%s %s", skipMark("-"), event.Message)
	case domain.StageFailed:
		return fmt.Sprintf("%s %s", failMark("✗"), event.Message)
	default:
		return ""
	}
}

package driven

import "github.com/custodia-labs/acqgen/internal/core/domain"

// ProgressSink receives progress events. Implementations must not block
// for long; events are emitted from pipeline goroutines.
type ProgressSink interface {
	Emit(event domain.ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(event domain.ProgressEvent)

// Emit calls f(event).
func (f ProgressFunc) Emit(event domain.ProgressEvent) {
	f(event)
}

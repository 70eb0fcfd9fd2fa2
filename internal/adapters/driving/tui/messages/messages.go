// Package messages defines Bubbletea message types for the TUI.
// Messages represent events that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// ProgressReceived carries one progress event from the generation run.
type ProgressReceived struct {
	Event domain.ProgressEvent
}

// GenerationFinished is sent when the package run returns.
type GenerationFinished struct {
	Manifest *domain.PackageManifest
	Err      error
}

// Succeeded returns true if the run returned without error and every
// document generated or was skipped.
func (m GenerationFinished) Succeeded() bool {
	return m.Err == nil && m.Manifest != nil && len(m.Manifest.Failed()) == 0
}

// ErrorOccurred is sent when an error needs to be shown.
type ErrorOccurred struct {
	Err error
}

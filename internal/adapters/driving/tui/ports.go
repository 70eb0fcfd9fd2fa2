// Package tui provides the terminal progress view for package generation.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Package generates acquisition packages.
	Package driving.PackageService
}

// NewPorts creates a new Ports aggregate.
func NewPorts(pkg driving.PackageService) *Ports {
	return &Ports{Package: pkg}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Package == nil {
		return ErrMissingPackageService
	}
	return nil
}

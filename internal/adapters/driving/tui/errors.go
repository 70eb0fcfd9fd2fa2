package tui

import "errors"

// ErrMissingPackageService is returned when the package service is not provided.
var ErrMissingPackageService = errors.New("tui: package service is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")

// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidScanStatus is returned when a scan status is not one of the
	// closed set of statuses.
	ErrInvalidScanStatus = errors.New("invalid scan status")

	// ErrInvalidImageStatus is returned when a dish image status is not one
	// of the closed set of statuses.
	ErrInvalidImageStatus = errors.New("invalid dish image status")

	// ErrIllegalTransition is returned when a status change does not follow
	// the transition graph for the entity.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNegativeCounter is returned when a scan counter or cost would
	// become negative.
	ErrNegativeCounter = errors.New("counter cannot be negative")
)

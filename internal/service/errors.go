package service

import (
	"errors"
	"fmt"

	"github.com/menulens/menulens-api/internal/store"
)

// Common sentinel errors for the scan service.
var (
	// ErrScanNotFound indicates the scan does not exist or is not owned by
	// the calling device. Ownership mismatches are deliberately reported as
	// not-found so devices cannot probe for other devices' scans.
	ErrScanNotFound = errors.New("scan not found")

	// ErrDishNotFound indicates the dish does not exist or belongs to a
	// scan the calling device does not own.
	ErrDishNotFound = errors.New("dish not found")

	// ErrScanNotReady indicates the scan's current status does not permit
	// the requested operation.
	ErrScanNotReady = errors.New("scan is not in a state that allows this operation")

	// ErrMenuImageMissing indicates processing was requested before the
	// menu photo upload was confirmed.
	ErrMenuImageMissing = errors.New("scan has no uploaded menu image")

	// ErrDeviceRequired indicates the caller supplied no device identity.
	ErrDeviceRequired = errors.New("device ID is required")
)

// ScanServiceError wraps errors from the scan service with context.
type ScanServiceError struct {
	// Operation is the operation that failed (e.g. "start_processing").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for ScanServiceError.
func (e *ScanServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("scan service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ScanServiceError) Unwrap() error {
	return e.Err
}

// NewScanServiceError creates a new ScanServiceError. Known sentinel
// errors pass through unwrapped so handlers can match them directly.
func NewScanServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrScanNotFound),
		errors.Is(err, ErrDishNotFound),
		errors.Is(err, ErrScanNotReady),
		errors.Is(err, ErrMenuImageMissing),
		errors.Is(err, ErrDeviceRequired):
		return err
	case errors.Is(err, store.ErrScanNotFound):
		return ErrScanNotFound
	case errors.Is(err, store.ErrDishNotFound):
		return ErrDishNotFound
	}

	return &ScanServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

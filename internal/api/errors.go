package api

import (
	"errors"
	"net/http"

	"github.com/menulens/menulens-api/internal/service"
	"github.com/menulens/menulens-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors. Ownership mismatches surface as not-found so one
	// device cannot probe for another device's scan IDs.
	case errors.Is(err, service.ErrScanNotFound),
		errors.Is(err, service.ErrDishNotFound),
		errors.Is(err, store.ErrScanNotFound),
		errors.Is(err, store.ErrDishNotFound):
		return http.StatusNotFound

	// Lifecycle conflicts
	case errors.Is(err, service.ErrScanNotReady):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrMenuImageMissing),
		errors.Is(err, service.ErrDeviceRequired),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrScanNotFound),
		errors.Is(err, store.ErrScanNotFound):
		return "Scan not found"

	case errors.Is(err, service.ErrDishNotFound),
		errors.Is(err, store.ErrDishNotFound):
		return "Dish not found"

	case errors.Is(err, service.ErrScanNotReady):
		return "Scan is not in a state that allows this operation"

	case errors.Is(err, service.ErrMenuImageMissing):
		return "Menu image has not been uploaded"

	case errors.Is(err, service.ErrDeviceRequired):
		return "Device ID is required"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

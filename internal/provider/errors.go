package provider

import "errors"

// Common errors returned by provider implementations.
var (
	// ErrProviderFailure is returned when a provider call fails for any
	// general reason.
	ErrProviderFailure = errors.New("provider call failed")

	// ErrInvalidResponse is returned when the provider response cannot be
	// parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from provider")

	// ErrContentBlocked is returned when the provider blocks the content
	// due to safety filters.
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry, including bounded-timeout expiry.
	ErrTransientFailure = errors.New("transient provider error")

	// ErrInvalidConfig is returned when the provider configuration is
	// invalid, e.g. missing credentials. Fatal; surfaced verbatim.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

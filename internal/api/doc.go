// Package api contains the HTTP handlers, request/response DTOs, and error
// mapping for the scan API. Handlers stay thin: they parse and validate
// input, call into the service layer, and translate service errors to
// sanitized HTTP responses. Device identity comes from the device middleware
// via the request context.
package api

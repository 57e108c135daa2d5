package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyImage is returned when the menu image payload is empty.
	ErrEmptyImage = errors.New("menu image cannot be empty")

	// ErrEmptyPrompt is returned when an image generation prompt is empty.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

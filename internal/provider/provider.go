package provider

import "context"

// MenuItem is one extracted menu entry.
type MenuItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
}

// MenuSection groups extracted items under a menu heading.
type MenuSection struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// MenuExtraction is the structured result of vision extraction over a menu
// photo. Sections defaults to empty when the provider response omits it;
// ItemsFallback carries items the provider could not attribute to a section.
type MenuExtraction struct {
	RestaurantName string        `json:"restaurantName,omitempty"`
	Sections       []MenuSection `json:"sections"`
	ItemsFallback  []MenuItem    `json:"itemsFallback,omitempty"`
}

// MenuExtractor turns a photographed menu into structured dish data.
type MenuExtractor interface {
	// ExtractMenu analyzes the menu image and returns its structured
	// contents. A response without parseable JSON fails the whole scan
	// pipeline, so implementations return ErrInvalidResponse rather than
	// partial data.
	ExtractMenu(ctx context.Context, imageData []byte, mimeType string) (*MenuExtraction, error)
}

// GeneratedImage is the result of one image generation call: the raw image
// bytes plus the fixed unit cost of the call for the selected variant.
type GeneratedImage struct {
	Data     []byte
	MimeType string
	CostUSD  float64
}

// ImageGenerator produces one illustrative image from a rendered prompt.
// Variants (e.g. the Gemini flash image model and Imagen) implement this
// interface; selection happens once per pipeline run and is passed
// explicitly.
type ImageGenerator interface {
	// GenerateImage renders the prompt into an image.
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)

	// Name returns the provider variant tag recorded on the dish.
	Name() string
}

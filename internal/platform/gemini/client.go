package gemini

import (
	"context"
	"fmt"

	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/provider"
	"google.golang.org/genai"
)

// NewClient creates a Gemini API client from the application configuration.
// The same client backs both the menu extractor and the image generator
// variants.
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", provider.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			provider.ErrInvalidConfig, err)
	}

	return client, nil
}

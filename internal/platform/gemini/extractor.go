package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/provider"
	"google.golang.org/genai"
)

// extractionPrompt instructs the vision model to return the menu structure
// as JSON matching provider.MenuExtraction.
const extractionPrompt = `You are a menu digitization service. Analyze the attached photo of a restaurant menu and return ONLY a JSON object with this exact shape, no markdown fences and no commentary:

{"restaurantName": "name if visible, else omit", "sections": [{"name": "section heading", "items": [{"name": "dish name", "description": "dish description if present", "price": "printed price if present"}]}], "itemsFallback": [{"name": "...", "description": "...", "price": "..."}]}

Rules:
- Preserve the order dishes appear on the menu.
- Put dishes that appear under a heading into that section; put dishes with no discernible section into itemsFallback.
- Omit fields you cannot read rather than guessing.`

// MenuExtractor implements provider.MenuExtractor using a multimodal
// Gemini model.
type MenuExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMenuExtractor creates a MenuExtractor backed by the given client.
func NewMenuExtractor(client *genai.Client, cfg config.GeminiConfig, logger *slog.Logger) (*MenuExtractor, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.VisionModel == "" {
		return nil, fmt.Errorf("%w: vision model cannot be empty", provider.ErrInvalidConfig)
	}

	return &MenuExtractor{
		client:  client,
		model:   cfg.VisionModel,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger.With("component", "menu_extractor"),
	}, nil
}

var _ provider.MenuExtractor = (*MenuExtractor)(nil)

// ExtractMenu analyzes the menu image and returns its structured contents.
func (e *MenuExtractor) ExtractMenu(
	ctx context.Context,
	imageData []byte,
	mimeType string,
) (*provider.MenuExtraction, error) {
	if len(imageData) == 0 {
		return nil, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.InfoContext(ctx, "calling vision extraction",
		"model", e.model,
		"image_bytes", len(imageData))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(extractionPrompt),
			genai.NewPartFromBytes(imageData, mimeType),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: vision call timed out after %s",
				provider.ErrTransientFailure, e.timeout)
		}
		return nil, fmt.Errorf("%w: vision call failed: %v", provider.ErrProviderFailure, err)
	}

	text, err := textFromResponse(resp)
	if err != nil {
		return nil, err
	}

	extraction, err := parseExtraction([]byte(text))
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "vision extraction succeeded",
		"sections", len(extraction.Sections),
		"fallback_items", len(extraction.ItemsFallback),
		"restaurant_name", extraction.RestaurantName)

	return extraction, nil
}

// textFromResponse pulls the concatenated text parts out of a generation
// response, mapping provider-level failure modes to the error taxonomy.
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", provider.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", provider.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response blocked", provider.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", provider.ErrInvalidResponse)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	if text == "" {
		return "", fmt.Errorf("%w: no text in response", provider.ErrInvalidResponse)
	}

	return text, nil
}

// parseExtraction decodes the provider JSON body. Absent sections default
// to empty; a body without parseable JSON is an invalid response, which
// fails the whole scan pipeline.
func parseExtraction(body []byte) (*provider.MenuExtraction, error) {
	var extraction provider.MenuExtraction
	if err := json.Unmarshal(body, &extraction); err != nil {
		return nil, fmt.Errorf("%w: failed to parse extraction JSON: %v",
			provider.ErrInvalidResponse, err)
	}

	if extraction.Sections == nil {
		extraction.Sections = []provider.MenuSection{}
	}

	return &extraction, nil
}

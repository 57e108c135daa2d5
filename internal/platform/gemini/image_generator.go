package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/provider"
	"google.golang.org/genai"
)

// Provider variant tags recorded on dishes.
const (
	VariantGemini = "gemini"
	VariantImagen = "imagen"
)

// retryPolicy holds the bounded-retry settings shared by both image
// generation variants. Only transient errors are retried; permanent errors
// (blocked content, malformed responses) return immediately.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// ImageGenerator implements provider.ImageGenerator for one of the two
// Gemini-family image backends, selected by variant.
type ImageGenerator struct {
	client  *genai.Client
	variant string
	model   string
	costUSD float64
	timeout time.Duration
	retry   retryPolicy
	logger  *slog.Logger
}

// NewGeminiImageGenerator creates the Gemini flash-image variant.
func NewGeminiImageGenerator(
	client *genai.Client,
	gemCfg config.GeminiConfig,
	pipeCfg config.PipelineConfig,
	logger *slog.Logger,
) (*ImageGenerator, error) {
	return newImageGenerator(client, VariantGemini, gemCfg.ImageModel, pipeCfg.GeminiImageCostUSD, gemCfg, logger)
}

// NewImagenImageGenerator creates the Imagen variant.
func NewImagenImageGenerator(
	client *genai.Client,
	gemCfg config.GeminiConfig,
	pipeCfg config.PipelineConfig,
	logger *slog.Logger,
) (*ImageGenerator, error) {
	return newImageGenerator(client, VariantImagen, gemCfg.ImagenModel, pipeCfg.ImagenImageCostUSD, gemCfg, logger)
}

func newImageGenerator(
	client *genai.Client,
	variant string,
	model string,
	costUSD float64,
	cfg config.GeminiConfig,
	logger *slog.Logger,
) (*ImageGenerator, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("%w: image model cannot be empty for variant %s",
			provider.ErrInvalidConfig, variant)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelaySeconds := cfg.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	return &ImageGenerator{
		client:  client,
		variant: variant,
		model:   model,
		costUSD: costUSD,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		retry: retryPolicy{
			maxRetries: maxRetries,
			baseDelay:  time.Duration(baseDelaySeconds) * time.Second,
		},
		logger: logger.With("component", "image_generator", "variant", variant),
	}, nil
}

var _ provider.ImageGenerator = (*ImageGenerator)(nil)

// Name returns the provider variant tag recorded on the dish.
func (g *ImageGenerator) Name() string {
	return g.variant
}

// GenerateImage renders the prompt into an image, retrying transient
// failures with exponential backoff and jitter up to the configured bound.
func (g *ImageGenerator) GenerateImage(
	ctx context.Context,
	prompt string,
) (*provider.GeneratedImage, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= g.retry.maxRetries; attempt++ {
		g.logger.InfoContext(ctx, "calling image generation",
			"model", g.model,
			"attempt", attempt+1,
			"max_attempts", g.retry.maxRetries+1)

		image, err := g.generateOnce(ctx, prompt)
		if err == nil {
			return image, nil
		}
		lastErr = err

		// Permanent errors are not retried.
		if !errors.Is(err, provider.ErrTransientFailure) {
			g.logger.WarnContext(ctx, "permanent image generation error, not retrying",
				"error", err)
			return nil, err
		}

		if attempt >= g.retry.maxRetries {
			break
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(g.retry.baseDelay) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoff * jitter)

		g.logger.InfoContext(ctx, "retrying image generation after delay",
			"attempt", attempt+1,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", provider.ErrTransientFailure, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
		provider.ErrTransientFailure, g.retry.maxRetries, lastErr)
}

// generateOnce makes a single bounded-timeout call to the selected backend.
func (g *ImageGenerator) generateOnce(
	ctx context.Context,
	prompt string,
) (*provider.GeneratedImage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	switch g.variant {
	case VariantImagen:
		return g.generateImagen(ctx, prompt)
	default:
		return g.generateGemini(ctx, prompt)
	}
}

// generateGemini uses the Gemini flash-image model through the content
// generation endpoint with an image response modality.
func (g *ImageGenerator) generateGemini(
	ctx context.Context,
	prompt string,
) (*provider.GeneratedImage, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, g.mapCallError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", provider.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: prompt blocked", provider.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", provider.ErrInvalidResponse)
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &provider.GeneratedImage{
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
				CostUSD:  g.costUSD,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: response contained no image data", provider.ErrInvalidResponse)
}

// generateImagen uses the dedicated Imagen image generation endpoint.
func (g *ImageGenerator) generateImagen(
	ctx context.Context,
	prompt string,
) (*provider.GeneratedImage, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, g.mapCallError(err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("%w: no images generated", provider.ErrInvalidResponse)
	}

	image := resp.GeneratedImages[0].Image
	if image == nil || len(image.ImageBytes) == 0 {
		return nil, fmt.Errorf("%w: response contained no image data", provider.ErrInvalidResponse)
	}

	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &provider.GeneratedImage{
		Data:     image.ImageBytes,
		MimeType: mimeType,
		CostUSD:  g.costUSD,
	}, nil
}

// mapCallError classifies transport-level errors. Timeouts and other call
// failures are treated as transient; the retry loop bounds them.
func (g *ImageGenerator) mapCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: image call timed out after %s",
			provider.ErrTransientFailure, g.timeout)
	}
	return fmt.Errorf("%w: image call failed: %v", provider.ErrTransientFailure, err)
}

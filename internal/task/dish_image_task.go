package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/platform/s3blob"
	"github.com/menulens/menulens-api/internal/provider"
)

// Common errors.
var (
	ErrNilDishes    = errors.New("dish accessor cannot be nil")
	ErrNilGenerator = errors.New("image generator cannot be nil")
	ErrNilBlobs     = errors.New("blob writer cannot be nil")
	ErrNilRecorder  = errors.New("outcome recorder cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrEmptyDishID  = errors.New("dish ID cannot be empty")
	ErrEmptyScanID  = errors.New("scan ID cannot be empty")
)

// DishAccessor is the slice of the dish store a generation task needs.
type DishAccessor interface {
	// GetByID retrieves a dish by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dish, error)

	// ClaimForGeneration atomically claims the dish for this worker.
	ClaimForGeneration(ctx context.Context, id uuid.UUID) (bool, error)

	// Update persists the dish's fields.
	Update(ctx context.Context, dish *domain.Dish) error
}

// BlobWriter stores generated image bytes.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// OutcomeRecorder settles one generation attempt against the scan:
// incrementing the generated counter, adding cost, and completing the
// scan when the last outstanding attempt resolves. Implementations run
// the whole settlement in a single database transaction.
type OutcomeRecorder interface {
	RecordImageOutcome(ctx context.Context, scanID uuid.UUID, costUSD float64) error
}

// DishImageTask implements the Task interface for generating one dish
// image. The dish row is the durable job record: the task claims it,
// renders the prompt, calls the generator, stores the image, and settles
// the outcome on the scan. Every resolved attempt, success or failure,
// counts toward the scan's generated total so completion detection never
// stalls on a failed dish.
type DishImageTask struct {
	id        uuid.UUID
	scanID    uuid.UUID
	dishID    uuid.UUID
	dishes    DishAccessor
	generator provider.ImageGenerator
	blobs     BlobWriter
	recorder  OutcomeRecorder
	template  string
	logger    *slog.Logger
	status    TaskStatus
}

// NewDishImageTask creates a generation task for one dish.
func NewDishImageTask(
	scanID uuid.UUID,
	dishID uuid.UUID,
	dishes DishAccessor,
	generator provider.ImageGenerator,
	blobs BlobWriter,
	recorder OutcomeRecorder,
	template string,
	logger *slog.Logger,
) (*DishImageTask, error) {
	if dishes == nil {
		return nil, ErrNilDishes
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if blobs == nil {
		return nil, ErrNilBlobs
	}
	if recorder == nil {
		return nil, ErrNilRecorder
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if scanID == uuid.Nil {
		return nil, ErrEmptyScanID
	}
	if dishID == uuid.Nil {
		return nil, ErrEmptyDishID
	}

	return &DishImageTask{
		id:        uuid.New(),
		scanID:    scanID,
		dishID:    dishID,
		dishes:    dishes,
		generator: generator,
		blobs:     blobs,
		recorder:  recorder,
		template:  template,
		logger:    logger.With("task_type", TaskTypeDishImage, "scan_id", scanID, "dish_id", dishID),
		status:    TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier.
func (t *DishImageTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier.
func (t *DishImageTask) Type() string {
	return TaskTypeDishImage
}

// Status returns the current task status.
func (t *DishImageTask) Status() TaskStatus {
	return t.status
}

// Execute runs one generation attempt end to end. The claim is the
// first step: losing it means another worker already has the dish or it
// was skipped after queueing, and the task is a silent no-op either way.
func (t *DishImageTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("starting dish image generation")

	if err := ctx.Err(); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	claimed, err := t.dishes.ClaimForGeneration(ctx, t.dishID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to claim dish: %w", err)
	}
	if !claimed {
		t.status = TaskStatusCompleted
		t.logger.Info("dish not claimable, skipping", "reason", "already resolved or skipped")
		return nil
	}

	dish, err := t.dishes.GetByID(ctx, t.dishID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to load claimed dish: %w", err)
	}

	prompt := RenderPrompt(t.template, dish.Name, dish.Description)
	t.logger.Debug("rendered prompt", "provider", t.generator.Name())

	image, err := t.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return t.resolveFailure(ctx, dish, err)
	}

	key := s3blob.DishKey(t.scanID, t.dishID, image.MimeType)
	if err := t.blobs.Put(ctx, key, image.Data, image.MimeType); err != nil {
		return t.resolveFailure(ctx, dish, fmt.Errorf("failed to store image: %w", err))
	}

	now := time.Now().UTC()
	dish.ImageKey = key
	dish.ImageProvider = t.generator.Name()
	dish.ImageCostUSD = image.CostUSD
	dish.ImageError = ""
	dish.GeneratedAt = &now
	if err := dish.TransitionTo(domain.DishImageCompleted); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to complete dish: %w", err)
	}
	if err := t.dishes.Update(ctx, dish); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to persist completed dish: %w", err)
	}

	if err := t.recorder.RecordImageOutcome(ctx, t.scanID, image.CostUSD); err != nil {
		// The image exists and the dish is completed; the scan counters
		// are off until the next attempt resolves or an operator forces
		// completion. Surface the error, do not undo the work.
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to record image outcome: %w", err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("dish image generated", "image_key", key, "cost_usd", image.CostUSD)
	return nil
}

// resolveFailure marks the dish failed and still settles the attempt
// against the scan. Failed attempts count toward the generated total but
// contribute no cost.
func (t *DishImageTask) resolveFailure(ctx context.Context, dish *domain.Dish, cause error) error {
	t.status = TaskStatusFailed
	t.logger.Error("dish image generation failed", "error", cause)

	dish.ImageError = cause.Error()
	if err := dish.TransitionTo(domain.DishImageFailed); err != nil {
		return fmt.Errorf("failed to mark dish failed after %v: %w", cause, err)
	}
	if err := t.dishes.Update(ctx, dish); err != nil {
		return fmt.Errorf("failed to persist failed dish after %v: %w", cause, err)
	}

	if err := t.recorder.RecordImageOutcome(ctx, t.scanID, 0); err != nil {
		return fmt.Errorf("failed to record failed outcome after %v: %w", cause, err)
	}

	return cause
}

var _ Task = (*DishImageTask)(nil)

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DishImageStatus represents the image generation state of a dish.
type DishImageStatus string

// Possible dish image status values.
const (
	DishImagePending    DishImageStatus = "pending"
	DishImageQueued     DishImageStatus = "queued"
	DishImageGenerating DishImageStatus = "generating"
	DishImageCompleted  DishImageStatus = "completed"
	DishImageFailed     DishImageStatus = "failed"
	DishImageSkipped    DishImageStatus = "skipped"
)

// dishImageTransitions is the closed transition table for dish image
// statuses. "skipped" is reachable from pending/queued (cancellation or
// quota exhaustion) and from generating (force-complete reaping a stuck
// job); "failed" from queued/generating. Skipped and failed dishes may
// be re-queued, which is what makes manual retry possible. Generating is
// only enterable from pending/queued, so a retry always passes through
// queued first.
var dishImageTransitions = map[DishImageStatus][]DishImageStatus{
	DishImagePending:    {DishImageQueued, DishImageGenerating, DishImageSkipped},
	DishImageQueued:     {DishImageGenerating, DishImageFailed, DishImageSkipped},
	DishImageGenerating: {DishImageCompleted, DishImageFailed, DishImageSkipped},
	DishImageCompleted:  {},
	DishImageFailed:     {DishImageQueued},
	DishImageSkipped:    {DishImageQueued},
}

// Common validation errors for Dish.
var (
	ErrEmptyDishID     = errors.New("dish ID cannot be empty")
	ErrEmptyDishScanID = errors.New("dish scan ID cannot be empty")
	ErrEmptyDishName   = errors.New("dish name cannot be empty")
)

// Dish represents one extracted menu item belonging to a scan. DisplayOrder
// is assigned at creation and is stable regardless of image completion order.
type Dish struct {
	ID            uuid.UUID       `json:"id"`
	ScanID        uuid.UUID       `json:"scan_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         string          `json:"price,omitempty"`
	SectionName   string          `json:"section_name,omitempty"`
	DisplayOrder  int             `json:"display_order"`
	ImageStatus   DishImageStatus `json:"image_status"`
	ImageKey      string          `json:"image_key,omitempty"`
	ImageProvider string          `json:"image_provider,omitempty"`
	ImageCostUSD  float64         `json:"image_cost_usd,omitempty"`
	ImageError    string          `json:"image_error,omitempty"`
	GeneratedAt   *time.Time      `json:"generated_at,omitempty"`
}

// NewDish creates a new Dish for the given scan with the given display order
// and initial image status.
func NewDish(scanID uuid.UUID, name string, displayOrder int, status DishImageStatus) (*Dish, error) {
	dish := &Dish{
		ID:           uuid.New(),
		ScanID:       scanID,
		Name:         name,
		DisplayOrder: displayOrder,
		ImageStatus:  status,
	}

	if err := dish.Validate(); err != nil {
		return nil, err
	}

	return dish, nil
}

// Validate checks if the Dish has valid data.
func (d *Dish) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDishID
	}

	if d.ScanID == uuid.Nil {
		return ErrEmptyDishScanID
	}

	if d.Name == "" {
		return ErrEmptyDishName
	}

	if !isValidDishImageStatus(d.ImageStatus) {
		return ErrInvalidImageStatus
	}

	if d.DisplayOrder < 0 {
		return ErrNegativeCounter
	}

	return nil
}

// IsTerminal reports whether the dish image status is terminal for pipeline
// completion accounting. Skipped and failed are terminal for the pipeline
// but remain re-queueable through the quota paths.
func (d *Dish) IsTerminal() bool {
	switch d.ImageStatus {
	case DishImageCompleted, DishImageFailed, DishImageSkipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving to the target image status follows
// the transition graph.
func (d *Dish) CanTransitionTo(target DishImageStatus) bool {
	for _, allowed := range dishImageTransitions[d.ImageStatus] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the dish image status to the target, rejecting
// transitions that do not follow the graph. A dish already generating or
// completed cannot be re-triggered; callers treat that rejection as a no-op.
func (d *Dish) TransitionTo(target DishImageStatus) error {
	if !isValidDishImageStatus(target) {
		return ErrInvalidImageStatus
	}

	if !d.CanTransitionTo(target) {
		return ErrIllegalTransition
	}

	d.ImageStatus = target
	return nil
}

// Retriggerable reports whether a generation job may claim this dish.
// Generating and completed dishes reject re-triggering: this is the
// idempotency guard against double-billing a dish.
func (d *Dish) Retriggerable() bool {
	switch d.ImageStatus {
	case DishImagePending, DishImageQueued, DishImageFailed, DishImageSkipped:
		return true
	default:
		return false
	}
}

// isValidDishImageStatus checks if the given status is a valid DishImageStatus.
func isValidDishImageStatus(status DishImageStatus) bool {
	_, ok := dishImageTransitions[status]
	return ok
}

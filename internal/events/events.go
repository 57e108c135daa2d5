package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event kinds understood by the generation pipeline.
const (
	KindDishImageRequested = "dish_image.requested"
)

// DishImageRequested is the payload for a dish image generation request.
// The scan service emits one per queued dish; the task layer consumes them.
type DishImageRequested struct {
	ScanID   uuid.UUID `json:"scan_id"`
	DishID   uuid.UUID `json:"dish_id"`
	Provider string    `json:"provider"`
}

// GenerationEvent is a request for background work. Payloads are serialized
// so the service layer never depends on task types directly.
type GenerationEvent struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// DecodePayload unmarshals the event payload into v.
func (e *GenerationEvent) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewDishImageEvent wraps a DishImageRequested payload in a GenerationEvent.
func NewDishImageEvent(payload DishImageRequested) (*GenerationEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &GenerationEvent{
		ID:        uuid.New(),
		Kind:      KindDishImageRequested,
		Payload:   raw,
		EmittedAt: time.Now().UTC(),
	}, nil
}

// Handler processes generation events.
type Handler interface {
	HandleEvent(ctx context.Context, event *GenerationEvent) error
}

// Emitter publishes generation events to registered handlers.
type Emitter interface {
	EmitEvent(ctx context.Context, event *GenerationEvent) error
}

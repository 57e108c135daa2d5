package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/events"
)

// TaskFactory creates tasks from dish image request parameters.
type TaskFactory interface {
	CreateTask(scanID, dishID uuid.UUID, providerName string) (Task, error)
}

// DishImageEventHandler turns dish image request events into queued
// tasks. It is the only bridge between the event layer and the task
// layer, so the scan service never imports this package.
type DishImageEventHandler struct {
	factory TaskFactory
	queue   TaskQueueWriter
	logger  *slog.Logger
}

// NewDishImageEventHandler creates a handler wiring the factory to the queue.
func NewDishImageEventHandler(
	factory TaskFactory,
	queue TaskQueueWriter,
	logger *slog.Logger,
) *DishImageEventHandler {
	return &DishImageEventHandler{
		factory: factory,
		queue:   queue,
		logger:  logger.With("component", "dish_image_event_handler"),
	}
}

// HandleEvent creates and enqueues a generation task for the event's dish.
// Events of other kinds are ignored.
func (h *DishImageEventHandler) HandleEvent(ctx context.Context, event *events.GenerationEvent) error {
	if event.Kind != events.KindDishImageRequested {
		h.logger.Debug("ignoring event of unsupported kind",
			"event_kind", event.Kind,
			"event_id", event.ID)
		return nil
	}

	var payload events.DishImageRequested
	if err := event.DecodePayload(&payload); err != nil {
		h.logger.Error("failed to decode event payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to decode event payload: %w", err)
	}

	t, err := h.factory.CreateTask(payload.ScanID, payload.DishID, payload.Provider)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"scan_id", payload.ScanID,
			"dish_id", payload.DishID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.queue.Enqueue(t); err != nil {
		h.logger.Error("failed to enqueue task",
			"error", err,
			"task_id", t.ID(),
			"dish_id", payload.DishID,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	h.logger.Debug("task enqueued for dish",
		"task_id", t.ID(),
		"scan_id", payload.ScanID,
		"dish_id", payload.DishID)
	return nil
}

var _ events.Handler = (*DishImageEventHandler)(nil)

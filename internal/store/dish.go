package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
)

// DishStore defines the interface for dish data persistence.
type DishStore interface {
	// CreateBatch saves the given dishes in one statement, preserving their
	// assigned display order. All dishes must belong to the same scan.
	CreateBatch(ctx context.Context, dishes []*domain.Dish) error

	// GetByID retrieves a dish by its unique ID.
	// Returns ErrDishNotFound if the dish does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dish, error)

	// ListByScan retrieves all dishes belonging to the scan, ordered by
	// display order.
	ListByScan(ctx context.Context, scanID uuid.UUID) ([]*domain.Dish, error)

	// ClaimForGeneration atomically moves the dish into the generating
	// status if and only if it is currently pending or queued. It reports
	// whether the claim succeeded; a false result with nil error means
	// another worker holds the dish, it already finished, or it was
	// skipped before the worker got to it, and the caller must treat the
	// job as a no-op.
	ClaimForGeneration(ctx context.Context, id uuid.UUID) (bool, error)

	// QueueEligible marks up to limit dishes of the scan as queued,
	// choosing pending and skipped dishes in display order, and returns
	// the IDs it marked. Must be called on a transaction-bound store
	// together with a locked scan row so quota accounting stays atomic.
	QueueEligible(ctx context.Context, scanID uuid.UUID, limit int) ([]uuid.UUID, error)

	// ListByImageStatus retrieves every dish, across all scans, whose
	// image status is one of the given statuses. Used by startup recovery
	// to find work that was queued or in flight when the process died.
	ListByImageStatus(ctx context.Context, statuses ...domain.DishImageStatus) ([]*domain.Dish, error)

	// SkipByStatus moves every dish of the scan whose status is in from
	// into the skipped status and returns how many were moved. Used by the
	// stop and force-complete paths.
	SkipByStatus(ctx context.Context, scanID uuid.UUID, from []domain.DishImageStatus) (int, error)

	// CountByStatus returns how many dishes of the scan are in each of the
	// given statuses.
	CountByStatus(ctx context.Context, scanID uuid.UUID, statuses ...domain.DishImageStatus) (int, error)

	// Update saves changes to an existing dish, including image result
	// fields. Returns ErrDishNotFound if the dish does not exist.
	Update(ctx context.Context, dish *domain.Dish) error

	// WithTx returns a new DishStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) DishStore
}

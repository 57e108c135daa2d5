package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
)

// ScanStore defines the interface for scan data persistence.
type ScanStore interface {
	// Create saves a new scan to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, scan *domain.Scan) error

	// GetByID retrieves a scan by its unique ID.
	// Returns ErrScanNotFound if the scan does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Scan, error)

	// GetByIDForUpdate retrieves a scan and locks its row for the duration
	// of the surrounding transaction. It must only be called on a store
	// bound to a transaction via WithTx; calling it outside a transaction
	// gives no isolation.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Scan, error)

	// ListByDevice retrieves all scans owned by the given device,
	// newest first.
	ListByDevice(ctx context.Context, deviceID string) ([]*domain.Scan, error)

	// ListByStatus retrieves every scan currently in one of the given
	// statuses. Used by startup recovery to fail scans whose pipeline run
	// was interrupted.
	ListByStatus(ctx context.Context, statuses ...domain.ScanStatus) ([]*domain.Scan, error)

	// Update saves changes to an existing scan.
	// Returns ErrScanNotFound if the scan does not exist.
	Update(ctx context.Context, scan *domain.Scan) error

	// Delete removes a scan. Dishes cascade at the schema level.
	// Returns ErrScanNotFound if the scan does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new ScanStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) ScanStore

	// DB returns the underlying database connection for transaction management.
	DB() *sql.DB
}

package store

import (
	"context"
	"database/sql"

	"github.com/menulens/menulens-api/internal/domain"
)

// DeviceUserStore defines the interface for device user persistence.
type DeviceUserStore interface {
	// Upsert creates the device user on first contact or refreshes its
	// last-seen timestamp, returning the current record.
	Upsert(ctx context.Context, deviceID string) (*domain.DeviceUser, error)

	// GetByID retrieves a device user by its opaque identifier.
	// Returns ErrDeviceUserNotFound if it does not exist.
	GetByID(ctx context.Context, deviceID string) (*domain.DeviceUser, error)

	// AdjustScanCount atomically adds delta to the device's scan count,
	// clamping at zero.
	AdjustScanCount(ctx context.Context, deviceID string, delta int) error

	// WithTx returns a new DeviceUserStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) DeviceUserStore
}

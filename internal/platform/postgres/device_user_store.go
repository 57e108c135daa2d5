package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/platform/logger"
	"github.com/menulens/menulens-api/internal/store"
)

// PostgresDeviceUserStore implements the store.DeviceUserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDeviceUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeviceUserStore creates a new PostgreSQL implementation of
// the DeviceUserStore interface.
func NewPostgresDeviceUserStore(db store.DBTX, logger *slog.Logger) *PostgresDeviceUserStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDeviceUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "device_user_store")),
	}
}

// Ensure PostgresDeviceUserStore implements store.DeviceUserStore interface
var _ store.DeviceUserStore = (*PostgresDeviceUserStore)(nil)

// Upsert implements store.DeviceUserStore.Upsert. First contact inserts the
// row; every later contact refreshes last_seen_at.
func (s *PostgresDeviceUserStore) Upsert(ctx context.Context, deviceID string) (*domain.DeviceUser, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if deviceID == "" {
		return nil, domain.ErrEmptyDeviceID
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO device_users (id, created_at, last_seen_at, scan_count)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, created_at, last_seen_at, scan_count
	`

	var user domain.DeviceUser
	err := s.db.QueryRowContext(ctx, query, deviceID, now).Scan(
		&user.ID,
		&user.CreatedAt,
		&user.LastSeenAt,
		&user.ScanCount,
	)
	if err != nil {
		log.Error("failed to upsert device user",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return nil, err
	}

	return &user, nil
}

// GetByID implements store.DeviceUserStore.GetByID.
func (s *PostgresDeviceUserStore) GetByID(ctx context.Context, deviceID string) (*domain.DeviceUser, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT id, created_at, last_seen_at, scan_count FROM device_users WHERE id = $1`

	var user domain.DeviceUser
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&user.ID,
		&user.CreatedAt,
		&user.LastSeenAt,
		&user.ScanCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeviceUserNotFound
		}
		log.Error("failed to get device user",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return nil, err
	}

	return &user, nil
}

// AdjustScanCount implements store.DeviceUserStore.AdjustScanCount as a
// single atomic increment, clamped at zero.
func (s *PostgresDeviceUserStore) AdjustScanCount(ctx context.Context, deviceID string, delta int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE device_users
		SET scan_count = GREATEST(0, scan_count + $2)
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, deviceID, delta)
	if err != nil {
		log.Error("failed to adjust scan count",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrDeviceUserNotFound
	}

	return nil
}

// WithTx implements store.DeviceUserStore.WithTx.
func (s *PostgresDeviceUserStore) WithTx(tx *sql.Tx) store.DeviceUserStore {
	return &PostgresDeviceUserStore{
		db:     tx,
		logger: s.logger,
	}
}

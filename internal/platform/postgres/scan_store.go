package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/platform/logger"
	"github.com/menulens/menulens-api/internal/store"
)

// PostgresScanStore implements the store.ScanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresScanStore struct {
	db     store.DBTX
	sqlDB  *sql.DB
	logger *slog.Logger
}

// NewPostgresScanStore creates a new PostgreSQL implementation of the
// ScanStore interface. It accepts the database connection, which is also
// handed out through DB() for transaction management.
// If logger is nil, a default logger will be used.
func NewPostgresScanStore(db *sql.DB, logger *slog.Logger) *PostgresScanStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresScanStore{
		db:     db,
		sqlDB:  db,
		logger: logger.With(slog.String("component", "scan_store")),
	}
}

// Ensure PostgresScanStore implements store.ScanStore interface
var _ store.ScanStore = (*PostgresScanStore)(nil)

const scanColumns = `id, device_id, menu_image_key, restaurant_name, status, status_message,
	total_dishes, dishes_extracted, images_generated, images_requested,
	estimated_cost_usd, actual_cost_usd, created_at, completed_at`

// Create implements store.ScanStore.Create.
func (s *PostgresScanStore) Create(ctx context.Context, scan *domain.Scan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := scan.Validate(); err != nil {
		log.Warn("scan validation failed during create",
			slog.String("error", err.Error()),
			slog.String("scan_id", scan.ID.String()))
		return err
	}

	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		scan.ID,
		scan.DeviceID,
		scan.MenuImageKey,
		scan.RestaurantName,
		scan.Status,
		scan.StatusMessage,
		scan.TotalDishes,
		scan.DishesExtracted,
		scan.ImagesGenerated,
		scan.ImagesRequested,
		scan.EstimatedCostUSD,
		scan.ActualCostUSD,
		scan.CreatedAt,
		scan.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create scan",
			slog.String("error", err.Error()),
			slog.String("scan_id", scan.ID.String()))
		return mapError(err, "scan")
	}

	log.Info("scan created",
		slog.String("scan_id", scan.ID.String()),
		slog.String("device_id", scan.DeviceID))
	return nil
}

// GetByID implements store.ScanStore.GetByID.
func (s *PostgresScanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Scan, error) {
	return s.getByID(ctx, id, false)
}

// GetByIDForUpdate implements store.ScanStore.GetByIDForUpdate. It locks
// the scan row for the duration of the surrounding transaction.
func (s *PostgresScanStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Scan, error) {
	return s.getByID(ctx, id, true)
}

func (s *PostgresScanStore) getByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Scan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	scan, err := scanRowTo(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("scan not found", slog.String("scan_id", id.String()))
			return nil, store.ErrScanNotFound
		}
		log.Error("failed to get scan by ID",
			slog.String("error", err.Error()),
			slog.String("scan_id", id.String()))
		return nil, err
	}

	return scan, nil
}

// ListByDevice implements store.ScanStore.ListByDevice.
func (s *PostgresScanStore) ListByDevice(ctx context.Context, deviceID string) ([]*domain.Scan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + scanColumns + ` FROM scans WHERE device_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		log.Error("failed to list scans by device",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	scans := make([]*domain.Scan, 0)
	for rows.Next() {
		scan, err := scanRowTo(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// ListByStatus implements store.ScanStore.ListByStatus.
func (s *PostgresScanStore) ListByStatus(
	ctx context.Context,
	statuses ...domain.ScanStatus,
) ([]*domain.Scan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	list, err := scanStatusList(statuses)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE status IN (` + list + `) ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list scans by status",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	scans := make([]*domain.Scan, 0)
	for rows.Next() {
		scan, err := scanRowTo(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// scanStatusList renders a quoted IN-clause body for the given statuses,
// rejecting anything outside the closed enum.
func scanStatusList(statuses []domain.ScanStatus) (string, error) {
	if len(statuses) == 0 {
		return "", errors.New("at least one status is required")
	}

	quoted := make([]string, 0, len(statuses))
	for _, status := range statuses {
		switch status {
		case domain.ScanStatusPending, domain.ScanStatusUploading, domain.ScanStatusProcessing,
			domain.ScanStatusExtracting, domain.ScanStatusGenerating,
			domain.ScanStatusCompleted, domain.ScanStatusFailed:
			quoted = append(quoted, "'"+string(status)+"'")
		default:
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidScanStatus, status)
		}
	}

	return strings.Join(quoted, ", "), nil
}

// Update implements store.ScanStore.Update.
func (s *PostgresScanStore) Update(ctx context.Context, scan *domain.Scan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := scan.Validate(); err != nil {
		log.Warn("scan validation failed during update",
			slog.String("error", err.Error()),
			slog.String("scan_id", scan.ID.String()))
		return err
	}

	query := `
		UPDATE scans
		SET menu_image_key = $2, restaurant_name = $3, status = $4, status_message = $5,
			total_dishes = $6, dishes_extracted = $7, images_generated = $8,
			images_requested = $9, estimated_cost_usd = $10, actual_cost_usd = $11,
			completed_at = $12
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		scan.ID,
		scan.MenuImageKey,
		scan.RestaurantName,
		scan.Status,
		scan.StatusMessage,
		scan.TotalDishes,
		scan.DishesExtracted,
		scan.ImagesGenerated,
		scan.ImagesRequested,
		scan.EstimatedCostUSD,
		scan.ActualCostUSD,
		scan.CompletedAt,
	)
	if err != nil {
		log.Error("failed to update scan",
			slog.String("error", err.Error()),
			slog.String("scan_id", scan.ID.String()))
		return mapError(err, "scan")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrScanNotFound
	}

	return nil
}

// Delete implements store.ScanStore.Delete. Dishes cascade at the schema
// level.
func (s *PostgresScanStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete scan",
			slog.String("error", err.Error()),
			slog.String("scan_id", id.String()))
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrScanNotFound
	}

	log.Info("scan deleted", slog.String("scan_id", id.String()))
	return nil
}

// WithTx implements store.ScanStore.WithTx.
func (s *PostgresScanStore) WithTx(tx *sql.Tx) store.ScanStore {
	return &PostgresScanStore{
		db:     tx,
		sqlDB:  s.sqlDB,
		logger: s.logger,
	}
}

// DB implements store.ScanStore.DB.
func (s *PostgresScanStore) DB() *sql.DB {
	return s.sqlDB
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared row mapping.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRowTo maps one scans row into a domain.Scan.
func scanRowTo(row rowScanner) (*domain.Scan, error) {
	var scan domain.Scan
	var status string
	var completedAt sql.NullTime

	err := row.Scan(
		&scan.ID,
		&scan.DeviceID,
		&scan.MenuImageKey,
		&scan.RestaurantName,
		&status,
		&scan.StatusMessage,
		&scan.TotalDishes,
		&scan.DishesExtracted,
		&scan.ImagesGenerated,
		&scan.ImagesRequested,
		&scan.EstimatedCostUSD,
		&scan.ActualCostUSD,
		&scan.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	scan.Status = domain.ScanStatus(status)
	if completedAt.Valid {
		scan.CompletedAt = &completedAt.Time
	}

	return &scan, nil
}

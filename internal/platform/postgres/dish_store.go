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

// PostgresDishStore implements the store.DishStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDishStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDishStore creates a new PostgreSQL implementation of the
// DishStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresDishStore(db store.DBTX, logger *slog.Logger) *PostgresDishStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDishStore{
		db:     db,
		logger: logger.With(slog.String("component", "dish_store")),
	}
}

// Ensure PostgresDishStore implements store.DishStore interface
var _ store.DishStore = (*PostgresDishStore)(nil)

const dishColumns = `id, scan_id, name, description, price, section_name, display_order,
	image_status, image_key, image_provider, image_cost_usd, image_error, generated_at`

// CreateBatch implements store.DishStore.CreateBatch using one multi-row
// insert so extraction results land atomically.
func (s *PostgresDishStore) CreateBatch(ctx context.Context, dishes []*domain.Dish) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(dishes) == 0 {
		return nil
	}

	const fieldCount = 13
	placeholders := make([]string, 0, len(dishes))
	args := make([]any, 0, len(dishes)*fieldCount)
	for i, dish := range dishes {
		if err := dish.Validate(); err != nil {
			log.Warn("dish validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("dish_id", dish.ID.String()))
			return err
		}

		base := i * fieldCount
		marks := make([]string, fieldCount)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			dish.ID,
			dish.ScanID,
			dish.Name,
			dish.Description,
			dish.Price,
			dish.SectionName,
			dish.DisplayOrder,
			dish.ImageStatus,
			dish.ImageKey,
			dish.ImageProvider,
			dish.ImageCostUSD,
			dish.ImageError,
			dish.GeneratedAt,
		)
	}

	query := `INSERT INTO dishes (` + dishColumns + `) VALUES ` + strings.Join(placeholders, ", ")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to batch create dishes",
			slog.String("error", err.Error()),
			slog.Int("count", len(dishes)))
		return mapError(err, "dish")
	}

	log.Info("dishes created", slog.Int("count", len(dishes)),
		slog.String("scan_id", dishes[0].ScanID.String()))
	return nil
}

// GetByID implements store.DishStore.GetByID.
func (s *PostgresDishStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dish, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + dishColumns + ` FROM dishes WHERE id = $1`

	dish, err := dishRowTo(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("dish not found", slog.String("dish_id", id.String()))
			return nil, store.ErrDishNotFound
		}
		log.Error("failed to get dish by ID",
			slog.String("error", err.Error()),
			slog.String("dish_id", id.String()))
		return nil, err
	}

	return dish, nil
}

// ListByScan implements store.DishStore.ListByScan, ordered by display
// order so the client renders a stable list regardless of completion order.
func (s *PostgresDishStore) ListByScan(ctx context.Context, scanID uuid.UUID) ([]*domain.Dish, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + dishColumns + ` FROM dishes WHERE scan_id = $1 ORDER BY display_order`

	rows, err := s.db.QueryContext(ctx, query, scanID)
	if err != nil {
		log.Error("failed to list dishes by scan",
			slog.String("error", err.Error()),
			slog.String("scan_id", scanID.String()))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	dishes := make([]*domain.Dish, 0)
	for rows.Next() {
		dish, err := dishRowTo(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, dish)
	}

	return dishes, rows.Err()
}

// ClaimForGeneration implements store.DishStore.ClaimForGeneration as a
// single conditional UPDATE. The status predicate is the idempotency
// guard: a dish already generating or completed is never claimed, so
// concurrent triggers cannot produce two billable generations. Skipped
// and failed dishes are excluded too; a re-trigger must move the dish
// back to queued first, so a worker draining a stale queue entry after
// a stop request finds nothing to claim.
func (s *PostgresDishStore) ClaimForGeneration(ctx context.Context, id uuid.UUID) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE dishes
		SET image_status = 'generating', image_error = ''
		WHERE id = $1
		  AND image_status IN ('pending', 'queued')
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to claim dish for generation",
			slog.String("error", err.Error()),
			slog.String("dish_id", id.String()))
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// QueueEligible implements store.DishStore.QueueEligible. Eligible dishes
// are chosen in display order; the nested select keeps selection and
// marking in one statement.
func (s *PostgresDishStore) QueueEligible(ctx context.Context, scanID uuid.UUID, limit int) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	query := `
		UPDATE dishes
		SET image_status = 'queued'
		WHERE id IN (
			SELECT id FROM dishes
			WHERE scan_id = $1 AND image_status IN ('pending', 'skipped')
			ORDER BY display_order
			LIMIT $2
		)
		RETURNING id
	`
	rows, err := s.db.QueryContext(ctx, query, scanID, limit)
	if err != nil {
		log.Error("failed to queue eligible dishes",
			slog.String("error", err.Error()),
			slog.String("scan_id", scanID.String()))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListByImageStatus implements store.DishStore.ListByImageStatus.
func (s *PostgresDishStore) ListByImageStatus(
	ctx context.Context,
	statuses ...domain.DishImageStatus,
) ([]*domain.Dish, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	list, err := statusList(statuses)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + dishColumns + ` FROM dishes WHERE image_status IN (` + list + `) ORDER BY scan_id, display_order`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list dishes by image status",
			slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	dishes := make([]*domain.Dish, 0)
	for rows.Next() {
		dish, err := dishRowTo(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, dish)
	}

	return dishes, rows.Err()
}

// SkipByStatus implements store.DishStore.SkipByStatus.
func (s *PostgresDishStore) SkipByStatus(
	ctx context.Context,
	scanID uuid.UUID,
	from []domain.DishImageStatus,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	list, err := statusList(from)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE dishes
		SET image_status = 'skipped'
		WHERE scan_id = $1 AND image_status IN (` + list + `)
	`
	result, err := s.db.ExecContext(ctx, query, scanID)
	if err != nil {
		log.Error("failed to skip dishes",
			slog.String("error", err.Error()),
			slog.String("scan_id", scanID.String()))
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}

// CountByStatus implements store.DishStore.CountByStatus.
func (s *PostgresDishStore) CountByStatus(
	ctx context.Context,
	scanID uuid.UUID,
	statuses ...domain.DishImageStatus,
) (int, error) {
	list, err := statusList(statuses)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM dishes WHERE scan_id = $1 AND image_status IN (` + list + `)`

	var count int
	if err := s.db.QueryRowContext(ctx, query, scanID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// Update implements store.DishStore.Update.
func (s *PostgresDishStore) Update(ctx context.Context, dish *domain.Dish) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := dish.Validate(); err != nil {
		log.Warn("dish validation failed during update",
			slog.String("error", err.Error()),
			slog.String("dish_id", dish.ID.String()))
		return err
	}

	query := `
		UPDATE dishes
		SET name = $2, description = $3, price = $4, section_name = $5,
			image_status = $6, image_key = $7, image_provider = $8,
			image_cost_usd = $9, image_error = $10, generated_at = $11
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		dish.ID,
		dish.Name,
		dish.Description,
		dish.Price,
		dish.SectionName,
		dish.ImageStatus,
		dish.ImageKey,
		dish.ImageProvider,
		dish.ImageCostUSD,
		dish.ImageError,
		dish.GeneratedAt,
	)
	if err != nil {
		log.Error("failed to update dish",
			slog.String("error", err.Error()),
			slog.String("dish_id", dish.ID.String()))
		return mapError(err, "dish")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrDishNotFound
	}

	return nil
}

// WithTx implements store.DishStore.WithTx.
func (s *PostgresDishStore) WithTx(tx *sql.Tx) store.DishStore {
	return &PostgresDishStore{
		db:     tx,
		logger: s.logger,
	}
}

// statusList renders validated statuses as a quoted SQL list. Statuses come
// from the closed domain enum; anything else is rejected rather than
// interpolated.
func statusList(statuses []domain.DishImageStatus) (string, error) {
	if len(statuses) == 0 {
		return "", errors.New("at least one status is required")
	}

	quoted := make([]string, 0, len(statuses))
	for _, status := range statuses {
		switch status {
		case domain.DishImagePending, domain.DishImageQueued, domain.DishImageGenerating,
			domain.DishImageCompleted, domain.DishImageFailed, domain.DishImageSkipped:
			quoted = append(quoted, "'"+string(status)+"'")
		default:
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidImageStatus, status)
		}
	}

	return strings.Join(quoted, ", "), nil
}

// dishRowTo maps one dishes row into a domain.Dish.
func dishRowTo(row rowScanner) (*domain.Dish, error) {
	var dish domain.Dish
	var status string
	var generatedAt sql.NullTime

	err := row.Scan(
		&dish.ID,
		&dish.ScanID,
		&dish.Name,
		&dish.Description,
		&dish.Price,
		&dish.SectionName,
		&dish.DisplayOrder,
		&status,
		&dish.ImageKey,
		&dish.ImageProvider,
		&dish.ImageCostUSD,
		&dish.ImageError,
		&generatedAt,
	)
	if err != nil {
		return nil, err
	}

	dish.ImageStatus = domain.DishImageStatus(status)
	if generatedAt.Valid {
		dish.GeneratedAt = &generatedAt.Time
	}

	return &dish, nil
}

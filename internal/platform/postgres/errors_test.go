package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("nil passes through", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, mapError(nil, "scan"))
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		t.Parallel()

		err := mapError(&pgconn.PgError{Code: pgUniqueViolationCode, ConstraintName: "dishes_scan_order_key"}, "dish")
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("foreign key violation maps to invalid entity", func(t *testing.T) {
		t.Parallel()

		err := mapError(&pgconn.PgError{Code: pgForeignKeyViolationCode, ConstraintName: "dishes_scan_id_fkey"}, "dish")
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		t.Parallel()

		original := errors.New("connection refused")
		assert.Same(t, original, mapError(original, "scan"))
	})
}

func TestStatusList(t *testing.T) {
	t.Parallel()

	t.Run("quotes known statuses", func(t *testing.T) {
		t.Parallel()

		list, err := statusList([]domain.DishImageStatus{domain.DishImagePending, domain.DishImageQueued})
		assert.NoError(t, err)
		assert.Equal(t, "'pending', 'queued'", list)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()

		_, err := statusList([]domain.DishImageStatus{"queued'; DROP TABLE dishes; --"})
		assert.ErrorIs(t, err, domain.ErrInvalidImageStatus)
	})

	t.Run("rejects empty list", func(t *testing.T) {
		t.Parallel()

		_, err := statusList(nil)
		assert.Error(t, err)
	})
}

func TestScanStatusList(t *testing.T) {
	t.Parallel()

	t.Run("quotes known statuses", func(t *testing.T) {
		t.Parallel()

		list, err := scanStatusList([]domain.ScanStatus{domain.ScanStatusProcessing, domain.ScanStatusExtracting})
		assert.NoError(t, err)
		assert.Equal(t, "'processing', 'extracting'", list)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()

		_, err := scanStatusList([]domain.ScanStatus{"archived"})
		assert.ErrorIs(t, err, domain.ErrInvalidScanStatus)
	})
}

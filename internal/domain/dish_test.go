package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDish(t *testing.T) {
	t.Parallel()

	t.Run("valid dish", func(t *testing.T) {
		t.Parallel()

		scanID := uuid.New()
		dish, err := NewDish(scanID, "Margherita Pizza", 0, DishImageQueued)
		require.NoError(t, err)

		assert.Equal(t, scanID, dish.ScanID)
		assert.Equal(t, "Margherita Pizza", dish.Name)
		assert.Equal(t, 0, dish.DisplayOrder)
		assert.Equal(t, DishImageQueued, dish.ImageStatus)
	})

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()

		_, err := NewDish(uuid.New(), "", 0, DishImagePending)
		assert.ErrorIs(t, err, ErrEmptyDishName)
	})

	t.Run("nil scan ID", func(t *testing.T) {
		t.Parallel()

		_, err := NewDish(uuid.Nil, "Soup", 0, DishImagePending)
		assert.ErrorIs(t, err, ErrEmptyDishScanID)
	})
}

func TestDishImageTransitions(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		dish, err := NewDish(uuid.New(), "Ramen", 0, DishImagePending)
		require.NoError(t, err)

		require.NoError(t, dish.TransitionTo(DishImageQueued))
		require.NoError(t, dish.TransitionTo(DishImageGenerating))
		require.NoError(t, dish.TransitionTo(DishImageCompleted))
	})

	t.Run("completed rejects re-trigger", func(t *testing.T) {
		t.Parallel()

		dish, err := NewDish(uuid.New(), "Ramen", 0, DishImageCompleted)
		require.NoError(t, err)

		assert.False(t, dish.Retriggerable())
		assert.ErrorIs(t, dish.TransitionTo(DishImageGenerating), ErrIllegalTransition)
	})

	t.Run("generating rejects re-trigger", func(t *testing.T) {
		t.Parallel()

		dish, err := NewDish(uuid.New(), "Ramen", 0, DishImageGenerating)
		require.NoError(t, err)

		assert.False(t, dish.Retriggerable())
	})

	t.Run("skipped from pending, queued and generating only", func(t *testing.T) {
		t.Parallel()

		for _, from := range []DishImageStatus{DishImagePending, DishImageQueued, DishImageGenerating} {
			dish := &Dish{ID: uuid.New(), ScanID: uuid.New(), Name: "x", ImageStatus: from}
			assert.True(t, dish.CanTransitionTo(DishImageSkipped), "from %s", from)
		}

		for _, from := range []DishImageStatus{DishImageCompleted, DishImageFailed} {
			dish := &Dish{ID: uuid.New(), ScanID: uuid.New(), Name: "x", ImageStatus: from}
			assert.False(t, dish.CanTransitionTo(DishImageSkipped), "from %s", from)
		}
	})

	t.Run("failed from queued and generating only", func(t *testing.T) {
		t.Parallel()

		for _, from := range []DishImageStatus{DishImageQueued, DishImageGenerating} {
			dish := &Dish{ID: uuid.New(), ScanID: uuid.New(), Name: "x", ImageStatus: from}
			assert.True(t, dish.CanTransitionTo(DishImageFailed), "from %s", from)
		}

		dish := &Dish{ID: uuid.New(), ScanID: uuid.New(), Name: "x", ImageStatus: DishImagePending}
		assert.False(t, dish.CanTransitionTo(DishImageFailed))
	})

	t.Run("failed and skipped dishes can be re-queued", func(t *testing.T) {
		t.Parallel()

		for _, from := range []DishImageStatus{DishImageFailed, DishImageSkipped} {
			dish := &Dish{ID: uuid.New(), ScanID: uuid.New(), Name: "x", ImageStatus: from}
			assert.True(t, dish.Retriggerable(), "from %s", from)
			assert.NoError(t, dish.TransitionTo(DishImageQueued))
		}
	})
}

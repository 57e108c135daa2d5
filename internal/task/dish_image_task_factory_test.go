package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDishImageTaskFactory(t *testing.T) {
	t.Parallel()

	newFactory := func(t *testing.T) *DishImageTaskFactory {
		t.Helper()
		factory, err := NewDishImageTaskFactory(
			&mockDishAccessor{},
			map[string]provider.ImageGenerator{"gemini": &mockGenerator{}},
			"gemini",
			&mockBlobWriter{},
			&mockRecorder{},
			testTemplate,
			discardLogger(),
		)
		require.NoError(t, err)
		return factory
	}

	t.Run("creates task for registered provider", func(t *testing.T) {
		t.Parallel()

		task, err := newFactory(t).CreateTask(uuid.New(), uuid.New(), "gemini")
		require.NoError(t, err)
		assert.Equal(t, TaskTypeDishImage, task.Type())
	})

	t.Run("unknown provider falls back to default", func(t *testing.T) {
		t.Parallel()

		task, err := newFactory(t).CreateTask(uuid.New(), uuid.New(), "dalle")
		require.NoError(t, err)
		assert.NotNil(t, task)
	})

	t.Run("empty provider uses default", func(t *testing.T) {
		t.Parallel()

		task, err := newFactory(t).CreateTask(uuid.New(), uuid.New(), "")
		require.NoError(t, err)
		assert.NotNil(t, task)
	})

	t.Run("rejects empty generator registry", func(t *testing.T) {
		t.Parallel()

		_, err := NewDishImageTaskFactory(
			&mockDishAccessor{}, nil, "gemini",
			&mockBlobWriter{}, &mockRecorder{}, testTemplate, discardLogger())
		assert.Error(t, err)
	})

	t.Run("rejects unregistered default provider", func(t *testing.T) {
		t.Parallel()

		_, err := NewDishImageTaskFactory(
			&mockDishAccessor{},
			map[string]provider.ImageGenerator{"gemini": &mockGenerator{}},
			"imagen",
			&mockBlobWriter{}, &mockRecorder{}, testTemplate, discardLogger())
		assert.Error(t, err)
	})
}

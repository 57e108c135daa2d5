package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDishAccessor struct {
	dish       *domain.Dish
	claimed    bool
	claimErr   error
	claimCalls int
	updates    []domain.Dish
	updateErr  error
}

func (m *mockDishAccessor) GetByID(_ context.Context, _ uuid.UUID) (*domain.Dish, error) {
	if m.dish == nil {
		return nil, errors.New("dish not found")
	}
	copied := *m.dish
	return &copied, nil
}

func (m *mockDishAccessor) ClaimForGeneration(_ context.Context, _ uuid.UUID) (bool, error) {
	m.claimCalls++
	if m.claimErr != nil {
		return false, m.claimErr
	}
	return m.claimed, nil
}

func (m *mockDishAccessor) Update(_ context.Context, dish *domain.Dish) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, *dish)
	return nil
}

type mockGenerator struct {
	image   *provider.GeneratedImage
	err     error
	prompts []string
}

func (m *mockGenerator) GenerateImage(_ context.Context, prompt string) (*provider.GeneratedImage, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	return m.image, nil
}

func (m *mockGenerator) Name() string { return "gemini" }

type mockBlobWriter struct {
	keys []string
	err  error
}

func (m *mockBlobWriter) Put(_ context.Context, key string, _ []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	return nil
}

type outcome struct {
	scanID  uuid.UUID
	costUSD float64
}

type mockRecorder struct {
	outcomes []outcome
	err      error
}

func (m *mockRecorder) RecordImageOutcome(_ context.Context, scanID uuid.UUID, costUSD float64) error {
	if m.err != nil {
		return m.err
	}
	m.outcomes = append(m.outcomes, outcome{scanID: scanID, costUSD: costUSD})
	return nil
}

func claimedDish(scanID uuid.UUID) *domain.Dish {
	dish, _ := domain.NewDish(scanID, "Pad Thai", 0, domain.DishImageGenerating)
	dish.Description = "Rice noodles with tamarind"
	return dish
}

const testTemplate = `Photo of "{name}". {description}.`

func newTestTask(
	t *testing.T,
	scanID uuid.UUID,
	dishes *mockDishAccessor,
	generator *mockGenerator,
	blobs *mockBlobWriter,
	recorder *mockRecorder,
) *DishImageTask {
	t.Helper()
	task, err := NewDishImageTask(
		scanID, uuid.New(), dishes, generator, blobs, recorder, testTemplate, discardLogger())
	require.NoError(t, err)
	return task
}

func TestDishImageTaskSuccess(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{dish: claimedDish(scanID), claimed: true}
	generator := &mockGenerator{image: &provider.GeneratedImage{
		Data:     []byte("png-bytes"),
		MimeType: "image/png",
		CostUSD:  0.039,
	}}
	blobs := &mockBlobWriter{}
	recorder := &mockRecorder{}

	task := newTestTask(t, scanID, dishes, generator, blobs, recorder)
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, TaskStatusCompleted, task.Status())

	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], `"Pad Thai"`)
	assert.Contains(t, generator.prompts[0], "Rice noodles with tamarind")

	require.Len(t, blobs.keys, 1)
	assert.True(t, strings.HasSuffix(blobs.keys[0], ".png"), "key %q should carry the image extension", blobs.keys[0])

	require.Len(t, dishes.updates, 1)
	saved := dishes.updates[0]
	assert.Equal(t, domain.DishImageCompleted, saved.ImageStatus)
	assert.Equal(t, blobs.keys[0], saved.ImageKey)
	assert.Equal(t, "gemini", saved.ImageProvider)
	assert.InDelta(t, 0.039, saved.ImageCostUSD, 1e-9)
	assert.NotNil(t, saved.GeneratedAt)
	assert.Empty(t, saved.ImageError)

	require.Len(t, recorder.outcomes, 1)
	assert.Equal(t, scanID, recorder.outcomes[0].scanID)
	assert.InDelta(t, 0.039, recorder.outcomes[0].costUSD, 1e-9)
}

func TestDishImageTaskClaimMissIsNoOp(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{dish: claimedDish(scanID), claimed: false}
	generator := &mockGenerator{}
	recorder := &mockRecorder{}

	task := newTestTask(t, scanID, dishes, generator, &mockBlobWriter{}, recorder)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, TaskStatusCompleted, task.Status())
	assert.Empty(t, generator.prompts, "unclaimed dish must not reach the provider")
	assert.Empty(t, recorder.outcomes, "no-op attempts must not touch scan counters")
}

func TestDishImageTaskGenerationFailure(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{dish: claimedDish(scanID), claimed: true}
	generator := &mockGenerator{err: fmt.Errorf("%w: safety filter", provider.ErrContentBlocked)}
	recorder := &mockRecorder{}

	task := newTestTask(t, scanID, dishes, generator, &mockBlobWriter{}, recorder)
	err := task.Execute(context.Background())
	require.ErrorIs(t, err, provider.ErrContentBlocked)
	assert.Equal(t, TaskStatusFailed, task.Status())

	require.Len(t, dishes.updates, 1)
	saved := dishes.updates[0]
	assert.Equal(t, domain.DishImageFailed, saved.ImageStatus)
	assert.Contains(t, saved.ImageError, "safety filter")
	assert.Zero(t, saved.ImageCostUSD)

	// Failed attempts still resolve the slot, at zero cost.
	require.Len(t, recorder.outcomes, 1)
	assert.Equal(t, scanID, recorder.outcomes[0].scanID)
	assert.Zero(t, recorder.outcomes[0].costUSD)
}

func TestDishImageTaskBlobFailureMarksDishFailed(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{dish: claimedDish(scanID), claimed: true}
	generator := &mockGenerator{image: &provider.GeneratedImage{
		Data:     []byte("jpg-bytes"),
		MimeType: "image/jpeg",
		CostUSD:  0.04,
	}}
	blobs := &mockBlobWriter{err: errors.New("bucket unavailable")}
	recorder := &mockRecorder{}

	task := newTestTask(t, scanID, dishes, generator, blobs, recorder)
	err := task.Execute(context.Background())
	require.Error(t, err)

	require.Len(t, dishes.updates, 1)
	assert.Equal(t, domain.DishImageFailed, dishes.updates[0].ImageStatus)

	require.Len(t, recorder.outcomes, 1)
	assert.Zero(t, recorder.outcomes[0].costUSD, "an image that was never stored must not be billed")
}

func TestDishImageTaskClaimError(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{claimErr: errors.New("connection refused")}
	recorder := &mockRecorder{}

	task := newTestTask(t, scanID, dishes, &mockGenerator{}, &mockBlobWriter{}, recorder)
	err := task.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status())
	assert.Empty(t, recorder.outcomes)
}

func TestDishImageTaskCancelledContext(t *testing.T) {
	t.Parallel()

	scanID := uuid.New()
	dishes := &mockDishAccessor{dish: claimedDish(scanID), claimed: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newTestTask(t, scanID, dishes, &mockGenerator{}, &mockBlobWriter{}, &mockRecorder{})
	err := task.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dishes.claimCalls, "cancelled task must not claim the dish")
}

func TestNewDishImageTaskValidation(t *testing.T) {
	t.Parallel()

	dishes := &mockDishAccessor{}
	generator := &mockGenerator{}
	blobs := &mockBlobWriter{}
	recorder := &mockRecorder{}
	logger := discardLogger()
	scanID, dishID := uuid.New(), uuid.New()

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"nil dishes", func() error {
			_, err := NewDishImageTask(scanID, dishID, nil, generator, blobs, recorder, "", logger)
			return err
		}, ErrNilDishes},
		{"nil generator", func() error {
			_, err := NewDishImageTask(scanID, dishID, dishes, nil, blobs, recorder, "", logger)
			return err
		}, ErrNilGenerator},
		{"nil blobs", func() error {
			_, err := NewDishImageTask(scanID, dishID, dishes, generator, nil, recorder, "", logger)
			return err
		}, ErrNilBlobs},
		{"nil recorder", func() error {
			_, err := NewDishImageTask(scanID, dishID, dishes, generator, blobs, nil, "", logger)
			return err
		}, ErrNilRecorder},
		{"nil logger", func() error {
			_, err := NewDishImageTask(scanID, dishID, dishes, generator, blobs, recorder, "", nil)
			return err
		}, ErrNilLogger},
		{"empty scan ID", func() error {
			_, err := NewDishImageTask(uuid.Nil, dishID, dishes, generator, blobs, recorder, "", logger)
			return err
		}, ErrEmptyScanID},
		{"empty dish ID", func() error {
			_, err := NewDishImageTask(scanID, uuid.Nil, dishes, generator, blobs, recorder, "", logger)
			return err
		}, ErrEmptyDishID},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tc.run(), tc.want)
		})
	}
}

package task

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/provider"
)

// DishImageTaskFactory builds DishImageTask instances with the shared
// dependencies wired in, so event handlers only carry IDs around.
type DishImageTaskFactory struct {
	dishes          DishAccessor
	generators      map[string]provider.ImageGenerator
	defaultProvider string
	blobs           BlobWriter
	recorder        OutcomeRecorder
	template        string
	logger          *slog.Logger
}

// NewDishImageTaskFactory creates a factory over the registered generator
// variants. defaultProvider must be a key of generators.
func NewDishImageTaskFactory(
	dishes DishAccessor,
	generators map[string]provider.ImageGenerator,
	defaultProvider string,
	blobs BlobWriter,
	recorder OutcomeRecorder,
	template string,
	logger *slog.Logger,
) (*DishImageTaskFactory, error) {
	if len(generators) == 0 {
		return nil, ErrNilGenerator
	}
	if _, ok := generators[defaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q is not registered", defaultProvider)
	}

	return &DishImageTaskFactory{
		dishes:          dishes,
		generators:      generators,
		defaultProvider: defaultProvider,
		blobs:           blobs,
		recorder:        recorder,
		template:        template,
		logger:          logger,
	}, nil
}

// CreateTask builds a task for the dish, selecting the generator variant
// named by providerName, or the default when empty or unknown.
func (f *DishImageTaskFactory) CreateTask(scanID, dishID uuid.UUID, providerName string) (Task, error) {
	generator, ok := f.generators[providerName]
	if !ok {
		if providerName != "" {
			f.logger.Warn("unknown image provider, using default",
				"requested", providerName,
				"default", f.defaultProvider)
		}
		generator = f.generators[f.defaultProvider]
	}

	return NewDishImageTask(
		scanID,
		dishID,
		f.dishes,
		generator,
		f.blobs,
		f.recorder,
		f.template,
		f.logger,
	)
}

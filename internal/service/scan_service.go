package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/events"
	"github.com/menulens/menulens-api/internal/platform/s3blob"
	"github.com/menulens/menulens-api/internal/provider"
	"github.com/menulens/menulens-api/internal/store"
)

// BlobStore is the slice of the blob storage layer the scan service needs:
// fetching the uploaded menu photo and releasing a scan's objects on delete.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// ScanService owns the menu scan lifecycle: creation, the extraction
// pipeline, image quota accounting, cancellation, and deletion. All
// counter mutations run inside row-locked transactions.
type ScanService interface {
	// CreateScan creates a pending scan for the device and returns it
	// together with the object key the client must upload the menu photo to.
	CreateScan(ctx context.Context, deviceID string) (*domain.Scan, string, error)

	// ConfirmUpload records that the menu photo landed at its object key
	// and moves the scan into the uploading status, making it eligible
	// for processing.
	ConfirmUpload(ctx context.Context, deviceID string, scanID uuid.UUID) (*domain.Scan, error)

	// StartProcessing runs the extraction pipeline: vision extraction,
	// dish creation, auto-queueing up to the configured limit, and the
	// transition into generating (or straight to completed when nothing
	// was queued). Any failure marks the scan failed; dishes already
	// created are preserved.
	StartProcessing(ctx context.Context, deviceID string, scanID uuid.UUID, providerName string) error

	// GenerateRemainingImages queues every eligible dish up to the
	// per-scan image ceiling and reports how many were queued. A ceiling
	// already reached queues zero and is not an error.
	GenerateRemainingImages(ctx context.Context, deviceID string, scanID uuid.UUID, providerName string) (int, error)

	// GenerateSingleDishImage queues one dish for generation, reporting
	// whether it was queued. Dishes already generating or completed are a
	// no-op, as is a dish that would exceed the image ceiling.
	GenerateSingleDishImage(ctx context.Context, deviceID string, dishID uuid.UUID, providerName string) (bool, error)

	// StopGeneration skips every queued dish and completes the scan.
	// In-flight generations finish naturally but no longer move counters.
	StopGeneration(ctx context.Context, deviceID string, scanID uuid.UUID) error

	// ForceComplete additionally reaps dishes stuck in generating, then
	// completes the scan.
	ForceComplete(ctx context.Context, deviceID string, scanID uuid.UUID) error

	// DeleteScan removes the scan, its dishes, and its stored blobs, and
	// decrements the device's scan count.
	DeleteScan(ctx context.Context, deviceID string, scanID uuid.UUID) error

	// GetScan returns the scan and its dishes.
	GetScan(ctx context.Context, deviceID string, scanID uuid.UUID) (*domain.Scan, []*domain.Dish, error)

	// ListScans returns the device's scans, newest first.
	ListScans(ctx context.Context, deviceID string) ([]*domain.Scan, error)

	// RecordImageOutcome settles one resolved generation attempt against
	// the scan: the generated counter always advances, cost is added for
	// successful attempts, and the scan completes when the last
	// outstanding attempt resolves. Outcomes arriving after the scan
	// reached a terminal status are dropped.
	RecordImageOutcome(ctx context.Context, scanID uuid.UUID, costUSD float64) error

	// RecoverInterrupted resolves work orphaned by a process restart:
	// scans caught mid-extraction are failed, dishes stuck in generating
	// are failed and settled, and queued dishes are re-submitted.
	RecoverInterrupted(ctx context.Context) error
}

// scanServiceImpl implements the ScanService interface.
type scanServiceImpl struct {
	scans     store.ScanStore
	dishes    store.DishStore
	devices   store.DeviceUserStore
	extractor provider.MenuExtractor
	blobs     BlobStore
	emitter   events.Emitter
	cfg       config.PipelineConfig
	logger    *slog.Logger
}

// NewScanService creates a new ScanService.
// It returns an error if any of the required dependencies are nil.
func NewScanService(
	scans store.ScanStore,
	dishes store.DishStore,
	devices store.DeviceUserStore,
	extractor provider.MenuExtractor,
	blobs BlobStore,
	emitter events.Emitter,
	cfg config.PipelineConfig,
	logger *slog.Logger,
) (ScanService, error) {
	if scans == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "scan store cannot be nil"}
	}
	if dishes == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "dish store cannot be nil"}
	}
	if devices == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "device user store cannot be nil"}
	}
	if extractor == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "menu extractor cannot be nil"}
	}
	if blobs == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "blob store cannot be nil"}
	}
	if emitter == nil {
		return nil, &ScanServiceError{Operation: "create_service", Message: "event emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &scanServiceImpl{
		scans:     scans,
		dishes:    dishes,
		devices:   devices,
		extractor: extractor,
		blobs:     blobs,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger.With("component", "scan_service"),
	}, nil
}

// CreateScan creates a pending scan and reserves its menu photo key.
func (s *scanServiceImpl) CreateScan(ctx context.Context, deviceID string) (*domain.Scan, string, error) {
	if deviceID == "" {
		return nil, "", ErrDeviceRequired
	}

	scan, err := domain.NewScan(deviceID)
	if err != nil {
		return nil, "", NewScanServiceError("create_scan", "failed to create scan object", err)
	}

	err = store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		if err := s.scans.WithTx(tx).Create(ctx, scan); err != nil {
			return NewScanServiceError("create_scan", "failed to save scan", err)
		}
		if err := s.devices.WithTx(tx).AdjustScanCount(ctx, deviceID, 1); err != nil {
			return NewScanServiceError("create_scan", "failed to adjust device scan count", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	uploadKey := s3blob.MenuKey(scan.ID)
	s.logger.Info("scan created",
		"scan_id", scan.ID,
		"device_id", deviceID,
		"upload_key", uploadKey)

	return scan, uploadKey, nil
}

// ConfirmUpload records the uploaded menu photo on the scan.
func (s *scanServiceImpl) ConfirmUpload(ctx context.Context, deviceID string, scanID uuid.UUID) (*domain.Scan, error) {
	var updated *domain.Scan

	err := store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("confirm_upload", "failed to load scan", err)
		}
		if err := requireOwned(scan, deviceID); err != nil {
			return err
		}

		if err := scan.TransitionTo(domain.ScanStatusUploading); err != nil {
			return fmt.Errorf("%w: scan is %s", ErrScanNotReady, scan.Status)
		}
		scan.MenuImageKey = s3blob.MenuKey(scan.ID)

		if err := txScans.Update(ctx, scan); err != nil {
			return NewScanServiceError("confirm_upload", "failed to save scan", err)
		}
		updated = scan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("menu upload confirmed", "scan_id", scanID, "device_id", deviceID)
	return updated, nil
}

// GetScan returns the scan and its dishes in display order.
func (s *scanServiceImpl) GetScan(ctx context.Context, deviceID string, scanID uuid.UUID) (*domain.Scan, []*domain.Dish, error) {
	scan, err := s.scans.GetByID(ctx, scanID)
	if err != nil {
		return nil, nil, NewScanServiceError("get_scan", "failed to load scan", err)
	}
	if err := requireOwned(scan, deviceID); err != nil {
		return nil, nil, err
	}

	dishes, err := s.dishes.ListByScan(ctx, scanID)
	if err != nil {
		return nil, nil, NewScanServiceError("get_scan", "failed to load dishes", err)
	}

	return scan, dishes, nil
}

// ListScans returns the device's scans, newest first.
func (s *scanServiceImpl) ListScans(ctx context.Context, deviceID string) ([]*domain.Scan, error) {
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}

	scans, err := s.scans.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, NewScanServiceError("list_scans", "failed to list scans", err)
	}
	return scans, nil
}

// DeleteScan removes the scan row (dishes cascade), decrements the
// device's scan count, and releases the scan's stored blobs. Blob cleanup
// is best effort: a storage hiccup must not resurrect the deleted scan.
func (s *scanServiceImpl) DeleteScan(ctx context.Context, deviceID string, scanID uuid.UUID) error {
	err := store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("delete_scan", "failed to load scan", err)
		}
		if err := requireOwned(scan, deviceID); err != nil {
			return err
		}

		if err := txScans.Delete(ctx, scanID); err != nil {
			return NewScanServiceError("delete_scan", "failed to delete scan", err)
		}
		if err := s.devices.WithTx(tx).AdjustScanCount(ctx, deviceID, -1); err != nil {
			return NewScanServiceError("delete_scan", "failed to adjust device scan count", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.blobs.DeletePrefix(ctx, s3blob.ScanPrefix(scanID)); err != nil {
		s.logger.Warn("failed to release scan blobs after delete",
			"scan_id", scanID,
			"error", err)
	}

	s.logger.Info("scan deleted", "scan_id", scanID, "device_id", deviceID)
	return nil
}

// RecordImageOutcome settles one resolved generation attempt. The scan
// row lock makes concurrent settlements serialize, which is what keeps
// imagesGenerated exact under worker fan-out.
func (s *scanServiceImpl) RecordImageOutcome(ctx context.Context, scanID uuid.UUID, costUSD float64) error {
	return store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("record_image_outcome", "failed to load scan", err)
		}

		if scan.IsTerminal() {
			s.logger.Warn("dropping late image outcome for terminal scan",
				"scan_id", scanID,
				"scan_status", scan.Status,
				"cost_usd", costUSD)
			return nil
		}

		scan.ImagesGenerated++
		scan.ActualCostUSD += costUSD

		if scan.Status == domain.ScanStatusGenerating && scan.ImagesGenerated >= scan.ImagesRequested {
			failed, err := s.dishes.WithTx(tx).CountByStatus(ctx, scanID, domain.DishImageFailed)
			if err != nil {
				return NewScanServiceError("record_image_outcome", "failed to count failed dishes", err)
			}
			if err := scan.TransitionTo(domain.ScanStatusCompleted); err != nil {
				return NewScanServiceError("record_image_outcome", "failed to complete scan", err)
			}
			if failed > 0 {
				scan.StatusMessage = fmt.Sprintf("%d of %d image generations failed", failed, scan.ImagesRequested)
			} else {
				scan.StatusMessage = "All requested images generated"
			}
		}

		if err := txScans.Update(ctx, scan); err != nil {
			return NewScanServiceError("record_image_outcome", "failed to save scan", err)
		}
		return nil
	})
}

// requireOwned reports ErrScanNotFound for scans owned by another device.
func requireOwned(scan *domain.Scan, deviceID string) error {
	if deviceID == "" {
		return ErrDeviceRequired
	}
	if scan.DeviceID != deviceID {
		return ErrScanNotFound
	}
	return nil
}

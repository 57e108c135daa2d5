package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/events"
	"github.com/menulens/menulens-api/internal/provider"
	"github.com/menulens/menulens-api/internal/store"
)

// StartProcessing runs the whole extraction pipeline synchronously. The
// HTTP layer invokes it on a background goroutine and answers 202; the
// client observes progress through the scan's status. Any failure after
// the initial claim marks the scan failed with a message, preserving
// dishes already created.
func (s *scanServiceImpl) StartProcessing(
	ctx context.Context,
	deviceID string,
	scanID uuid.UUID,
	providerName string,
) error {
	providerName = s.resolveProvider(providerName)
	log := s.logger.With("scan_id", scanID, "provider", providerName)

	// Claim the scan before any provider work so a second concurrent
	// process call fails the transition check instead of double-running.
	var menuKey string
	err := store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("start_processing", "failed to load scan", err)
		}
		if err := requireOwned(scan, deviceID); err != nil {
			return err
		}
		if scan.MenuImageKey == "" {
			return ErrMenuImageMissing
		}
		if err := scan.TransitionTo(domain.ScanStatusProcessing); err != nil {
			return fmt.Errorf("%w: scan is %s", ErrScanNotReady, scan.Status)
		}
		menuKey = scan.MenuImageKey
		return txScans.Update(ctx, scan)
	})
	if err != nil {
		return err
	}

	log.Info("pipeline started")

	imageData, mimeType, err := s.blobs.Get(ctx, menuKey)
	if err != nil {
		s.failScan(ctx, scanID, "Menu image could not be read from storage")
		return NewScanServiceError("start_processing", "failed to fetch menu image", err)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	extraction, err := s.extractor.ExtractMenu(ctx, imageData, mimeType)
	if err != nil {
		s.failScan(ctx, scanID, "Menu extraction failed: "+err.Error())
		return NewScanServiceError("start_processing", "menu extraction failed", err)
	}

	err = store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)
		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return err
		}
		if err := scan.TransitionTo(domain.ScanStatusExtracting); err != nil {
			return err
		}
		scan.RestaurantName = extraction.RestaurantName
		return txScans.Update(ctx, scan)
	})
	if err != nil {
		s.failScan(ctx, scanID, "Failed to record extraction result")
		return NewScanServiceError("start_processing", "failed to enter extracting", err)
	}

	seeds := flattenExtraction(extraction)
	if len(seeds) == 0 {
		s.failScan(ctx, scanID, "No menu items detected in the photo")
		return NewScanServiceError("start_processing", "extraction yielded no dishes", provider.ErrInvalidResponse)
	}

	autoQueue := s.cfg.AutoImageLimit
	if autoQueue > s.cfg.MaxImagesPerScan {
		autoQueue = s.cfg.MaxImagesPerScan
	}
	if autoQueue > len(seeds) {
		autoQueue = len(seeds)
	}

	dishes := make([]*domain.Dish, 0, len(seeds))
	queuedIDs := make([]uuid.UUID, 0, autoQueue)
	for i, seed := range seeds {
		status := domain.DishImagePending
		if i < autoQueue {
			status = domain.DishImageQueued
		}
		dish, err := domain.NewDish(scanID, seed.name, i, status)
		if err != nil {
			s.failScan(ctx, scanID, "Extraction produced an invalid menu item")
			return NewScanServiceError("start_processing", "invalid extracted dish", err)
		}
		dish.Description = seed.description
		dish.Price = seed.price
		dish.SectionName = seed.section
		dishes = append(dishes, dish)
		if status == domain.DishImageQueued {
			queuedIDs = append(queuedIDs, dish.ID)
		}
	}

	if err := s.dishes.CreateBatch(ctx, dishes); err != nil {
		s.failScan(ctx, scanID, "Failed to save extracted menu items")
		return NewScanServiceError("start_processing", "failed to create dishes", err)
	}

	unitCost := s.imageUnitCost(providerName)
	err = store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)
		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return err
		}

		scan.TotalDishes = len(dishes)
		scan.DishesExtracted = len(dishes)
		scan.ImagesRequested = len(queuedIDs)
		scan.ActualCostUSD += s.cfg.VisionCostUSD
		scan.EstimatedCostUSD += float64(len(queuedIDs)) * unitCost

		if len(queuedIDs) == 0 {
			if err := scan.TransitionTo(domain.ScanStatusCompleted); err != nil {
				return err
			}
			scan.StatusMessage = fmt.Sprintf("Extracted %d dishes; no images requested", len(dishes))
		} else {
			if err := scan.TransitionTo(domain.ScanStatusGenerating); err != nil {
				return err
			}
		}
		return txScans.Update(ctx, scan)
	})
	if err != nil {
		s.failScan(ctx, scanID, "Failed to record extraction totals")
		return NewScanServiceError("start_processing", "failed to finalize extraction", err)
	}

	s.emitDishEvents(ctx, scanID, queuedIDs, providerName)
	log.Info("extraction finished",
		"dishes", len(dishes),
		"auto_queued", len(queuedIDs))
	return nil
}

// GenerateRemainingImages queues eligible dishes up to the image ceiling.
func (s *scanServiceImpl) GenerateRemainingImages(
	ctx context.Context,
	deviceID string,
	scanID uuid.UUID,
	providerName string,
) (int, error) {
	providerName = s.resolveProvider(providerName)

	var queuedIDs []uuid.UUID
	err := store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("generate_remaining", "failed to load scan", err)
		}
		if err := requireOwned(scan, deviceID); err != nil {
			return err
		}
		if scan.Status != domain.ScanStatusGenerating && scan.Status != domain.ScanStatusCompleted {
			return fmt.Errorf("%w: scan is %s", ErrScanNotReady, scan.Status)
		}

		headroom := s.cfg.MaxImagesPerScan - scan.ImagesRequested
		if headroom <= 0 {
			return nil
		}

		ids, err := s.dishes.WithTx(tx).QueueEligible(ctx, scanID, headroom)
		if err != nil {
			return NewScanServiceError("generate_remaining", "failed to queue dishes", err)
		}
		if len(ids) == 0 {
			return nil
		}

		scan.ImagesRequested += len(ids)
		scan.EstimatedCostUSD += float64(len(ids)) * s.imageUnitCost(providerName)
		if scan.Status == domain.ScanStatusCompleted {
			if err := scan.TransitionTo(domain.ScanStatusGenerating); err != nil {
				return NewScanServiceError("generate_remaining", "failed to reopen scan", err)
			}
			scan.StatusMessage = ""
		}

		if err := txScans.Update(ctx, scan); err != nil {
			return NewScanServiceError("generate_remaining", "failed to save scan", err)
		}
		queuedIDs = ids
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.emitDishEvents(ctx, scanID, queuedIDs, providerName)
	s.logger.Info("queued remaining images",
		"scan_id", scanID,
		"queued", len(queuedIDs))
	return len(queuedIDs), nil
}

// GenerateSingleDishImage queues one dish on demand. Counter accounting
// depends on the dish's prior status: a never-requested dish consumes a
// quota slot, a failed dish reuses its slot and hands back its resolved
// attempt, and a skipped dish reclaims the slot released when it was
// skipped.
func (s *scanServiceImpl) GenerateSingleDishImage(
	ctx context.Context,
	deviceID string,
	dishID uuid.UUID,
	providerName string,
) (bool, error) {
	providerName = s.resolveProvider(providerName)

	// Unlocked read just to learn the owning scan.
	probe, err := s.dishes.GetByID(ctx, dishID)
	if err != nil {
		return false, NewScanServiceError("generate_single", "failed to load dish", err)
	}
	scanID := probe.ScanID

	queued := false
	err = store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)
		txDishes := s.dishes.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError("generate_single", "failed to load scan", err)
		}
		if scan.DeviceID != deviceID {
			return ErrDishNotFound
		}
		if scan.Status != domain.ScanStatusGenerating && scan.Status != domain.ScanStatusCompleted {
			return fmt.Errorf("%w: scan is %s", ErrScanNotReady, scan.Status)
		}

		// Re-read under the scan lock: the probe may be stale by now.
		dish, err := txDishes.GetByID(ctx, dishID)
		if err != nil {
			return NewScanServiceError("generate_single", "failed to load dish", err)
		}
		if !dish.Retriggerable() {
			return nil
		}

		switch dish.ImageStatus {
		case domain.DishImagePending, domain.DishImageSkipped:
			if scan.ImagesRequested+1 > s.cfg.MaxImagesPerScan {
				return nil
			}
			scan.ImagesRequested++
			scan.EstimatedCostUSD += s.imageUnitCost(providerName)
		case domain.DishImageFailed:
			// The slot stays consumed; the resolved attempt is handed
			// back so completion waits for the retry.
			if scan.ImagesGenerated > 0 {
				scan.ImagesGenerated--
			}
		}

		if dish.ImageStatus != domain.DishImageQueued {
			if err := dish.TransitionTo(domain.DishImageQueued); err != nil {
				return NewScanServiceError("generate_single", "failed to queue dish", err)
			}
			if err := txDishes.Update(ctx, dish); err != nil {
				return NewScanServiceError("generate_single", "failed to save dish", err)
			}
		}

		if scan.Status == domain.ScanStatusCompleted {
			if err := scan.TransitionTo(domain.ScanStatusGenerating); err != nil {
				return NewScanServiceError("generate_single", "failed to reopen scan", err)
			}
			scan.StatusMessage = ""
		}
		if err := txScans.Update(ctx, scan); err != nil {
			return NewScanServiceError("generate_single", "failed to save scan", err)
		}
		queued = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if queued {
		s.emitDishEvents(ctx, scanID, []uuid.UUID{dishID}, providerName)
	}
	return queued, nil
}

// StopGeneration skips queued dishes and completes the scan. In-flight
// generations finish naturally; their late outcomes are dropped by
// RecordImageOutcome once the scan is terminal.
func (s *scanServiceImpl) StopGeneration(ctx context.Context, deviceID string, scanID uuid.UUID) error {
	return s.finishGeneration(ctx, deviceID, scanID, false)
}

// ForceComplete additionally reaps dishes stuck in generating.
func (s *scanServiceImpl) ForceComplete(ctx context.Context, deviceID string, scanID uuid.UUID) error {
	return s.finishGeneration(ctx, deviceID, scanID, true)
}

func (s *scanServiceImpl) finishGeneration(
	ctx context.Context,
	deviceID string,
	scanID uuid.UUID,
	reapGenerating bool,
) error {
	operation := "stop_generation"
	reap := []domain.DishImageStatus{domain.DishImageQueued}
	if reapGenerating {
		operation = "force_complete"
		reap = append(reap, domain.DishImageGenerating)
	}

	return store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)
		txDishes := s.dishes.WithTx(tx)

		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return NewScanServiceError(operation, "failed to load scan", err)
		}
		if err := requireOwned(scan, deviceID); err != nil {
			return err
		}
		if scan.IsTerminal() {
			// Idempotent: stopping an already-finished scan changes nothing.
			return nil
		}
		if scan.Status != domain.ScanStatusGenerating {
			return fmt.Errorf("%w: scan is %s", ErrScanNotReady, scan.Status)
		}

		skipped, err := txDishes.SkipByStatus(ctx, scanID, reap)
		if err != nil {
			return NewScanServiceError(operation, "failed to skip dishes", err)
		}
		// Skipped dishes release their quota slots so the generated and
		// requested counters reconcile.
		scan.ImagesRequested -= skipped
		if scan.ImagesRequested < scan.ImagesGenerated {
			scan.ImagesRequested = scan.ImagesGenerated
		}

		completed, err := txDishes.CountByStatus(ctx, scanID, domain.DishImageCompleted)
		if err != nil {
			return NewScanServiceError(operation, "failed to count completed dishes", err)
		}

		if err := scan.TransitionTo(domain.ScanStatusCompleted); err != nil {
			return NewScanServiceError(operation, "failed to complete scan", err)
		}
		if reapGenerating {
			scan.StatusMessage = fmt.Sprintf("Force completed: %d images generated, %d skipped", completed, skipped)
		} else {
			scan.StatusMessage = fmt.Sprintf("Generation stopped: %d images generated, %d skipped", completed, skipped)
		}

		if err := txScans.Update(ctx, scan); err != nil {
			return NewScanServiceError(operation, "failed to save scan", err)
		}

		s.logger.Info("generation finished early",
			"scan_id", scanID,
			"operation", operation,
			"skipped", skipped,
			"completed", completed)
		return nil
	})
}

// RecoverInterrupted resolves work orphaned by a process restart. It runs
// once at startup, before the HTTP server accepts traffic.
func (s *scanServiceImpl) RecoverInterrupted(ctx context.Context) error {
	// Scans caught mid-pipeline have no goroutine driving them anymore.
	interrupted, err := s.scans.ListByStatus(ctx, domain.ScanStatusProcessing, domain.ScanStatusExtracting)
	if err != nil {
		return NewScanServiceError("recover", "failed to list interrupted scans", err)
	}
	for _, scan := range interrupted {
		s.failScan(ctx, scan.ID, "Processing interrupted by server restart")
	}

	// Dishes stuck in generating lost their worker; resolve them as failed
	// so scan completion is never blocked on a ghost attempt.
	stuck, err := s.dishes.ListByImageStatus(ctx, domain.DishImageGenerating)
	if err != nil {
		return NewScanServiceError("recover", "failed to list stuck dishes", err)
	}
	for _, dish := range stuck {
		dish.ImageError = "generation interrupted by server restart"
		if err := dish.TransitionTo(domain.DishImageFailed); err != nil {
			continue
		}
		if err := s.dishes.Update(ctx, dish); err != nil {
			s.logger.Error("failed to fail stuck dish", "dish_id", dish.ID, "error", err)
			continue
		}
		if err := s.RecordImageOutcome(ctx, dish.ScanID, 0); err != nil {
			s.logger.Error("failed to settle stuck dish", "dish_id", dish.ID, "error", err)
		}
	}

	// Queued dishes lost their in-memory queue entries; re-submit the ones
	// whose scan is still generating.
	queuedDishes, err := s.dishes.ListByImageStatus(ctx, domain.DishImageQueued)
	if err != nil {
		return NewScanServiceError("recover", "failed to list queued dishes", err)
	}
	generating := make(map[uuid.UUID]bool)
	resubmitted := 0
	for _, dish := range queuedDishes {
		active, seen := generating[dish.ScanID]
		if !seen {
			scan, err := s.scans.GetByID(ctx, dish.ScanID)
			if err != nil {
				s.logger.Error("failed to load scan for queued dish", "dish_id", dish.ID, "error", err)
				continue
			}
			active = scan.Status == domain.ScanStatusGenerating
			generating[dish.ScanID] = active
		}
		if !active {
			continue
		}
		s.emitDishEvents(ctx, dish.ScanID, []uuid.UUID{dish.ID}, "")
		resubmitted++
	}

	s.logger.Info("startup recovery finished",
		"failed_scans", len(interrupted),
		"stuck_dishes", len(stuck),
		"resubmitted_dishes", resubmitted)
	return nil
}

// failScan marks the scan failed with a user-facing message. Scans
// already terminal are left alone.
func (s *scanServiceImpl) failScan(ctx context.Context, scanID uuid.UUID, message string) {
	err := store.RunInTransaction(ctx, s.scans.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txScans := s.scans.WithTx(tx)
		scan, err := txScans.GetByIDForUpdate(ctx, scanID)
		if err != nil {
			return err
		}
		if scan.IsTerminal() {
			return nil
		}
		if err := scan.TransitionTo(domain.ScanStatusFailed); err != nil {
			return err
		}
		scan.StatusMessage = message
		return txScans.Update(ctx, scan)
	})
	if err != nil {
		s.logger.Error("failed to mark scan failed",
			"scan_id", scanID,
			"message", message,
			"error", err)
	}
}

// emitDishEvents submits one generation event per queued dish. Emission
// failures leave the dish queued; startup recovery re-submits it.
func (s *scanServiceImpl) emitDishEvents(ctx context.Context, scanID uuid.UUID, dishIDs []uuid.UUID, providerName string) {
	for _, dishID := range dishIDs {
		event, err := events.NewDishImageEvent(events.DishImageRequested{
			ScanID:   scanID,
			DishID:   dishID,
			Provider: providerName,
		})
		if err != nil {
			s.logger.Error("failed to build dish image event",
				"scan_id", scanID,
				"dish_id", dishID,
				"error", err)
			continue
		}
		if err := s.emitter.EmitEvent(ctx, event); err != nil {
			s.logger.Error("failed to emit dish image event",
				"scan_id", scanID,
				"dish_id", dishID,
				"error", err)
		}
	}
}

// resolveProvider maps an optional request override onto a known provider
// variant, falling back to the configured default.
func (s *scanServiceImpl) resolveProvider(requested string) string {
	switch requested {
	case "gemini", "imagen":
		return requested
	case "":
		return s.cfg.DefaultImageProvider
	default:
		s.logger.Warn("unknown image provider requested, using default",
			"requested", requested,
			"default", s.cfg.DefaultImageProvider)
		return s.cfg.DefaultImageProvider
	}
}

// imageUnitCost returns the fixed per-image cost of the provider variant.
func (s *scanServiceImpl) imageUnitCost(providerName string) float64 {
	if providerName == "imagen" {
		return s.cfg.ImagenImageCostUSD
	}
	return s.cfg.GeminiImageCostUSD
}

// dishSeed is one flattened menu entry awaiting dish creation.
type dishSeed struct {
	name        string
	description string
	price       string
	section     string
}

// flattenExtraction orders sectioned items first, section by section, then
// appends unsectioned fallback items. Display order is the index in the
// returned slice. Items without a name are dropped rather than failing
// the whole extraction.
func flattenExtraction(extraction *provider.MenuExtraction) []dishSeed {
	seeds := make([]dishSeed, 0)
	for _, section := range extraction.Sections {
		for _, item := range section.Items {
			if item.Name == "" {
				continue
			}
			seeds = append(seeds, dishSeed{
				name:        item.Name,
				description: item.Description,
				price:       item.Price,
				section:     section.Name,
			})
		}
	}
	for _, item := range extraction.ItemsFallback {
		if item.Name == "" {
			continue
		}
		seeds = append(seeds, dishSeed{
			name:        item.Name,
			description: item.Description,
			price:       item.Price,
		})
	}
	return seeds
}

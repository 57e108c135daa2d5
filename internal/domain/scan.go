package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ScanStatus represents the processing state of a menu scan.
type ScanStatus string

// Possible scan status values.
const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusUploading  ScanStatus = "uploading"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusExtracting ScanStatus = "extracting"
	ScanStatusGenerating ScanStatus = "generating"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// scanTransitions is the closed transition table for scan statuses.
// "failed" is reachable from every non-terminal state; "completed" and
// "failed" are terminal for the pipeline. The single completed → generating
// edge is the quota accountant's re-entry: queueing more images on a
// finished scan reopens generation. Workers never take it; a worker that
// finds a terminal scan drops its write.
var scanTransitions = map[ScanStatus][]ScanStatus{
	ScanStatusPending:    {ScanStatusUploading, ScanStatusFailed},
	ScanStatusUploading:  {ScanStatusProcessing, ScanStatusFailed},
	ScanStatusProcessing: {ScanStatusExtracting, ScanStatusFailed},
	ScanStatusExtracting: {ScanStatusGenerating, ScanStatusCompleted, ScanStatusFailed},
	ScanStatusGenerating: {ScanStatusCompleted, ScanStatusFailed},
	ScanStatusCompleted:  {ScanStatusGenerating},
	ScanStatusFailed:     {},
}

// Common validation errors for Scan.
var (
	ErrEmptyScanID       = errors.New("scan ID cannot be empty")
	ErrEmptyScanDeviceID = errors.New("scan device ID cannot be empty")
)

// Scan represents one end-to-end processing unit for a single uploaded
// menu photo. It owns its dishes and tracks pipeline progress, image
// counters, and cost totals.
type Scan struct {
	ID               uuid.UUID  `json:"id"`
	DeviceID         string     `json:"device_id"`
	MenuImageKey     string     `json:"menu_image_key,omitempty"`
	RestaurantName   string     `json:"restaurant_name,omitempty"`
	Status           ScanStatus `json:"status"`
	StatusMessage    string     `json:"status_message,omitempty"`
	TotalDishes      int        `json:"total_dishes"`
	DishesExtracted  int        `json:"dishes_extracted"`
	ImagesGenerated  int        `json:"images_generated"`
	ImagesRequested  int        `json:"images_requested"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	ActualCostUSD    float64    `json:"actual_cost_usd"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewScan creates a new Scan owned by the given device with pending status.
func NewScan(deviceID string) (*Scan, error) {
	scan := &Scan{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Status:    ScanStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := scan.Validate(); err != nil {
		return nil, err
	}

	return scan, nil
}

// Validate checks if the Scan has valid data.
func (s *Scan) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptyScanID
	}

	if s.DeviceID == "" {
		return ErrEmptyScanDeviceID
	}

	if !isValidScanStatus(s.Status) {
		return ErrInvalidScanStatus
	}

	if s.TotalDishes < 0 || s.DishesExtracted < 0 ||
		s.ImagesGenerated < 0 || s.ImagesRequested < 0 {
		return ErrNegativeCounter
	}

	if s.EstimatedCostUSD < 0 || s.ActualCostUSD < 0 {
		return ErrNegativeCounter
	}

	return nil
}

// IsTerminal reports whether the scan has reached a terminal status.
func (s *Scan) IsTerminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

// CanTransitionTo reports whether moving to the target status follows the
// transition graph.
func (s *Scan) CanTransitionTo(target ScanStatus) bool {
	for _, allowed := range scanTransitions[s.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the scan to the target status, rejecting transitions
// that do not follow the graph. Terminal statuses stamp CompletedAt.
func (s *Scan) TransitionTo(target ScanStatus) error {
	if !isValidScanStatus(target) {
		return ErrInvalidScanStatus
	}

	if !s.CanTransitionTo(target) {
		return ErrIllegalTransition
	}

	s.Status = target
	if s.IsTerminal() {
		now := time.Now().UTC()
		s.CompletedAt = &now
	} else {
		s.CompletedAt = nil
	}
	return nil
}

// Progress checkpoints for the fixed (non-generating) statuses.
const (
	progressPending    = 0
	progressUploading  = 10
	progressProcessing = 25
	progressExtracting = 50
	progressGenerating = 60
	progressCompleted  = 100
)

// Progress derives the scan's progress percentage from its status. In the
// generating state the image completion ratio is scaled into the trailing
// 40% of the bar. The function is pure so it can be recomputed on every read.
func (s *Scan) Progress() int {
	switch s.Status {
	case ScanStatusPending:
		return progressPending
	case ScanStatusUploading:
		return progressUploading
	case ScanStatusProcessing:
		return progressProcessing
	case ScanStatusExtracting:
		return progressExtracting
	case ScanStatusGenerating:
		if s.ImagesRequested <= 0 {
			return progressGenerating
		}
		ratio := float64(s.ImagesGenerated) / float64(s.ImagesRequested)
		if ratio > 1 {
			ratio = 1
		}
		return progressGenerating + int(ratio*40)
	case ScanStatusCompleted:
		return progressCompleted
	default:
		return 0
	}
}

// isValidScanStatus checks if the given status is a valid ScanStatus.
func isValidScanStatus(status ScanStatus) bool {
	_, ok := scanTransitions[status]
	return ok
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/menulens/menulens-api/internal/api/shared"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/service"
)

// GenerateImagesRequest optionally overrides the configured image provider.
type GenerateImagesRequest struct {
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=gemini imagen"`
}

// CreateScanResponse pairs the new scan with the object key the client must
// upload the menu photo to.
type CreateScanResponse struct {
	Scan      ScanResponse `json:"scan"`
	UploadKey string       `json:"upload_key"`
}

// ScanResponse represents the response data for a scan.
type ScanResponse struct {
	ID               string     `json:"id"`
	RestaurantName   string     `json:"restaurant_name,omitempty"`
	Status           string     `json:"status"`
	StatusMessage    string     `json:"status_message,omitempty"`
	Progress         int        `json:"progress"`
	TotalDishes      int        `json:"total_dishes"`
	DishesExtracted  int        `json:"dishes_extracted"`
	ImagesGenerated  int        `json:"images_generated"`
	ImagesRequested  int        `json:"images_requested"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	ActualCostUSD    float64    `json:"actual_cost_usd"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// DishResponse represents the response data for a dish.
type DishResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Price         string     `json:"price,omitempty"`
	SectionName   string     `json:"section_name,omitempty"`
	DisplayOrder  int        `json:"display_order"`
	ImageStatus   string     `json:"image_status"`
	ImageKey      string     `json:"image_key,omitempty"`
	ImageProvider string     `json:"image_provider,omitempty"`
	ImageError    string     `json:"image_error,omitempty"`
	GeneratedAt   *time.Time `json:"generated_at,omitempty"`
}

// ScanDetailResponse is a scan together with its dishes in display order.
type ScanDetailResponse struct {
	Scan   ScanResponse   `json:"scan"`
	Dishes []DishResponse `json:"dishes"`
}

// QueuedResponse reports how many image generations an operation queued.
type QueuedResponse struct {
	Queued  int    `json:"queued"`
	Message string `json:"message"`
}

// ScanHandler handles scan-related HTTP requests.
type ScanHandler struct {
	scanService service.ScanService
	logger      *slog.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(scanService service.ScanService, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanHandler{
		scanService: scanService,
		logger:      logger.With("component", "scan_handler"),
	}
}

// CreateScan handles POST /api/scans requests.
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())

	scan, uploadKey, err := h.scanService.CreateScan(r.Context(), deviceID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateScanResponse{
		Scan:      scanToDTOResponse(scan),
		UploadKey: uploadKey,
	})
}

// ConfirmUpload handles POST /api/scans/{id}/upload-complete requests.
func (h *ScanHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	scan, err := h.scanService.ConfirmUpload(r.Context(), deviceID, scanID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, scanToDTOResponse(scan))
}

// StartProcessing handles POST /api/scans/{id}/process requests. The
// pipeline runs in the background; the response is 202 and the client polls
// the scan for progress.
func (h *ScanHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeProviderRequest(w, r)
	if !ok {
		return
	}

	// Validate ownership and readiness synchronously so the client gets a
	// real error instead of a dangling 202 when the scan cannot start.
	scan, _, err := h.scanService.GetScan(r.Context(), deviceID, scanID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if scan.Status != domain.ScanStatusUploading {
		shared.RespondWithError(w, r, http.StatusConflict, "Scan is not ready for processing")
		return
	}

	// The pipeline outlives the request; detach from the request context so
	// a client disconnect does not abort extraction midway.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.scanService.StartProcessing(ctx, deviceID, scanID, req.Provider); err != nil {
			h.logger.Error("scan processing failed",
				"scan_id", scanID,
				"error", err)
		}
	}()

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"message": "Processing started",
	})
}

// GenerateRemainingImages handles POST /api/scans/{id}/generate-remaining.
func (h *ScanHandler) GenerateRemainingImages(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeProviderRequest(w, r)
	if !ok {
		return
	}

	queued, err := h.scanService.GenerateRemainingImages(r.Context(), deviceID, scanID, req.Provider)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	message := "Image generation queued"
	if queued == 0 {
		message = "No eligible dishes to queue"
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, QueuedResponse{
		Queued:  queued,
		Message: message,
	})
}

// GenerateSingleDishImage handles POST /api/dishes/{id}/generate.
func (h *ScanHandler) GenerateSingleDishImage(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	dishID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeProviderRequest(w, r)
	if !ok {
		return
	}

	queued, err := h.scanService.GenerateSingleDishImage(r.Context(), deviceID, dishID, req.Provider)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if !queued {
		shared.RespondWithJSON(w, r, http.StatusOK, QueuedResponse{
			Queued:  0,
			Message: "Dish was not queued",
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, QueuedResponse{
		Queued:  1,
		Message: "Image generation queued",
	})
}

// StopGeneration handles POST /api/scans/{id}/stop.
func (h *ScanHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	h.finishGeneration(w, r, false)
}

// ForceComplete handles POST /api/scans/{id}/force-complete.
func (h *ScanHandler) ForceComplete(w http.ResponseWriter, r *http.Request) {
	h.finishGeneration(w, r, true)
}

func (h *ScanHandler) finishGeneration(w http.ResponseWriter, r *http.Request, force bool) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var err error
	if force {
		err = h.scanService.ForceComplete(r.Context(), deviceID, scanID)
	} else {
		err = h.scanService.StopGeneration(r.Context(), deviceID, scanID)
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	scan, _, err := h.scanService.GetScan(r.Context(), deviceID, scanID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, scanToDTOResponse(scan))
}

// GetScan handles GET /api/scans/{id} requests.
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	scan, dishes, err := h.scanService.GetScan(r.Context(), deviceID, scanID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := ScanDetailResponse{
		Scan:   scanToDTOResponse(scan),
		Dishes: make([]DishResponse, 0, len(dishes)),
	}
	for _, dish := range dishes {
		response.Dishes = append(response.Dishes, dishToDTOResponse(dish))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// ListScans handles GET /api/scans requests.
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())

	scans, err := h.scanService.ListScans(r.Context(), deviceID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := make([]ScanResponse, 0, len(scans))
	for _, scan := range scans {
		response = append(response, scanToDTOResponse(scan))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// DeleteScan handles DELETE /api/scans/{id} requests.
func (h *ScanHandler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	deviceID := shared.GetDeviceID(r.Context())
	scanID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.scanService.DeleteScan(r.Context(), deviceID, scanID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam parses the {id} URL parameter, responding 400 on garbage.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// decodeProviderRequest reads the optional provider-override body. An empty
// body is valid and selects the configured default provider.
func decodeProviderRequest(w http.ResponseWriter, r *http.Request) (GenerateImagesRequest, bool) {
	var req GenerateImagesRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return req, false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: provider must be gemini or imagen")
		return req, false
	}
	return req, true
}

// scanToDTOResponse converts a domain.Scan to a ScanResponse.
func scanToDTOResponse(scan *domain.Scan) ScanResponse {
	return ScanResponse{
		ID:               scan.ID.String(),
		RestaurantName:   scan.RestaurantName,
		Status:           string(scan.Status),
		StatusMessage:    scan.StatusMessage,
		Progress:         scan.Progress(),
		TotalDishes:      scan.TotalDishes,
		DishesExtracted:  scan.DishesExtracted,
		ImagesGenerated:  scan.ImagesGenerated,
		ImagesRequested:  scan.ImagesRequested,
		EstimatedCostUSD: scan.EstimatedCostUSD,
		ActualCostUSD:    scan.ActualCostUSD,
		CreatedAt:        scan.CreatedAt,
		CompletedAt:      scan.CompletedAt,
	}
}

// dishToDTOResponse converts a domain.Dish to a DishResponse.
func dishToDTOResponse(dish *domain.Dish) DishResponse {
	return DishResponse{
		ID:            dish.ID.String(),
		Name:          dish.Name,
		Description:   dish.Description,
		Price:         dish.Price,
		SectionName:   dish.SectionName,
		DisplayOrder:  dish.DisplayOrder,
		ImageStatus:   string(dish.ImageStatus),
		ImageKey:      dish.ImageKey,
		ImageProvider: dish.ImageProvider,
		ImageError:    dish.ImageError,
		GeneratedAt:   dish.GeneratedAt,
	}
}

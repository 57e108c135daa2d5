package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/menulens/menulens-api/internal/api/shared"
	"github.com/menulens/menulens-api/internal/store"
)

// DeviceIDHeader carries the caller's opaque device identifier. There are
// no accounts; the device ID is the whole identity.
const DeviceIDHeader = "X-Device-ID"

// maxDeviceIDLength bounds the header so arbitrary payloads cannot be
// smuggled into the device_users table.
const maxDeviceIDLength = 128

// DeviceMiddleware requires the device ID header on every request, upserts
// the device user record, and stores the ID in the request context for
// handlers to read via shared.GetDeviceID.
type DeviceMiddleware struct {
	devices store.DeviceUserStore
	logger  *slog.Logger
}

// NewDeviceMiddleware creates the middleware over the device user store.
func NewDeviceMiddleware(devices store.DeviceUserStore, logger *slog.Logger) *DeviceMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceMiddleware{
		devices: devices,
		logger:  logger.With("component", "device_middleware"),
	}
}

// Require wraps the next handler, rejecting requests without a usable
// device ID.
func (m *DeviceMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
		if deviceID == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Device ID header is required")
			return
		}
		if len(deviceID) > maxDeviceIDLength {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Device ID is too long")
			return
		}

		if _, err := m.devices.Upsert(r.Context(), deviceID); err != nil {
			m.logger.Error("failed to upsert device user",
				"device_id", deviceID,
				"error", err)
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to register device", err)
			return
		}

		ctx := shared.SetDeviceID(r.Context(), deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

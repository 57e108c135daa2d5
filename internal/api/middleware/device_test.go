package middleware

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menulens/menulens-api/internal/api/shared"
	"github.com/menulens/menulens-api/internal/domain"
	"github.com/menulens/menulens-api/internal/store"
)

// stubDeviceStore records upserted device IDs.
type stubDeviceStore struct {
	upserted  []string
	upsertErr error
}

func (s *stubDeviceStore) Upsert(_ context.Context, deviceID string) (*domain.DeviceUser, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserted = append(s.upserted, deviceID)
	return &domain.DeviceUser{ID: deviceID}, nil
}

func (s *stubDeviceStore) GetByID(_ context.Context, deviceID string) (*domain.DeviceUser, error) {
	return &domain.DeviceUser{ID: deviceID}, nil
}

func (s *stubDeviceStore) AdjustScanCount(_ context.Context, _ string, _ int) error { return nil }
func (s *stubDeviceStore) WithTx(_ *sql.Tx) store.DeviceUserStore                   { return s }

var _ store.DeviceUserStore = (*stubDeviceStore)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeviceMiddleware(t *testing.T) {
	t.Run("passes the device ID through the context", func(t *testing.T) {
		devices := &stubDeviceStore{}
		mw := NewDeviceMiddleware(devices, discardLogger())

		var seen string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = shared.GetDeviceID(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		req.Header.Set(DeviceIDHeader, "device-42")
		w := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "device-42", seen)
		assert.Equal(t, []string{"device-42"}, devices.upserted)
	})

	t.Run("rejects requests without the header", func(t *testing.T) {
		mw := NewDeviceMiddleware(&stubDeviceStore{}, discardLogger())
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		w := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Device ID header is required")
	})

	t.Run("rejects oversized device IDs", func(t *testing.T) {
		mw := NewDeviceMiddleware(&stubDeviceStore{}, discardLogger())
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		req.Header.Set(DeviceIDHeader, strings.Repeat("x", maxDeviceIDLength+1))
		w := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fails closed on store errors", func(t *testing.T) {
		devices := &stubDeviceStore{upsertErr: errors.New("db down")}
		mw := NewDeviceMiddleware(devices, discardLogger())
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		req.Header.Set(DeviceIDHeader, "device-42")
		w := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

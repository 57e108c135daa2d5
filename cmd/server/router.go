package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/menulens/menulens-api/internal/api"
	apimiddleware "github.com/menulens/menulens-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware. Every /api route requires the device ID header.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", apimiddleware.DeviceIDHeader},
		MaxAge:         300,
	}))

	scanHandler := api.NewScanHandler(app.scanService, app.logger)
	deviceMiddleware := apimiddleware.NewDeviceMiddleware(app.deviceStore, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(deviceMiddleware.Require)

		r.Post("/scans", scanHandler.CreateScan)
		r.Get("/scans", scanHandler.ListScans)
		r.Get("/scans/{id}", scanHandler.GetScan)
		r.Delete("/scans/{id}", scanHandler.DeleteScan)

		r.Post("/scans/{id}/upload-complete", scanHandler.ConfirmUpload)
		r.Post("/scans/{id}/process", scanHandler.StartProcessing)
		r.Post("/scans/{id}/generate-remaining", scanHandler.GenerateRemainingImages)
		r.Post("/scans/{id}/stop", scanHandler.StopGeneration)
		r.Post("/scans/{id}/force-complete", scanHandler.ForceComplete)

		r.Post("/dishes/{id}/generate", scanHandler.GenerateSingleDishImage)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

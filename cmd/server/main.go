// Package main implements the entry point for the MenuLens API server,
// which turns photographed restaurant menus into structured dishes with
// generated food imagery.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/platform/logger"
)

func main() {
	fmt.Println("MenuLens API Server Starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"default_image_provider", cfg.Pipeline.DefaultImageProvider,
		"max_images_per_scan", cfg.Pipeline.MaxImagesPerScan)

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.run(); err != nil {
		appLogger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

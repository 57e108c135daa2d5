package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads process-wide environment, so these tests set env via t.Setenv
// and must not run in parallel.

func TestLoad(t *testing.T) {
	t.Run("defaults plus required env", func(t *testing.T) {
		t.Setenv("MENULENS_DATABASE_URL", "postgres://localhost:5432/menulens")
		t.Setenv("MENULENS_GEMINI_API_KEY", "test-key")
		t.Setenv("MENULENS_STORAGE_BUCKET", "menulens-media")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, "postgres://localhost:5432/menulens", cfg.Database.URL)
		assert.Equal(t, "gemini", cfg.Pipeline.DefaultImageProvider)
		assert.Equal(t, 50, cfg.Pipeline.MaxImagesPerScan)
		assert.Equal(t, 5, cfg.Pipeline.AutoImageLimit)
		assert.Contains(t, cfg.Pipeline.PromptTemplate, "{name}")
		assert.Contains(t, cfg.Pipeline.PromptTemplate, "{description}")
	})

	t.Run("env overrides defaults", func(t *testing.T) {
		t.Setenv("MENULENS_DATABASE_URL", "postgres://localhost:5432/menulens")
		t.Setenv("MENULENS_GEMINI_API_KEY", "test-key")
		t.Setenv("MENULENS_STORAGE_BUCKET", "menulens-media")
		t.Setenv("MENULENS_SERVER_PORT", "9090")
		t.Setenv("MENULENS_PIPELINE_AUTO_IMAGE_LIMIT", "0")
		t.Setenv("MENULENS_PIPELINE_DEFAULT_IMAGE_PROVIDER", "imagen")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 0, cfg.Pipeline.AutoImageLimit)
		assert.Equal(t, "imagen", cfg.Pipeline.DefaultImageProvider)
	})

	t.Run("missing database URL fails validation", func(t *testing.T) {
		t.Setenv("MENULENS_GEMINI_API_KEY", "test-key")
		t.Setenv("MENULENS_STORAGE_BUCKET", "menulens-media")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown image provider fails validation", func(t *testing.T) {
		t.Setenv("MENULENS_DATABASE_URL", "postgres://localhost:5432/menulens")
		t.Setenv("MENULENS_GEMINI_API_KEY", "test-key")
		t.Setenv("MENULENS_STORAGE_BUCKET", "menulens-media")
		t.Setenv("MENULENS_PIPELINE_DEFAULT_IMAGE_PROVIDER", "dalle")

		_, err := Load()
		assert.Error(t, err)
	})
}

package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("CLIPCOMPILER_PORT", "")
		t.Setenv("CLIPCOMPILER_MAX_CONCURRENCY", "")
		t.Setenv("CLIPCOMPILER_AUTH_ENABLE", "")
		t.Setenv("CLIPCOMPILER_RECORD_MAX_AGE", "")
		t.Setenv("CLIPCOMPILER_MAX_DOWNLOAD_SIZE", "")

		cfg, err := config.Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 2, cfg.MaxConcurrency)
		assert.Equal(t, 20, cfg.MaxClips)
		assert.False(t, cfg.AuthEnable)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, 7*24*time.Hour, cfg.RecordMaxAge)
		assert.Equal(t, 24*time.Hour, cfg.JobStaleAfter)
		assert.Equal(t, 24*time.Hour, cfg.CleanupInterval)
		assert.Equal(t, 500*time.Millisecond, cfg.TransitionDuration)
		assert.Equal(t, int64(500*1024*1024), cfg.MaxDownloadSize)
		assert.Equal(t, int64(0), cfg.ThrottleFreeDisk)
		assert.Equal(t, "SELECT access_token FROM users WHERE id = $1", cfg.TokenQuery)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("CLIPCOMPILER_PORT", "9999")
		t.Setenv("CLIPCOMPILER_MAX_CONCURRENCY", "4")
		t.Setenv("CLIPCOMPILER_AUTH_ENABLE", "true")
		t.Setenv("CLIPCOMPILER_AUTH_KEY", "newsecret")
		t.Setenv("CLIPCOMPILER_MAX_DOWNLOAD_SIZE", "50MB")
		t.Setenv("CLIPCOMPILER_RECORD_MAX_AGE", "72h")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 4, cfg.MaxConcurrency)
		assert.True(t, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxDownloadSize)
		assert.Equal(t, 72*time.Hour, cfg.RecordMaxAge)
	})
}

func TestConfigPaths(t *testing.T) {
	cfg := &config.Config{DataDir: "/srv/clips"}
	assert.Equal(t, filepath.Join("/srv/clips", "work"), cfg.WorkDir())
	assert.Equal(t, filepath.Join("/srv/clips", "output"), cfg.OutputDir())
	assert.Equal(t, filepath.Join("/srv/clips", "compilations.db"), cfg.DatabasePath())
}

package model_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajanik/maildeck/internal/model"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8001", cfg.Server.BaseURL)
	assert.Equal(t, 3, cfg.Server.SyncReloadDelaySec)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := &model.AppConfig{
		Server: model.ServerConfig{
			BaseURL:            "https://mail.example.com",
			WebSocketURL:       "wss://mail.example.com",
			SyncReloadDelaySec: 5,
		},
		Display: model.DisplayConfig{Theme: "default"},
		Log:     model.LogConfig{Level: "debug", File: "/tmp/maildeck.log"},
	}
	require.NoError(t, model.SaveConfig(path, want))

	got, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want.Server, got.Server)
	assert.Equal(t, want.Log, got.Log)
}

func TestLoadConfigRepairsBadReloadDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &model.AppConfig{
		Server: model.ServerConfig{
			BaseURL:            "http://localhost:8001",
			SyncReloadDelaySec: -1,
		},
	}
	require.NoError(t, model.SaveConfig(path, cfg))

	got, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Server.SyncReloadDelaySec)
}

package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, extra Config) *Config {
	t.Helper()
	extra.CacheDir = t.TempDir()
	if extra.LogLevel == "" {
		extra.LogLevel = "error"
	}
	cfg, err := NewConfig(extra)
	require.NoError(t, err)
	return cfg
}

func TestNewConfigRequiresInputOrServe(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)

	cfg, err := NewConfig(Config{ServeAddr: ":0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"final_blend"}, cfg.Products, "default product applied")
}

func TestNewAppWiresEngine(t *testing.T) {
	cfg := testConfig(t, Config{InputPath: "survey.laz"})
	a := NewApp(io.Discard, cfg)
	assert.NotNil(t, a.Engine())
	assert.DirExists(t, cfg.CacheDir)
}

func TestNewAppPanicsOnBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte("pipeline {\n"), 0o644))

	cfg := testConfig(t, Config{InputPath: "survey.laz", ConfigPath: path})
	assert.Panics(t, func() { NewApp(io.Discard, cfg) })
}

func TestBatchRejectsUnknownProduct(t *testing.T) {
	cfg := testConfig(t, Config{InputPath: "survey.laz", Products: []string{"x_ray"}})
	a := NewApp(io.Discard, cfg)

	err := a.Run(context.Background(), cfg)
	assert.ErrorContains(t, err, "x_ray")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t, Config{ServeAddr: "127.0.0.1:0"})
	a := NewApp(io.Discard, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

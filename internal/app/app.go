// Package app wires configuration, engines, cache, and transports into a
// runnable pipeline process. Construction panics on fatal configuration
// errors; the CLI entrypoint recovers and reports them.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/cache"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/config"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines/shell"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/events"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/pipeline"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/steps"
)

// App encapsulates the pipeline process: its logger, loaded configuration,
// and the engine everything runs through.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	model    *config.Model
	engine   *pipeline.Engine
	sinks    *events.Registry
	defaults product.Params
}

// NewApp constructs a fully initialized App. Configuration or engine setup
// failures are fatal startup errors and panic.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	if appConfig.CacheDir != "" {
		model.Pipeline.CacheDir = appConfig.CacheDir
	}
	if appConfig.Workers > 0 {
		model.Pipeline.Workers = appConfig.Workers
	}
	if appConfig.ProgressURL != "" {
		model.Progress.URL = appConfig.ProgressURL
	}
	logger.Debug("Configuration loaded.", "path", appConfig.ConfigPath)

	timeout, err := model.EngineTimeout()
	if err != nil {
		panic(err)
	}
	policy, err := model.RetryPolicy()
	if err != nil {
		panic(err)
	}

	eng, err := shell.New(shell.Config{
		ScratchDir:    model.Engine.ScratchDir,
		RasterizeArgv: model.Engine.Rasterize,
		AlgebraArgv: map[engines.Operation][]string{
			engines.OpHillshade: model.Engine.Hillshade,
			engines.OpSlope:     model.Engine.Slope,
			engines.OpAspect:    model.Engine.Aspect,
		},
		Timeout: timeout,
		Retry:   policy,
		CRS:     model.Pipeline.CRS,
	})
	if err != nil {
		panic(fmt.Errorf("failed to configure raster engine: %w", err))
	}

	store, err := cache.New(model.Pipeline.CacheDir)
	if err != nil {
		panic(fmt.Errorf("failed to open artifact cache: %w", err))
	}
	logger.Debug("Artifact cache ready.", "dir", model.Pipeline.CacheDir)

	grid := engines.GridParams{Resolution: model.Pipeline.Resolution, CRS: model.Pipeline.CRS}
	sinks := events.NewRegistry()
	engine := pipeline.New(steps.NewSet(eng, eng, grid), store, sinks, model.Pipeline.Workers)

	return &App{
		outW:     outW,
		logger:   logger,
		model:    model,
		engine:   engine,
		sinks:    sinks,
		defaults: model.ProductDefaults(),
	}
}

// Engine returns the pipeline engine. This is primarily for testing.
func (a *App) Engine() *pipeline.Engine {
	return a.engine
}

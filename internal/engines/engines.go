// Package engines declares the two collaborator interfaces the pipeline
// consumes: a point-cloud rasterizer and a per-pixel raster algebra engine.
// The pipeline never implements these transforms itself; executors call
// through the interfaces and in-process fakes stand in for tests.
package engines

import (
	"context"
	"fmt"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// GridParams controls how a point cloud is resampled onto the raster grid.
type GridParams struct {
	// Resolution is the output pixel size in map units.
	Resolution float64
	// CRS identifies the coordinate reference system of the output grid.
	CRS string
}

// Rasterizer converts a point cloud into a gridded elevation surface.
type Rasterizer interface {
	Rasterize(ctx context.Context, sourcePath string, params GridParams) (*raster.Grid, error)
}

// Operation names one per-pixel raster transform an Algebra engine performs.
type Operation string

const (
	OpHillshade Operation = "hillshade"
	OpSlope     Operation = "slope"
	OpAspect    Operation = "aspect"
)

// Algebra performs a generic per-pixel numeric operation over one or more
// input grids. Parameter names are operation-specific (e.g. "azimuth",
// "altitude" for hillshade).
type Algebra interface {
	Apply(ctx context.Context, op Operation, inputs []*raster.Grid, params map[string]float64) (*raster.Grid, error)
}

// SourceReadError reports an unreadable or corrupt input point cloud. It is
// fatal to the whole job: nothing downstream can proceed without the surface.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading source %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// EngineError reports a failed external-engine invocation: non-zero exit,
// malformed output, or timeout. Fatal to the step and its dependents only.
type EngineError struct {
	Op       Operation
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("engine %s failed (exit %d): %s", e.Op, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("engine %s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

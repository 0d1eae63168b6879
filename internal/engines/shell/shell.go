// Package shell adapts external command-line raster tools to the engine
// interfaces. Grids travel through a scratch directory as Esri ASCII files;
// the argv templates are configuration, so any toolchain that reads and
// writes AAIGrid can serve as the engine.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/retry"
)

// Config wires the adapter to a concrete toolchain. Argv templates may use
// the placeholders {input}, {output}, {resolution}, and any numeric
// parameter name the operation receives (e.g. {azimuth}, {altitude}).
type Config struct {
	ScratchDir    string
	RasterizeArgv []string
	AlgebraArgv   map[engines.Operation][]string
	Timeout       time.Duration
	Retry         retry.Policy

	// CRS labels grids read back from the toolchain when neither the request
	// nor the input grid carries one. ASCII grids have no CRS of their own.
	CRS string
}

// Engine implements engines.Rasterizer and engines.Algebra by shelling out.
type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if len(cfg.RasterizeArgv) == 0 {
		return nil, fmt.Errorf("shell: rasterize argv template required")
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Engine{cfg: cfg}, nil
}

// Rasterize converts the point cloud at sourcePath into an elevation grid.
func (e *Engine) Rasterize(ctx context.Context, sourcePath string, params engines.GridParams) (*raster.Grid, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, &engines.SourceReadError{Path: sourcePath, Err: err}
	}
	out := e.scratchFile("dtm")
	defer os.Remove(out)

	argv := expand(e.cfg.RasterizeArgv, map[string]string{
		"input":      sourcePath,
		"output":     out,
		"resolution": strconv.FormatFloat(params.Resolution, 'g', -1, 64),
	})
	if err := e.runCommand(ctx, "rasterize", argv); err != nil {
		return nil, err
	}

	grid, err := e.readGrid(out, e.crsOr(params.CRS))
	if err != nil {
		return nil, &engines.SourceReadError{Path: sourcePath, Err: err}
	}
	return grid, nil
}

// Apply runs one per-pixel operation over the input grids.
func (e *Engine) Apply(ctx context.Context, op engines.Operation, inputs []*raster.Grid, params map[string]float64) (*raster.Grid, error) {
	tmpl, ok := e.cfg.AlgebraArgv[op]
	if !ok {
		return nil, &engines.EngineError{Op: op, Err: fmt.Errorf("no argv template configured")}
	}
	if len(inputs) != 1 {
		return nil, &engines.EngineError{Op: op, Err: fmt.Errorf("shell engine takes one input grid, got %d", len(inputs))}
	}

	in := e.scratchFile(string(op) + "-in")
	out := e.scratchFile(string(op) + "-out")
	defer os.Remove(in)
	defer os.Remove(out)

	if err := e.writeGrid(in, inputs[0]); err != nil {
		return nil, &engines.EngineError{Op: op, Err: err}
	}

	vars := map[string]string{"input": in, "output": out}
	for name, v := range params {
		vars[name] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := e.runCommand(ctx, op, expand(tmpl, vars)); err != nil {
		return nil, err
	}

	grid, err := e.readGrid(out, e.crsOr(inputs[0].Geo.CRS))
	if err != nil {
		return nil, &engines.EngineError{Op: op, Err: err}
	}
	return grid, nil
}

// runCommand executes one argv under the configured timeout and retry
// policy, mapping non-zero exits to EngineError with captured stderr.
func (e *Engine) runCommand(ctx context.Context, op engines.Operation, argv []string) error {
	logger := ctxlog.FromContext(ctx).With("engine", "shell", "op", op)
	return e.cfg.Retry.Do(ctx, string(op), func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		logger.Debug("Invoking external tool.", "argv", argv)
		cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err == nil {
			return nil
		}
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return &engines.EngineError{
			Op:       op,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	})
}

func (e *Engine) scratchFile(prefix string) string {
	return filepath.Join(e.cfg.ScratchDir, fmt.Sprintf("%s-%s.asc", prefix, uuid.NewString()))
}

func (e *Engine) writeGrid(path string, g *raster.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return raster.WriteASC(f, g)
}

func (e *Engine) crsOr(crs string) string {
	if crs != "" {
		return crs
	}
	return e.cfg.CRS
}

func (e *Engine) readGrid(path, crs string) (*raster.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return raster.ReadASC(f, crs)
}

// expand substitutes {name} placeholders in an argv template. Unknown
// placeholders are left intact so a misconfigured template fails loudly in
// the external tool rather than silently running with an empty argument.
func expand(tmpl []string, vars map[string]string) []string {
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		for name, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+name+"}", v)
		}
		out[i] = arg
	}
	return out
}

// Package testutil provides in-process fakes for the external engine
// interfaces and small helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// FakeEngine implements engines.Rasterizer and engines.Algebra with cheap
// deterministic arithmetic so pipeline tests can assert exact pixel values
// without external tools. It counts invocations per operation and can be
// told to fail specific operations.
type FakeEngine struct {
	mu sync.Mutex

	// Elevation is the grid Rasterize returns (copied per call). Defaults to
	// a 4x4 surface when nil.
	Elevation *raster.Grid

	// FailRasterize, when set, makes Rasterize fail with a SourceReadError.
	FailRasterize error

	// FailOps maps operations to injected errors. A hillshade failure can be
	// restricted to one azimuth via FailHillshadeAzimuth.
	FailOps              map[engines.Operation]error
	FailHillshadeAzimuth float64

	// Block, when non-nil, is closed by the test to release engine calls;
	// used to hold steps in-flight for cancellation tests.
	Block chan struct{}

	calls     map[string]int
	active    int
	maxActive int
}

// DefaultElevation builds the surface FakeEngine serves when none is set:
// elevation rises left to right, with one no-data pixel in the corner.
func DefaultElevation() *raster.Grid {
	g := raster.NewGrid(4, 4, 1, raster.GeoRef{OriginX: 1000, OriginY: 2000, PixelSize: 0.5, CRS: "EPSG:32633"})
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			g.Set(0, col, row, 100+float64(col)*10+float64(row))
		}
	}
	g.Set(0, 3, 3, g.NoData)
	return g
}

func (f *FakeEngine) record(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
}

func (f *FakeEngine) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

// MaxActive reports the peak number of engine invocations in flight at the
// same time, including calls held on Block.
func (f *FakeEngine) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Calls returns the number of invocations recorded under key. Keys are
// "rasterize", "slope", "aspect", and "hillshade:<azimuth>".
func (f *FakeEngine) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// TotalCalls returns all recorded engine invocations.
func (f *FakeEngine) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeEngine) wait(ctx context.Context) error {
	if f.Block == nil {
		return nil
	}
	select {
	case <-f.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rasterize implements engines.Rasterizer.
func (f *FakeEngine) Rasterize(ctx context.Context, sourcePath string, _ engines.GridParams) (*raster.Grid, error) {
	f.record("rasterize")
	defer f.leave()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.FailRasterize != nil {
		return nil, &engines.SourceReadError{Path: sourcePath, Err: f.FailRasterize}
	}
	src := f.Elevation
	if src == nil {
		src = DefaultElevation()
	}
	out := src.CloneShape(1)
	copy(out.Data, src.Data)
	return out, nil
}

// Apply implements engines.Algebra. Hillshade output is a function of the
// elevation and the light direction; slope reuses the elevation value as
// degrees so tests can steer slope pixels directly.
func (f *FakeEngine) Apply(ctx context.Context, op engines.Operation, inputs []*raster.Grid, params map[string]float64) (*raster.Grid, error) {
	key := string(op)
	if op == engines.OpHillshade {
		key = fmt.Sprintf("hillshade:%g", params["azimuth"])
	}
	f.record(key)
	defer f.leave()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if err, ok := f.FailOps[op]; ok {
		if op != engines.OpHillshade || f.FailHillshadeAzimuth == 0 || params["azimuth"] == f.FailHillshadeAzimuth {
			return nil, &engines.EngineError{Op: op, ExitCode: 1, Stderr: "injected failure", Err: err}
		}
	}
	if len(inputs) != 1 {
		return nil, &engines.EngineError{Op: op, Err: fmt.Errorf("want one input, got %d", len(inputs))}
	}

	in := inputs[0]
	out := in.CloneShape(1)
	for i, v := range in.Band(0) {
		if in.IsNoData(v) {
			out.Band(0)[i] = out.NoData
			continue
		}
		switch op {
		case engines.OpHillshade:
			out.Band(0)[i] = v + params["azimuth"]/10 + params["altitude"]
		case engines.OpSlope:
			out.Band(0)[i] = v
		case engines.OpAspect:
			out.Band(0)[i] = v * 2
		default:
			return nil, &engines.EngineError{Op: op, Err: fmt.Errorf("unsupported operation")}
		}
	}
	return out, nil
}

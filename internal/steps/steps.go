// Package steps implements one executor per derivable product. Each
// executor wraps a single external-engine invocation and/or the pure
// normalizer transforms, and is only invoked on a cache miss.
package steps

import (
	"context"
	"fmt"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// Request is everything one step execution needs: the source surface (only
// the elevation executor reads it), the product spec, and the dependency
// artifacts in the order product.Spec.Dependencies declares them.
type Request struct {
	Source string
	Spec   product.Spec
	Deps   []*raster.Artifact
}

// Executor derives one product kind from its dependencies.
type Executor interface {
	Kind() product.Kind
	Run(ctx context.Context, req Request) (*raster.Grid, error)
}

// Set holds the executor for every product kind, sharing the two external
// engines and the fixed grid parameters.
type Set struct {
	executors map[product.Kind]Executor
}

// NewSet builds the full executor set.
func NewSet(rz engines.Rasterizer, alg engines.Algebra, grid engines.GridParams) *Set {
	s := &Set{executors: make(map[product.Kind]Executor)}
	for _, ex := range []Executor{
		&elevationExecutor{rasterizer: rz, grid: grid},
		&hillshadeExecutor{algebra: alg},
		&slopeExecutor{algebra: alg},
		&aspectExecutor{algebra: alg},
		&compositeExecutor{},
		&colorReliefExecutor{},
		&tintOverlayExecutor{},
		&slopeReliefExecutor{},
		&finalBlendExecutor{},
	} {
		s.executors[ex.Kind()] = ex
	}
	return s
}

// For returns the executor for a kind.
func (s *Set) For(kind product.Kind) (Executor, error) {
	ex, ok := s.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor for product kind %s", kind)
	}
	return ex, nil
}

// checkEngineOutput rejects malformed grids coming back from an external
// engine: wrong band count or an extent that disagrees with the elevation
// model the step derives from. Malformed output is an engine failure, never
// silently substituted.
func checkEngineOutput(op engines.Operation, got *raster.Grid, wantBands int, extentOf *raster.Grid) error {
	if err := got.Validate(); err != nil {
		return &engines.EngineError{Op: op, Err: err}
	}
	if got.Bands != wantBands {
		return &engines.EngineError{Op: op, Err: fmt.Errorf("expected %d band(s), engine returned %d", wantBands, got.Bands)}
	}
	if extentOf != nil && !got.SameExtent(extentOf) {
		return &engines.EngineError{Op: op, Err: fmt.Errorf(
			"extent %dx%d disagrees with elevation model %dx%d",
			got.Cols, got.Rows, extentOf.Cols, extentOf.Rows)}
	}
	return nil
}

// dep fetches a dependency artifact's grid by position, guarding against a
// scheduler bug delivering the wrong shape of dependency list.
func dep(req Request, i int, want product.Kind) (*raster.Grid, error) {
	if i >= len(req.Deps) {
		return nil, fmt.Errorf("step %s: missing dependency %d (%s)", req.Spec.Kind, i, want)
	}
	a := req.Deps[i]
	if a.Kind != want.String() {
		return nil, fmt.Errorf("step %s: dependency %d is %s, want %s", req.Spec.Kind, i, a.Kind, want)
	}
	return a.Grid, nil
}

package steps

import (
	"context"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// elevationExecutor produces the digital terrain model, once per source
// surface. It is the only executor that touches the point cloud.
type elevationExecutor struct {
	rasterizer engines.Rasterizer
	grid       engines.GridParams
}

func (e *elevationExecutor) Kind() product.Kind { return product.KindElevation }

func (e *elevationExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	logger := ctxlog.FromContext(ctx).With("step", "elevation", "source", req.Source)
	logger.Info("Rasterizing point cloud.", "resolution", e.grid.Resolution)

	g, err := e.rasterizer.Rasterize(ctx, req.Source, e.grid)
	if err != nil {
		return nil, err
	}
	if err := checkEngineOutput("rasterize", g, 1, nil); err != nil {
		return nil, err
	}
	return g, nil
}

// hillshadeExecutor computes simulated illumination at one azimuth/altitude
// pair from the elevation model.
type hillshadeExecutor struct {
	algebra engines.Algebra
}

func (e *hillshadeExecutor) Kind() product.Kind { return product.KindHillshade }

func (e *hillshadeExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	elev, err := dep(req, 0, product.KindElevation)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("step", "hillshade")
	logger.Info("Computing hillshade.", "azimuth", req.Spec.Params.Azimuth, "altitude", req.Spec.Params.Altitude)

	g, err := e.algebra.Apply(ctx, engines.OpHillshade, []*raster.Grid{elev}, map[string]float64{
		"azimuth":  req.Spec.Params.Azimuth,
		"altitude": req.Spec.Params.Altitude,
	})
	if err != nil {
		return nil, err
	}
	if err := checkEngineOutput(engines.OpHillshade, g, 1, elev); err != nil {
		return nil, err
	}
	return g, nil
}

// slopeExecutor computes slope in degrees from the elevation model.
type slopeExecutor struct {
	algebra engines.Algebra
}

func (e *slopeExecutor) Kind() product.Kind { return product.KindSlope }

func (e *slopeExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	elev, err := dep(req, 0, product.KindElevation)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Computing slope (degrees).")

	g, err := e.algebra.Apply(ctx, engines.OpSlope, []*raster.Grid{elev}, map[string]float64{"units": 0})
	if err != nil {
		return nil, err
	}
	if err := checkEngineOutput(engines.OpSlope, g, 1, elev); err != nil {
		return nil, err
	}
	return g, nil
}

// aspectExecutor computes downslope direction from the elevation model.
type aspectExecutor struct {
	algebra engines.Algebra
}

func (e *aspectExecutor) Kind() product.Kind { return product.KindAspect }

func (e *aspectExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	elev, err := dep(req, 0, product.KindElevation)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Computing aspect.")

	g, err := e.algebra.Apply(ctx, engines.OpAspect, []*raster.Grid{elev}, nil)
	if err != nil {
		return nil, err
	}
	if err := checkEngineOutput(engines.OpAspect, g, 1, elev); err != nil {
		return nil, err
	}
	return g, nil
}

package steps

import (
	"context"
	"fmt"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/normalize"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// compositeExecutor stacks the three fixed-direction hillshades into an RGB
// image, rescaling each band to 0-255 with its own min/max.
type compositeExecutor struct{}

func (e *compositeExecutor) Kind() product.Kind { return product.KindComposite }

func (e *compositeExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	ctxlog.FromContext(ctx).Info("Stacking multi-directional hillshade composite.")

	shades := make([]*raster.Grid, 3)
	for i := range shades {
		g, err := dep(req, i, product.KindHillshade)
		if err != nil {
			return nil, err
		}
		shades[i] = g
	}
	for i := 1; i < 3; i++ {
		if !shades[i].SameExtent(shades[0]) {
			return nil, fmt.Errorf("composite: hillshade %d extent %dx%d disagrees with %dx%d",
				i, shades[i].Cols, shades[i].Rows, shades[0].Cols, shades[0].Rows)
		}
	}

	out := shades[0].CloneShape(3)
	for b, shade := range shades {
		copy(out.Band(b), normalize.RescaleBand(shade, 0))
	}
	return out, nil
}

// colorReliefExecutor maps elevation through the configured color ramp.
type colorReliefExecutor struct{}

func (e *colorReliefExecutor) Kind() product.Kind { return product.KindColorRelief }

func (e *colorReliefExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	elev, err := dep(req, 0, product.KindElevation)
	if err != nil {
		return nil, err
	}
	ramp, err := normalize.NewRamp(req.Spec.Params.RampStops)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Rendering color relief.", "stops", len(req.Spec.Params.RampStops))
	return ramp.ColorRelief(elev), nil
}

// tintOverlayExecutor modulates the color relief by the composite's
// per-pixel intensity (multiply blend), producing a shaded, colorized
// terrain image.
type tintOverlayExecutor struct{}

func (e *tintOverlayExecutor) Kind() product.Kind { return product.KindTintOverlay }

func (e *tintOverlayExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	relief, err := dep(req, 0, product.KindColorRelief)
	if err != nil {
		return nil, err
	}
	composite, err := dep(req, 1, product.KindComposite)
	if err != nil {
		return nil, err
	}
	if !relief.SameExtent(composite) {
		return nil, fmt.Errorf("tint: color relief %dx%d disagrees with composite %dx%d",
			relief.Cols, relief.Rows, composite.Cols, composite.Rows)
	}
	ctxlog.FromContext(ctx).Info("Blending tint overlay.")

	out := relief.CloneShape(3)
	n := relief.Cols * relief.Rows
	cr, cg, cb := composite.Band(0), composite.Band(1), composite.Band(2)
	for i := 0; i < n; i++ {
		// Mean of the three shade bands, normalized to [0,1].
		intensity := (cr[i] + cg[i] + cb[i]) / 3 / 255
		for b := 0; b < 3; b++ {
			out.Band(b)[i] = relief.Band(b)[i] * intensity
		}
	}
	return out, nil
}

// slopeReliefExecutor applies the slope normalizer: archaeological 2°-20°
// stretch with colormap and alpha mask, or the legacy linear grayscale.
type slopeReliefExecutor struct{}

func (e *slopeReliefExecutor) Kind() product.Kind { return product.KindSlopeRelief }

func (e *slopeReliefExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	slope, err := dep(req, 0, product.KindSlope)
	if err != nil {
		return nil, err
	}
	p := req.Spec.Params
	ctxlog.FromContext(ctx).Info("Rendering slope relief.", "archaeological", p.Archaeological)
	return normalize.SlopeRelief(slope, p.Archaeological, p.LegacyMaxSlope), nil
}

// finalBlendExecutor linearly interpolates the tint overlay toward the
// slope relief: output = (1-factor)*tint + factor*slopeRelief. The tint is
// treated as fully opaque, so the output alpha interpolates from 255 toward
// the slope relief's transparency mask.
type finalBlendExecutor struct{}

func (e *finalBlendExecutor) Kind() product.Kind { return product.KindFinalBlend }

func (e *finalBlendExecutor) Run(ctx context.Context, req Request) (*raster.Grid, error) {
	tint, err := dep(req, 0, product.KindTintOverlay)
	if err != nil {
		return nil, err
	}
	slopeRelief, err := dep(req, 1, product.KindSlopeRelief)
	if err != nil {
		return nil, err
	}
	if !tint.SameExtent(slopeRelief) {
		return nil, fmt.Errorf("blend: tint %dx%d disagrees with slope relief %dx%d",
			tint.Cols, tint.Rows, slopeRelief.Cols, slopeRelief.Rows)
	}
	f := req.Spec.Params.BlendFactor
	ctxlog.FromContext(ctx).Info("Blending final visualization.", "factor", f)

	out := slopeRelief.CloneShape(4)
	n := out.Cols * out.Rows
	for b := 0; b < 3; b++ {
		tb, sb, ob := tint.Band(b), slopeRelief.Band(b), out.Band(b)
		for i := 0; i < n; i++ {
			ob[i] = (1-f)*tb[i] + f*sb[i]
		}
	}
	sa, oa := slopeRelief.Band(3), out.Band(3)
	for i := 0; i < n; i++ {
		oa[i] = (1-f)*255 + f*sa[i]
	}
	return out, nil
}

package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/engines"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/testutil"
)

func newSet(fe *testutil.FakeEngine) *Set {
	return NewSet(fe, fe, engines.GridParams{Resolution: 0.5, CRS: "EPSG:32633"})
}

func artifact(kind product.Kind, g *raster.Grid) *raster.Artifact {
	return &raster.Artifact{Fingerprint: "fp-" + kind.String(), Kind: kind.String(), Grid: g}
}

func grid1(values ...float64) *raster.Grid {
	g := raster.NewGrid(len(values), 1, 1, raster.GeoRef{PixelSize: 1, CRS: "EPSG:32633"})
	copy(g.Band(0), values)
	return g
}

func TestSetCoversEveryKind(t *testing.T) {
	s := newSet(&testutil.FakeEngine{})
	for _, k := range product.Kinds() {
		ex, err := s.For(k)
		require.NoError(t, err, "kind %s", k)
		assert.Equal(t, k, ex.Kind())
	}
	_, err := s.For(product.KindUnknown)
	assert.Error(t, err)
}

func TestElevationExecutor(t *testing.T) {
	fe := &testutil.FakeEngine{}
	s := newSet(fe)
	ex, _ := s.For(product.KindElevation)

	g, err := ex.Run(context.Background(), Request{Source: "survey.laz", Spec: product.Spec{Kind: product.KindElevation}})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Bands)
	assert.Equal(t, 1, fe.Calls("rasterize"))
	assert.Equal(t, "EPSG:32633", g.Geo.CRS)
}

func TestElevationExecutorSourceError(t *testing.T) {
	fe := &testutil.FakeEngine{FailRasterize: errors.New("corrupt LAZ")}
	ex, _ := newSet(fe).For(product.KindElevation)

	_, err := ex.Run(context.Background(), Request{Source: "bad.laz", Spec: product.Spec{Kind: product.KindElevation}})
	var sre *engines.SourceReadError
	require.True(t, errors.As(err, &sre))
}

func TestHillshadeExecutorPassesAngles(t *testing.T) {
	fe := &testutil.FakeEngine{}
	ex, _ := newSet(fe).For(product.KindHillshade)

	elev := grid1(100, 110)
	spec := product.Spec{Kind: product.KindHillshade, Params: product.Params{Azimuth: 315, Altitude: 30}}
	g, err := ex.Run(context.Background(), Request{Spec: spec, Deps: []*raster.Artifact{artifact(product.KindElevation, elev)}})
	require.NoError(t, err)
	// Fake hillshade = elev + az/10 + alt.
	assert.Equal(t, 100+31.5+30, g.Band(0)[0])
	assert.Equal(t, 1, fe.Calls("hillshade:315"))
}

func TestHillshadeExecutorEngineFailure(t *testing.T) {
	fe := &testutil.FakeEngine{FailOps: map[engines.Operation]error{engines.OpHillshade: errors.New("boom")}}
	ex, _ := newSet(fe).For(product.KindHillshade)

	_, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindHillshade, Params: product.Params{Azimuth: 45, Altitude: 25}},
		Deps: []*raster.Artifact{artifact(product.KindElevation, grid1(1))},
	})
	var ee *engines.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.ExitCode)
}

func TestExecutorRejectsWrongDependencyKind(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindHillshade)
	_, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindHillshade, Params: product.Params{Azimuth: 45, Altitude: 25}},
		Deps: []*raster.Artifact{artifact(product.KindSlope, grid1(1))},
	})
	assert.ErrorContains(t, err, "dependency 0")
}

func TestCompositePerBandNormalization(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindComposite)

	// Disjoint input ranges: each band must stretch to 0..255 independently.
	h1 := grid1(0, 50, 100)
	h2 := grid1(1000, 1500, 2000)
	h3 := grid1(-40, -20, 0)

	g, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindComposite},
		Deps: []*raster.Artifact{
			artifact(product.KindHillshade, h1),
			artifact(product.KindHillshade, h2),
			artifact(product.KindHillshade, h3),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, g.Bands)
	for b := 0; b < 3; b++ {
		band := g.Band(b)
		assert.Equal(t, 0.0, band[0], "band %d min maps to 0", b)
		assert.InDelta(t, 128, band[1], 1)
		assert.Equal(t, 255.0, band[2], "band %d max maps to 255", b)
	}
}

func TestCompositeExtentMismatch(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindComposite)
	_, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindComposite},
		Deps: []*raster.Artifact{
			artifact(product.KindHillshade, grid1(1, 2)),
			artifact(product.KindHillshade, grid1(1, 2, 3)),
			artifact(product.KindHillshade, grid1(1, 2)),
		},
	})
	assert.ErrorContains(t, err, "extent")
}

func TestTintOverlayMultiply(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindTintOverlay)

	relief := raster.NewGrid(2, 1, 3, raster.GeoRef{PixelSize: 1})
	copy(relief.Band(0), []float64{200, 100})
	copy(relief.Band(1), []float64{100, 50})
	copy(relief.Band(2), []float64{50, 0})

	composite := raster.NewGrid(2, 1, 3, raster.GeoRef{PixelSize: 1})
	// Pixel 0 at full intensity, pixel 1 at half.
	copy(composite.Band(0), []float64{255, 127.5})
	copy(composite.Band(1), []float64{255, 127.5})
	copy(composite.Band(2), []float64{255, 127.5})

	g, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindTintOverlay, Params: product.DefaultParams()},
		Deps: []*raster.Artifact{
			artifact(product.KindColorRelief, relief),
			artifact(product.KindComposite, composite),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, g.Band(0)[0])
	assert.InDelta(t, 50, g.Band(0)[1], 1e-9)
	assert.InDelta(t, 25, g.Band(1)[1], 1e-9)
}

func TestFinalBlendEndpointsAndLinearity(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindFinalBlend)

	tint := raster.NewGrid(2, 1, 3, raster.GeoRef{PixelSize: 1})
	for b := 0; b < 3; b++ {
		copy(tint.Band(b), []float64{100, 200})
	}
	slopeRelief := raster.NewGrid(2, 1, 4, raster.GeoRef{PixelSize: 1})
	for b := 0; b < 3; b++ {
		copy(slopeRelief.Band(b), []float64{20, 40})
	}
	copy(slopeRelief.Band(3), []float64{255, 63.75})

	run := func(factor float64) *raster.Grid {
		p := product.DefaultParams()
		p.BlendFactor = factor
		g, err := ex.Run(context.Background(), Request{
			Spec: product.Spec{Kind: product.KindFinalBlend, Params: p},
			Deps: []*raster.Artifact{
				artifact(product.KindTintOverlay, tint),
				artifact(product.KindSlopeRelief, slopeRelief),
			},
		})
		require.NoError(t, err)
		return g
	}

	atZero := run(0)
	for b := 0; b < 3; b++ {
		assert.Equal(t, tint.Band(b), atZero.Band(b), "factor=0 reproduces the tint")
	}
	assert.Equal(t, []float64{255, 255}, atZero.Band(3))

	atOne := run(1)
	for b := 0; b < 4; b++ {
		assert.Equal(t, slopeRelief.Band(b), atOne.Band(b), "factor=1 reproduces the slope relief")
	}

	mid := run(0.5)
	assert.InDelta(t, 60, mid.Band(0)[0], 1e-9, "linear in between")
	assert.InDelta(t, 120, mid.Band(0)[1], 1e-9)
	assert.InDelta(t, (255+63.75)/2, mid.Band(3)[1], 1e-9)
}

func TestSlopeReliefExecutorShape(t *testing.T) {
	ex, _ := newSet(&testutil.FakeEngine{}).For(product.KindSlopeRelief)

	g, err := ex.Run(context.Background(), Request{
		Spec: product.Spec{Kind: product.KindSlopeRelief, Params: product.DefaultParams()},
		Deps: []*raster.Artifact{artifact(product.KindSlope, grid1(0, 11, 25, -9999))},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Bands)
	assert.Equal(t, 0.0, g.Band(3)[3], "no-data is transparent")
}

func TestCheckEngineOutput(t *testing.T) {
	elev := grid1(1, 2, 3)

	wrongBands := elev.CloneShape(2)
	err := checkEngineOutput(engines.OpSlope, wrongBands, 1, elev)
	var ee *engines.EngineError
	require.True(t, errors.As(err, &ee))
	assert.ErrorContains(t, ee, "band")

	wrongExtent := grid1(1, 2)
	err = checkEngineOutput(engines.OpSlope, wrongExtent, 1, elev)
	assert.ErrorContains(t, err, "extent")

	assert.NoError(t, checkEngineOutput(engines.OpSlope, grid1(4, 5, 6), 1, elev))
}

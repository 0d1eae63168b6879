package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

func TestArchaeoSlopeBoundaries(t *testing.T) {
	assert.Equal(t, 0.0, ArchaeoSlope(2))
	assert.Equal(t, 1.0, ArchaeoSlope(20))
	assert.Equal(t, 0.0, ArchaeoSlope(-5))
	assert.Equal(t, 0.0, ArchaeoSlope(0))
	assert.Equal(t, 1.0, ArchaeoSlope(45))
	assert.InDelta(t, 0.5, ArchaeoSlope(11), 1e-12)
}

func TestArchaeoSlopeMonotonic(t *testing.T) {
	prev := math.Inf(-1)
	for s := -10.0; s <= 60; s += 0.25 {
		v := ArchaeoSlope(s)
		assert.GreaterOrEqual(t, v, prev, "not monotonic at s=%g", s)
		prev = v
	}
}

func TestArchaeoAlpha(t *testing.T) {
	assert.Equal(t, 0.0, ArchaeoAlpha(10, true), "no-data is fully transparent")
	assert.Equal(t, 1.0, ArchaeoAlpha(2, false))
	assert.Equal(t, 1.0, ArchaeoAlpha(20, false))
	assert.Equal(t, 1.0, ArchaeoAlpha(11, false))

	below := ArchaeoAlpha(1, false)
	assert.Less(t, below, 1.0)
	assert.InDelta(t, 0.25, below, 0.051, "flat ground sits in the 20-30%% opacity band")

	above := ArchaeoAlpha(30, false)
	assert.Less(t, above, 1.0)
	assert.InDelta(t, 0.55, above, 0.051, "steep ground sits in the 50-60%% opacity band")
}

func TestLegacySlope(t *testing.T) {
	assert.Equal(t, 0.0, LegacySlope(0, 60))
	assert.Equal(t, 1.0, LegacySlope(60, 60))
	assert.Equal(t, 1.0, LegacySlope(80, 60))
	assert.InDelta(t, 0.5, LegacySlope(30, 60), 1e-12)
}

func TestArchaeoColormapEndpoints(t *testing.T) {
	cm := ArchaeoColormap()

	r0, g0, b0 := cm.RGB255(0)
	r1, g1, b1 := cm.RGB255(1)
	assert.Less(t, r0+g0+b0, 30.0, "low end is near black")
	assert.Greater(t, r1+g1+b1, 600.0, "high end is near white")

	// Luminance rises along the ramp.
	prev := -1.0
	for _, tv := range []float64{0, 0.25, 0.5, 0.75, 1} {
		l, _, _ := cm.At(tv).Lab()
		assert.Greater(t, l, prev, "luminance not increasing at t=%g", tv)
		prev = l
	}
}

func TestNewColormapErrors(t *testing.T) {
	_, err := NewColormap([]string{"#fff"})
	assert.Error(t, err)
	_, err = NewColormap([]string{"#ffffff", "notacolor"})
	assert.Error(t, err)
}

func slopeGrid(values ...float64) *raster.Grid {
	g := raster.NewGrid(len(values), 1, 1, raster.GeoRef{PixelSize: 1, CRS: "EPSG:32633"})
	copy(g.Band(0), values)
	return g
}

func TestSlopeReliefArchaeological(t *testing.T) {
	g := slopeGrid(0, 2, 11, 20, 35, -9999)
	out := SlopeRelief(g, true, 0)

	require.Equal(t, 4, out.Bands)
	require.True(t, out.SameExtent(g))
	assert.Equal(t, g.Geo, out.Geo, "georeferencing carries through")

	alpha := out.Band(3)
	assert.InDelta(t, 0.25*255, alpha[0], 0.5)
	assert.Equal(t, 255.0, alpha[1])
	assert.Equal(t, 255.0, alpha[2])
	assert.Equal(t, 255.0, alpha[3])
	assert.InDelta(t, 0.55*255, alpha[4], 0.5)
	assert.Equal(t, 0.0, alpha[5], "no-data pixel is fully transparent")

	// Color brightens with slope inside the window.
	sum := func(i int) float64 { return out.Band(0)[i] + out.Band(1)[i] + out.Band(2)[i] }
	assert.Less(t, sum(1), sum(2))
	assert.Less(t, sum(2), sum(3))
}

func TestSlopeReliefLegacy(t *testing.T) {
	g := slopeGrid(0, 30, 60, -9999)
	out := SlopeRelief(g, false, 60)

	assert.Equal(t, 0.0, out.At(0, 0, 0))
	assert.InDelta(t, 127.5, out.At(0, 1, 0), 1)
	assert.Equal(t, 255.0, out.At(0, 2, 0))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 255.0, out.Band(3)[i], "legacy mode is opaque")
		assert.Equal(t, out.Band(0)[i], out.Band(1)[i], "legacy mode is grayscale")
	}
	assert.Equal(t, 0.0, out.Band(3)[3])
}

func TestColorReliefRampEndpoints(t *testing.T) {
	ramp, err := NewRamp(product.DefaultRampStops)
	require.NoError(t, err)

	elev := slopeGrid(100, 150, 200, -9999)
	out := ramp.ColorRelief(elev)
	require.Equal(t, 3, out.Bands)

	// Lowest elevation hits the first stop (navy), highest the last (white).
	assert.InDelta(t, 0x00, out.Band(0)[0], 1)
	assert.InDelta(t, 0x10, out.Band(1)[0], 1)
	assert.InDelta(t, 0x70, out.Band(2)[0], 1)
	assert.InDelta(t, 255, out.Band(0)[2], 1)
	assert.InDelta(t, 255, out.Band(1)[2], 1)
	assert.InDelta(t, 255, out.Band(2)[2], 1)
}

func TestValidRangeSkipsNoData(t *testing.T) {
	g := slopeGrid(-9999, 5, 15, math.NaN())
	lo, hi, ok := ValidRange(g, 0)
	require.True(t, ok)
	assert.Equal(t, 5.0, lo)
	assert.Equal(t, 15.0, hi)

	empty := slopeGrid(-9999, -9999)
	_, _, ok = ValidRange(empty, 0)
	assert.False(t, ok)
}

func TestRescaleBandIndependent(t *testing.T) {
	g := slopeGrid(10, 20, 30)
	out := RescaleBand(g, 0)
	assert.Equal(t, 0.0, out[0])
	assert.InDelta(t, 128, out[1], 1)
	assert.Equal(t, 255.0, out[2])

	flat := slopeGrid(7, 7)
	assert.Equal(t, []float64{0, 0}, RescaleBand(flat, 0))
}

package normalize

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// Ramp maps elevation values to colors through evenly spaced stops over the
// observed elevation range, with linear RGB interpolation between stops.
type Ramp struct {
	stops []colorful.Color
}

// NewRamp parses hex stops ordered low to high.
func NewRamp(hexStops []string) (*Ramp, error) {
	if len(hexStops) < 2 {
		return nil, fmt.Errorf("ramp needs at least two stops, got %d", len(hexStops))
	}
	stops := make([]colorful.Color, len(hexStops))
	for i, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("ramp stop %d (%q): %w", i, h, err)
		}
		stops[i] = c
	}
	return &Ramp{stops: stops}, nil
}

// At returns the color for t in [0,1], clamped.
func (r *Ramp) At(t float64) colorful.Color {
	if t <= 0 {
		return r.stops[0]
	}
	if t >= 1 {
		return r.stops[len(r.stops)-1]
	}
	scaled := t * float64(len(r.stops)-1)
	i := int(scaled)
	return r.stops[i].BlendRgb(r.stops[i+1], scaled-float64(i))
}

// ColorRelief renders an elevation grid (band 0) through the ramp as a
// 3-band RGB grid with 0-255 channel values. No-data pixels come out black;
// downstream alpha handling hides them.
func (r *Ramp) ColorRelief(elev *raster.Grid) *raster.Grid {
	lo, hi, ok := ValidRange(elev, 0)
	out := elev.CloneShape(3)
	if !ok {
		return out
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	src := elev.Band(0)
	rB, gB, bB := out.Band(0), out.Band(1), out.Band(2)
	for i, v := range src {
		if elev.IsNoData(v) {
			continue
		}
		cr, cg, cb := r.At((v - lo) / span).RGB255()
		rB[i], gB[i], bB[i] = float64(cr), float64(cg), float64(cb)
	}
	return out
}

// ValidRange returns the min and max of a band, ignoring no-data samples.
// ok is false when the band holds no valid samples.
func ValidRange(g *raster.Grid, band int) (lo, hi float64, ok bool) {
	valid := make([]float64, 0, g.Cols*g.Rows)
	for _, v := range g.Band(band) {
		if !g.IsNoData(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	return floats.Min(valid), floats.Max(valid), true
}

// RescaleBand stretches a band to the 0-255 integer range using its own
// min/max; each band of a composite is normalized independently. No-data
// samples map to 0.
func RescaleBand(g *raster.Grid, band int) []float64 {
	out := make([]float64, g.Cols*g.Rows)
	lo, hi, ok := ValidRange(g, band)
	if !ok {
		return out
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for i, v := range g.Band(band) {
		if g.IsNoData(v) {
			continue
		}
		out[i] = math.Round((v - lo) / span * 255)
	}
	return out
}

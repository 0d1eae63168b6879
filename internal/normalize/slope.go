// Package normalize holds the pure numeric and visual transform rules
// applied to derived rasters: range normalization, colormap lookup, and
// transparency masking. Everything here is deterministic and side-effect
// free; executors call in after the external engines have produced the raw
// grids.
package normalize

import (
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// Archaeological slope window, in degrees. Human-made terrain features
// (banks, ditches, terraces, mounds) mostly read between these bounds;
// flatter and steeper ground is de-emphasized through transparency.
const (
	ArchaeoSlopeMin = 2.0
	ArchaeoSlopeMax = 20.0
)

// Opacity applied outside the archaeological window.
const (
	alphaBelowWindow = 0.25 // flat ground, 20-30% band
	alphaAboveWindow = 0.55 // steep ground, 50-60% band
)

// ArchaeoSlope stretches slope degrees linearly over the 2°-20° window,
// clamped to [0,1] outside it.
func ArchaeoSlope(s float64) float64 {
	t := (s - ArchaeoSlopeMin) / (ArchaeoSlopeMax - ArchaeoSlopeMin)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// ArchaeoAlpha returns the opacity for a slope sample: fully opaque inside
// the window, faded outside it, fully transparent for no-data.
func ArchaeoAlpha(s float64, noData bool) float64 {
	switch {
	case noData:
		return 0
	case s < ArchaeoSlopeMin:
		return alphaBelowWindow
	case s > ArchaeoSlopeMax:
		return alphaAboveWindow
	default:
		return 1
	}
}

// LegacySlope is the older linear stretch over [0, maxSlope] degrees,
// retained for callers that still request it.
func LegacySlope(s, maxSlope float64) float64 {
	t := s / maxSlope
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// SlopeRelief renders a slope grid (band 0, degrees) as a 4-band RGBA grid
// with 0-255 channel values. In archaeological mode the 2°-20° stretch,
// dark-to-light colormap, and transparency mask apply; in legacy mode the
// 0-maxSlope stretch maps to an opaque grayscale.
func SlopeRelief(slope *raster.Grid, archaeological bool, legacyMaxSlope float64) *raster.Grid {
	out := slope.CloneShape(4)
	cm := ArchaeoColormap()

	src := slope.Band(0)
	rB, gB, bB, aB := out.Band(0), out.Band(1), out.Band(2), out.Band(3)
	for i, s := range src {
		if slope.IsNoData(s) {
			rB[i], gB[i], bB[i], aB[i] = 0, 0, 0, 0
			continue
		}
		if archaeological {
			t := ArchaeoSlope(s)
			rB[i], gB[i], bB[i] = cm.RGB255(t)
			aB[i] = ArchaeoAlpha(s, false) * 255
		} else {
			v := LegacySlope(s, legacyMaxSlope) * 255
			rB[i], gB[i], bB[i] = v, v, v
			aB[i] = 255
		}
	}
	return out
}

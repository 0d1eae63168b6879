package normalize

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap maps a normalized value in [0,1] to a color by piecewise-linear
// interpolation between anchor stops, blended in Lab space so perceived
// brightness changes evenly along the ramp.
type Colormap struct {
	stops []colorful.Color
}

// archaeoStops is the perceptually-uniform dark-to-light sequence used for
// archaeological slope visualization: near-black dark red at 0 rising to
// near-white at 1 (the magma sequence, subsampled at eight anchors). The
// exact stop table is the contract; pixel-for-pixel agreement with other
// tools is not.
var archaeoStops = []string{
	"#000004",
	"#1d1147",
	"#51127c",
	"#822681",
	"#b63679",
	"#e65164",
	"#fb8861",
	"#fcfdbf",
}

// NewColormap builds a colormap from hex stops ordered low to high.
func NewColormap(hexStops []string) (*Colormap, error) {
	if len(hexStops) < 2 {
		return nil, fmt.Errorf("colormap needs at least two stops, got %d", len(hexStops))
	}
	stops := make([]colorful.Color, len(hexStops))
	for i, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colormap stop %d: %w", i, err)
		}
		stops[i] = c
	}
	return &Colormap{stops: stops}, nil
}

// ArchaeoColormap returns the dark-to-light colormap for archaeological
// slope rendering.
func ArchaeoColormap() *Colormap {
	cm, err := NewColormap(archaeoStops)
	if err != nil {
		panic(err) // static table, cannot fail
	}
	return cm
}

// At returns the interpolated color for t in [0,1]; t is clamped.
func (cm *Colormap) At(t float64) colorful.Color {
	if t <= 0 {
		return cm.stops[0]
	}
	if t >= 1 {
		return cm.stops[len(cm.stops)-1]
	}
	scaled := t * float64(len(cm.stops)-1)
	i := int(scaled)
	frac := scaled - float64(i)
	return cm.stops[i].BlendLab(cm.stops[i+1], frac)
}

// RGB255 returns the color at t as 0-255 channel values.
func (cm *Colormap) RGB255(t float64) (r, g, b float64) {
	ri, gi, bi := cm.At(t).RGB255()
	return float64(ri), float64(gi), float64(bi)
}

package raster

import (
	"fmt"
	"math"
)

// GeoRef places a grid on a map: the world coordinate of the top-left corner
// of the top-left pixel, the pixel edge length in map units, and the
// coordinate reference system identifier (e.g. "EPSG:32633").
type GeoRef struct {
	OriginX   float64 `json:"origin_x"`
	OriginY   float64 `json:"origin_y"`
	PixelSize float64 `json:"pixel_size"`
	CRS       string  `json:"crs"`
}

// Grid is an in-memory raster: one or more bands of float64 samples over the
// same georeferenced extent. Data is band-major: band b occupies
// Data[b*Cols*Rows : (b+1)*Cols*Rows], row-major within the band.
type Grid struct {
	Cols   int
	Rows   int
	Bands  int
	NoData float64
	Geo    GeoRef
	Data   []float64
}

// NewGrid allocates a zeroed grid of the given shape. NoData defaults to
// -9999, the conventional sentinel for elevation products.
func NewGrid(cols, rows, bands int, geo GeoRef) *Grid {
	return &Grid{
		Cols:   cols,
		Rows:   rows,
		Bands:  bands,
		NoData: -9999,
		Geo:    geo,
		Data:   make([]float64, cols*rows*bands),
	}
}

// CloneShape returns a new zeroed grid with the same extent and
// georeferencing but the requested band count.
func (g *Grid) CloneShape(bands int) *Grid {
	out := NewGrid(g.Cols, g.Rows, bands, g.Geo)
	out.NoData = g.NoData
	return out
}

// At returns the sample at (col, row) in band b.
func (g *Grid) At(b, col, row int) float64 {
	return g.Data[b*g.Cols*g.Rows+row*g.Cols+col]
}

// Set writes the sample at (col, row) in band b.
func (g *Grid) Set(b, col, row int, v float64) {
	g.Data[b*g.Cols*g.Rows+row*g.Cols+col] = v
}

// Band returns the backing slice for one band.
func (g *Grid) Band(b int) []float64 {
	n := g.Cols * g.Rows
	return g.Data[b*n : (b+1)*n]
}

// IsNoData reports whether a sample carries the grid's no-data sentinel.
// NaN is also treated as no-data since external tools disagree on which
// sentinel they emit.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == g.NoData
}

// Validate checks internal consistency: positive extent, band count, and a
// backing slice of exactly the declared size.
func (g *Grid) Validate() error {
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("raster: invalid extent %dx%d", g.Cols, g.Rows)
	}
	if g.Bands <= 0 {
		return fmt.Errorf("raster: invalid band count %d", g.Bands)
	}
	if want := g.Cols * g.Rows * g.Bands; len(g.Data) != want {
		return fmt.Errorf("raster: data length %d, want %d", len(g.Data), want)
	}
	return nil
}

// SameExtent reports whether two grids cover the same pixel extent.
func (g *Grid) SameExtent(o *Grid) bool {
	return g.Cols == o.Cols && g.Rows == o.Rows
}

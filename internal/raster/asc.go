package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Esri ASCII grid codec. Single-band files follow the standard AAIGrid
// layout understood by external raster tools. Multi-band grids (composites,
// archaeological overlays) add one non-standard "nbands" header line and
// concatenate bands; those files only travel between the cache and this
// process, never to external tools.

// WriteASC encodes a grid in Esri ASCII grid format.
func WriteASC(w io.Writer, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner %g\n", g.Geo.OriginX)
	fmt.Fprintf(bw, "yllcorner %g\n", g.Geo.OriginY-float64(g.Rows)*g.Geo.PixelSize)
	fmt.Fprintf(bw, "cellsize %g\n", g.Geo.PixelSize)
	fmt.Fprintf(bw, "NODATA_value %g\n", g.NoData)
	if g.Bands > 1 {
		fmt.Fprintf(bw, "nbands %d\n", g.Bands)
	}
	for b := 0; b < g.Bands; b++ {
		band := g.Band(b)
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				if col > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(strconv.FormatFloat(band[row*g.Cols+col], 'g', -1, 64))
			}
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// ReadASC decodes an Esri ASCII grid. The CRS is not part of the format and
// must be supplied by the caller (cache metadata or configuration).
func ReadASC(r io.Reader, crs string) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	header := map[string]float64{}
	bands := 1
	var firstDataLine string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value", "nbands":
			if len(fields) != 2 {
				return nil, fmt.Errorf("raster: malformed header line %q", line)
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("raster: header %s: %w", key, err)
			}
			if key == "nbands" {
				bands = int(v)
			} else {
				header[key] = v
			}
			continue
		}
		firstDataLine = line
		break
	}

	cols := int(header["ncols"])
	rows := int(header["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("raster: missing or invalid ncols/nrows header")
	}
	cellsize := header["cellsize"]
	geo := GeoRef{
		OriginX:   header["xllcorner"],
		OriginY:   header["yllcorner"] + float64(rows)*cellsize,
		PixelSize: cellsize,
		CRS:       crs,
	}
	g := NewGrid(cols, rows, bands, geo)
	if nd, ok := header["nodata_value"]; ok {
		g.NoData = nd
	}

	i := 0
	consume := func(line string) error {
		for _, f := range strings.Fields(line) {
			if i >= len(g.Data) {
				return fmt.Errorf("raster: more samples than %dx%dx%d declared", cols, rows, bands)
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("raster: sample %d: %w", i, err)
			}
			g.Data[i] = v
			i++
		}
		return nil
	}
	if firstDataLine != "" {
		if err := consume(firstDataLine); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := consume(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if i != len(g.Data) {
		return nil, fmt.Errorf("raster: got %d samples, want %d", i, len(g.Data))
	}
	return g, nil
}

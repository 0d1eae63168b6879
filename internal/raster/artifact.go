package raster

import "time"

// Artifact is the committed output of one pipeline step: the grid itself plus
// the metadata a caller needs to address it and place it on a map. Once an
// Artifact is handed to the cache it is immutable; a changed parameter set
// produces a new fingerprint and a new Artifact.
type Artifact struct {
	Fingerprint string    `json:"fingerprint"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	Grid        *Grid     `json:"-"`
}

// Meta is the sidecar metadata persisted next to an artifact's grid so a
// caller can georeference it without decoding pixel data.
type Meta struct {
	Fingerprint string    `json:"fingerprint"`
	Kind        string    `json:"kind"`
	Cols        int       `json:"cols"`
	Rows        int       `json:"rows"`
	Bands       int       `json:"bands"`
	NoData      float64   `json:"nodata"`
	Geo         GeoRef    `json:"georef"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetaOf derives the sidecar metadata from a committed artifact.
func MetaOf(a *Artifact) Meta {
	return Meta{
		Fingerprint: a.Fingerprint,
		Kind:        a.Kind,
		Cols:        a.Grid.Cols,
		Rows:        a.Grid.Rows,
		Bands:       a.Grid.Bands,
		NoData:      a.Grid.NoData,
		Geo:         a.Grid.Geo,
		CreatedAt:   a.CreatedAt,
	}
}

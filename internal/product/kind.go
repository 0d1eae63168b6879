// Package product defines the closed set of raster products the pipeline can
// derive, their parameters, and the static dependency rules between them.
package product

import "fmt"

// Kind identifies one product type. The set is closed: the pipeline's
// dependency rules, executors, and fingerprints are all keyed on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindElevation
	KindHillshade
	KindComposite
	KindSlope
	KindAspect
	KindColorRelief
	KindTintOverlay
	KindSlopeRelief
	KindFinalBlend
)

var kindNames = map[Kind]string{
	KindElevation:   "elevation",
	KindHillshade:   "hillshade",
	KindComposite:   "composite",
	KindSlope:       "slope",
	KindAspect:      "aspect",
	KindColorRelief: "color_relief",
	KindTintOverlay: "tint_overlay",
	KindSlopeRelief: "slope_relief",
	KindFinalBlend:  "final_blend",
}

// displayNames maps kinds to the human-facing labels a UI shows. Kept as a
// static table so executor logic never branches on presentation strings.
var displayNames = map[Kind]string{
	KindElevation:   "Elevation model (DTM)",
	KindHillshade:   "Hillshade",
	KindComposite:   "Multi-directional hillshade composite",
	KindSlope:       "Slope (degrees)",
	KindAspect:      "Aspect",
	KindColorRelief: "Color relief",
	KindTintOverlay: "Tinted hillshade",
	KindSlopeRelief: "Slope relief",
	KindFinalBlend:  "Blended terrain visualization",
}

// String returns the stable machine name of a kind. It is part of the
// fingerprint encoding and must never change for an existing kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DisplayName returns the UI label for a kind.
func (k Kind) DisplayName() string {
	if s, ok := displayNames[k]; ok {
		return s
	}
	return k.String()
}

// ParseKind resolves a machine name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown product kind %q", s)
}

// Kinds returns every known kind in dependency-friendly order.
func Kinds() []Kind {
	return []Kind{
		KindElevation, KindHillshade, KindComposite, KindSlope, KindAspect,
		KindColorRelief, KindTintOverlay, KindSlopeRelief, KindFinalBlend,
	}
}

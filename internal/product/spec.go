package product

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// LightAngle is one hillshade illumination direction.
type LightAngle struct {
	Azimuth  float64 `json:"azimuth"`
	Altitude float64 `json:"altitude"`
}

// CompositeAngles are the three fixed illumination directions stacked into
// the red, green, and blue bands of the multi-directional composite.
var CompositeAngles = [3]LightAngle{
	{Azimuth: 315, Altitude: 30},
	{Azimuth: 45, Altitude: 25},
	{Azimuth: 135, Altitude: 30},
}

// DefaultRampStops is the 8-stop elevation color ramp, ordered low to high.
// The leading navy sits below the named "blue" stop so the ramp has eight
// anchors over the elevation range.
var DefaultRampStops = []string{
	"#001070", // navy
	"#0000ff", // blue
	"#00ffff", // cyan
	"#00c000", // green
	"#ffff00", // yellow
	"#ff8000", // orange
	"#ff0000", // red
	"#ffffff", // white
}

// DefaultBlendFactor weights the slope relief against the tinted hillshade
// in the final blend.
const DefaultBlendFactor = 0.5

// DefaultLegacyMaxSlope is the upper bound of the legacy linear slope
// stretch, in degrees.
const DefaultLegacyMaxSlope = 60.0

// Params carries every parameter that can affect a product's pixels. Only
// the subset relevant to a given kind participates in that kind's identity;
// see CanonicalParams.
type Params struct {
	Azimuth        float64  `json:"azimuth,omitempty"`
	Altitude       float64  `json:"altitude,omitempty"`
	RampStops      []string `json:"ramp_stops,omitempty"`
	BlendFactor    float64  `json:"blend_factor,omitempty"`
	Archaeological bool     `json:"archaeological,omitempty"`
	LegacyMaxSlope float64  `json:"legacy_max_slope,omitempty"`
}

// Spec identifies one requestable product: a kind plus the parameters that
// affect its output. Two Specs with equal kind and canonical parameters are
// interchangeable.
type Spec struct {
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

// DefaultParams returns the parameter set a caller gets when it supplies
// nothing: archaeological mode on, default ramp, default blend, and the
// conventional northwest light for a standalone hillshade. Composite
// hillshades override the light direction per band.
func DefaultParams() Params {
	return Params{
		Azimuth:        315,
		Altitude:       45,
		RampStops:      append([]string(nil), DefaultRampStops...),
		BlendFactor:    DefaultBlendFactor,
		Archaeological: true,
		LegacyMaxSlope: DefaultLegacyMaxSlope,
	}
}

// Validate rejects parameter combinations before any step node is created.
// The check is transitive over the static dependency shape: a request is
// only accepted when every step it expands to would be well-formed, so a
// bad ramp on a final-blend request fails at submission, not as a runtime
// color-relief failure.
func (s Spec) Validate() error {
	if err := s.validateParams(); err != nil {
		return err
	}
	for _, dep := range s.Dependencies() {
		if err := dep.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s Spec) validateParams() error {
	if _, ok := kindNames[s.Kind]; !ok {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %d", int(s.Kind))}
	}
	p := s.Params
	switch s.Kind {
	case KindHillshade:
		if p.Azimuth < 0 || p.Azimuth >= 360 {
			return &ValidationError{Field: "azimuth", Reason: fmt.Sprintf("%g outside [0,360)", p.Azimuth)}
		}
		if p.Altitude <= 0 || p.Altitude > 90 {
			return &ValidationError{Field: "altitude", Reason: fmt.Sprintf("%g outside (0,90]", p.Altitude)}
		}
	case KindColorRelief, KindTintOverlay:
		if len(p.RampStops) < 2 {
			return &ValidationError{Field: "ramp_stops", Reason: "at least two stops required"}
		}
		for _, stop := range p.RampStops {
			if _, err := colorful.Hex(stop); err != nil {
				return &ValidationError{Field: "ramp_stops", Reason: fmt.Sprintf("malformed hex color %q", stop)}
			}
		}
	case KindFinalBlend:
		if p.BlendFactor < 0 || p.BlendFactor > 1 {
			return &ValidationError{Field: "blend_factor", Reason: fmt.Sprintf("%g outside [0,1]", p.BlendFactor)}
		}
	case KindSlopeRelief:
		if !p.Archaeological && p.LegacyMaxSlope <= 0 {
			return &ValidationError{Field: "legacy_max_slope", Reason: "must be positive in legacy mode"}
		}
	}
	return nil
}

// CanonicalParams renders the identity-relevant parameter subset for a kind
// as stable "key=value" pairs, sorted by key. This is the parameter half of
// the fingerprint encoding: fields a kind ignores never appear, so an
// irrelevant parameter change cannot invalidate a cached artifact.
func (s Spec) CanonicalParams() []string {
	var kv []string
	add := func(k, v string) { kv = append(kv, k+"="+v) }
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	switch s.Kind {
	case KindHillshade:
		add("azimuth", f(s.Params.Azimuth))
		add("altitude", f(s.Params.Altitude))
	case KindColorRelief:
		add("ramp", strings.Join(s.Params.RampStops, ","))
	case KindTintOverlay:
		add("ramp", strings.Join(s.Params.RampStops, ","))
	case KindSlopeRelief:
		add("archaeological", strconv.FormatBool(s.Params.Archaeological))
		if !s.Params.Archaeological {
			add("legacy_max_slope", f(s.Params.LegacyMaxSlope))
		}
	case KindFinalBlend:
		add("blend_factor", f(s.Params.BlendFactor))
		add("ramp", strings.Join(s.Params.RampStops, ","))
		add("archaeological", strconv.FormatBool(s.Params.Archaeological))
	}
	sort.Strings(kv)
	return kv
}

// Dependencies returns the Specs this product is derived from, in a fixed
// order. The graph shape is static per kind; only parameter values flow
// through from the requesting spec.
func (s Spec) Dependencies() []Spec {
	p := s.Params
	switch s.Kind {
	case KindElevation:
		return nil
	case KindHillshade, KindSlope, KindAspect, KindColorRelief:
		return []Spec{{Kind: KindElevation}}
	case KindComposite:
		deps := make([]Spec, 0, 3)
		for _, a := range CompositeAngles {
			hp := p
			hp.Azimuth = a.Azimuth
			hp.Altitude = a.Altitude
			deps = append(deps, Spec{Kind: KindHillshade, Params: hp})
		}
		return deps
	case KindSlopeRelief:
		return []Spec{{Kind: KindSlope, Params: p}}
	case KindTintOverlay:
		return []Spec{
			{Kind: KindColorRelief, Params: p},
			{Kind: KindComposite, Params: p},
		}
	case KindFinalBlend:
		return []Spec{
			{Kind: KindTintOverlay, Params: p},
			{Kind: KindSlopeRelief, Params: p},
		}
	}
	return nil
}

// ValidationError reports a malformed parameter, rejected at submission
// before any step node exists.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

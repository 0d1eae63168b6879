package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("nope")
	assert.Error(t, err)
}

func TestDisplayNamesCoverAllKinds(t *testing.T) {
	for _, k := range Kinds() {
		assert.NotEqual(t, k.String(), k.DisplayName(), "kind %s has no display name", k)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{"default final blend", Spec{Kind: KindFinalBlend, Params: DefaultParams()}, ""},
		{"blend factor too high", Spec{Kind: KindFinalBlend, Params: Params{BlendFactor: 1.5, RampStops: DefaultRampStops}}, "blend_factor"},
		{"blend factor negative", Spec{Kind: KindFinalBlend, Params: Params{BlendFactor: -0.1, RampStops: DefaultRampStops}}, "blend_factor"},
		{"azimuth out of range", Spec{Kind: KindHillshade, Params: Params{Azimuth: 400, Altitude: 30}}, "azimuth"},
		{"altitude zero", Spec{Kind: KindHillshade, Params: Params{Azimuth: 315}}, "altitude"},
		{"valid hillshade", Spec{Kind: KindHillshade, Params: Params{Azimuth: 315, Altitude: 30}}, ""},
		{"ramp too short", Spec{Kind: KindColorRelief, Params: Params{RampStops: []string{"#fff"}}}, "ramp_stops"},
		{"ramp bad hex", Spec{Kind: KindColorRelief, Params: Params{RampStops: []string{"#00ff00", "red"}}}, "ramp_stops"},
		{"ramp non-hex digits", Spec{Kind: KindColorRelief, Params: Params{RampStops: []string{"#zzzzzz", "#ffffff"}}}, "ramp_stops"},
		{"final blend bad ramp", Spec{Kind: KindFinalBlend, Params: Params{BlendFactor: 0.5, RampStops: []string{"#zzzzzz", "#ffffff"}, Archaeological: true}}, "ramp_stops"},
		{"final blend legacy without max", Spec{Kind: KindFinalBlend, Params: Params{BlendFactor: 0.5, RampStops: DefaultRampStops}}, "legacy_max_slope"},
		{"legacy without max", Spec{Kind: KindSlopeRelief, Params: Params{Archaeological: false}}, "legacy_max_slope"},
		{"unknown kind", Spec{Kind: Kind(99)}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantErr, ve.Field)
		})
	}
}

func TestCanonicalParamsIgnoresIrrelevantFields(t *testing.T) {
	a := Spec{Kind: KindHillshade, Params: Params{Azimuth: 315, Altitude: 30, BlendFactor: 0.5}}
	b := Spec{Kind: KindHillshade, Params: Params{Azimuth: 315, Altitude: 30, BlendFactor: 0.9}}
	assert.Equal(t, a.CanonicalParams(), b.CanonicalParams())

	c := Spec{Kind: KindHillshade, Params: Params{Azimuth: 45, Altitude: 30}}
	assert.NotEqual(t, a.CanonicalParams(), c.CanonicalParams())
}

func TestDependenciesShape(t *testing.T) {
	blend := Spec{Kind: KindFinalBlend, Params: DefaultParams()}
	deps := blend.Dependencies()
	require.Len(t, deps, 2)
	assert.Equal(t, KindTintOverlay, deps[0].Kind)
	assert.Equal(t, KindSlopeRelief, deps[1].Kind)

	comp := Spec{Kind: KindComposite, Params: DefaultParams()}
	cdeps := comp.Dependencies()
	require.Len(t, cdeps, 3)
	for i, a := range CompositeAngles {
		assert.Equal(t, KindHillshade, cdeps[i].Kind)
		assert.Equal(t, a.Azimuth, cdeps[i].Params.Azimuth)
		assert.Equal(t, a.Altitude, cdeps[i].Params.Altitude)
	}

	assert.Empty(t, Spec{Kind: KindElevation}.Dependencies())
	require.Len(t, Spec{Kind: KindSlopeRelief, Params: DefaultParams()}.Dependencies(), 1)
}

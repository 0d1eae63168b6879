// Package config loads the pipeline configuration from HCL. A config file
// is optional: every block has working defaults, and CLI flags override
// file values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/retry"
)

// Model is the decoded configuration.
type Model struct {
	Pipeline PipelineConfig `hcl:"pipeline,block"`
	Engine   EngineConfig   `hcl:"engine,block"`
	Retry    RetryConfig    `hcl:"retry,block"`
	Progress ProgressConfig `hcl:"progress,block"`
	Defaults DefaultsConfig `hcl:"defaults,block"`
}

// file mirrors Model with every block optional so a sparse file decodes.
type file struct {
	Pipeline *PipelineConfig `hcl:"pipeline,block"`
	Engine   *EngineConfig   `hcl:"engine,block"`
	Retry    *RetryConfig    `hcl:"retry,block"`
	Progress *ProgressConfig `hcl:"progress,block"`
	Defaults *DefaultsConfig `hcl:"defaults,block"`
}

// PipelineConfig bounds the worker pool and locates the artifact cache.
type PipelineConfig struct {
	Workers    int     `hcl:"workers,optional"`
	CacheDir   string  `hcl:"cache_dir,optional"`
	Resolution float64 `hcl:"resolution,optional"`
	CRS        string  `hcl:"crs,optional"`
}

// EngineConfig wires the external raster toolchain.
type EngineConfig struct {
	ScratchDir string   `hcl:"scratch_dir,optional"`
	Rasterize  []string `hcl:"rasterize,optional"`
	Hillshade  []string `hcl:"hillshade,optional"`
	Slope      []string `hcl:"slope,optional"`
	Aspect     []string `hcl:"aspect,optional"`
	Timeout    string   `hcl:"timeout,optional"`
}

// RetryConfig parameterizes the shared retry policy.
type RetryConfig struct {
	MaxAttempts int     `hcl:"max_attempts,optional"`
	BaseDelay   string  `hcl:"base_delay,optional"`
	Multiplier  float64 `hcl:"multiplier,optional"`
}

// ProgressConfig points the socket.io progress emitter at the UI bridge.
// An empty URL disables the transport.
type ProgressConfig struct {
	URL       string `hcl:"url,optional"`
	Namespace string `hcl:"namespace,optional"`
	Event     string `hcl:"event,optional"`
}

// DefaultsConfig supplies product parameters a submission omits.
type DefaultsConfig struct {
	BlendFactor    *float64 `hcl:"blend_factor,optional"`
	Archaeological *bool    `hcl:"archaeological,optional"`
	RampStops      []string `hcl:"ramp_stops,optional"`
	LegacyMaxSlope float64  `hcl:"legacy_max_slope,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Model {
	bf := product.DefaultBlendFactor
	arch := true
	return &Model{
		Pipeline: PipelineConfig{
			Workers:    4,
			CacheDir:   "artifacts",
			Resolution: 0.5,
			CRS:        "EPSG:32633",
		},
		Engine: EngineConfig{
			Rasterize: []string{"pdal_grid", "--input", "{input}", "--output", "{output}", "--resolution", "{resolution}"},
			Hillshade: []string{"gdaldem", "hillshade", "-az", "{azimuth}", "-alt", "{altitude}", "-of", "AAIGrid", "{input}", "{output}"},
			Slope:     []string{"gdaldem", "slope", "-of", "AAIGrid", "{input}", "{output}"},
			Aspect:    []string{"gdaldem", "aspect", "-of", "AAIGrid", "{input}", "{output}"},
			Timeout:   "10m",
		},
		Retry: RetryConfig{
			MaxAttempts: retry.Default.MaxAttempts,
			BaseDelay:   retry.Default.BaseDelay.String(),
			Multiplier:  retry.Default.Multiplier,
		},
		Progress: ProgressConfig{
			Namespace: "/pipeline",
			Event:     "job_progress",
		},
		Defaults: DefaultsConfig{
			BlendFactor:    &bf,
			Archaeological: &arch,
			RampStops:      append([]string(nil), product.DefaultRampStops...),
			LegacyMaxSlope: product.DefaultLegacyMaxSlope,
		},
	}
}

// Load reads and decodes an HCL file over the defaults. path may be empty.
func Load(path string) (*Model, error) {
	model := Default()
	if path == "" {
		return model, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return parse(model, path, src)
}

func parse(model *Model, filename string, src []byte) (*Model, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: %s", diags.Error())
	}

	var f file
	if diags := gohcl.DecodeBody(hclFile.Body, evalContext(), &f); diags.HasErrors() {
		return nil, fmt.Errorf("config: %s", diags.Error())
	}

	if f.Pipeline != nil {
		merge(&model.Pipeline.Workers, f.Pipeline.Workers)
		mergeStr(&model.Pipeline.CacheDir, f.Pipeline.CacheDir)
		mergeF(&model.Pipeline.Resolution, f.Pipeline.Resolution)
		mergeStr(&model.Pipeline.CRS, f.Pipeline.CRS)
	}
	if f.Engine != nil {
		mergeStr(&model.Engine.ScratchDir, f.Engine.ScratchDir)
		mergeSlice(&model.Engine.Rasterize, f.Engine.Rasterize)
		mergeSlice(&model.Engine.Hillshade, f.Engine.Hillshade)
		mergeSlice(&model.Engine.Slope, f.Engine.Slope)
		mergeSlice(&model.Engine.Aspect, f.Engine.Aspect)
		mergeStr(&model.Engine.Timeout, f.Engine.Timeout)
	}
	if f.Retry != nil {
		merge(&model.Retry.MaxAttempts, f.Retry.MaxAttempts)
		mergeStr(&model.Retry.BaseDelay, f.Retry.BaseDelay)
		mergeF(&model.Retry.Multiplier, f.Retry.Multiplier)
	}
	if f.Progress != nil {
		mergeStr(&model.Progress.URL, f.Progress.URL)
		mergeStr(&model.Progress.Namespace, f.Progress.Namespace)
		mergeStr(&model.Progress.Event, f.Progress.Event)
	}
	if f.Defaults != nil {
		if f.Defaults.BlendFactor != nil {
			model.Defaults.BlendFactor = f.Defaults.BlendFactor
		}
		if f.Defaults.Archaeological != nil {
			model.Defaults.Archaeological = f.Defaults.Archaeological
		}
		mergeSlice(&model.Defaults.RampStops, f.Defaults.RampStops)
		mergeF(&model.Defaults.LegacyMaxSlope, f.Defaults.LegacyMaxSlope)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// evalContext exposes process environment variables to config expressions
// as env.NAME, so paths like cache_dir = "${env.HOME}/artifacts" work.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = cty.StringVal(kv[i+1:])
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func merge(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeF(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func mergeStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (m *Model) Validate() error {
	if m.Pipeline.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", m.Pipeline.Workers)
	}
	if m.Pipeline.Resolution <= 0 {
		return fmt.Errorf("config: resolution must be positive, got %g", m.Pipeline.Resolution)
	}
	if _, err := m.EngineTimeout(); err != nil {
		return err
	}
	if _, err := m.RetryPolicy(); err != nil {
		return err
	}
	if bf := m.Defaults.BlendFactor; bf != nil && (*bf < 0 || *bf > 1) {
		return fmt.Errorf("config: blend_factor %g outside [0,1]", *bf)
	}
	return nil
}

// EngineTimeout parses the external-tool timeout.
func (m *Model) EngineTimeout() (time.Duration, error) {
	if m.Engine.Timeout == "" {
		return 10 * time.Minute, nil
	}
	d, err := time.ParseDuration(m.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: engine timeout: %w", err)
	}
	return d, nil
}

// RetryPolicy materializes the configured retry policy.
func (m *Model) RetryPolicy() (retry.Policy, error) {
	p := retry.Default
	if m.Retry.MaxAttempts > 0 {
		p.MaxAttempts = m.Retry.MaxAttempts
	}
	if m.Retry.BaseDelay != "" {
		d, err := time.ParseDuration(m.Retry.BaseDelay)
		if err != nil {
			return retry.Policy{}, fmt.Errorf("config: retry base_delay: %w", err)
		}
		p.BaseDelay = d
	}
	if m.Retry.Multiplier > 0 {
		p.Multiplier = m.Retry.Multiplier
	}
	return p, nil
}

// ProductDefaults materializes the default product parameters.
func (m *Model) ProductDefaults() product.Params {
	p := product.DefaultParams()
	if m.Defaults.BlendFactor != nil {
		p.BlendFactor = *m.Defaults.BlendFactor
	}
	if m.Defaults.Archaeological != nil {
		p.Archaeological = *m.Defaults.Archaeological
	}
	if len(m.Defaults.RampStops) > 0 {
		p.RampStops = append([]string(nil), m.Defaults.RampStops...)
	}
	if m.Defaults.LegacyMaxSlope > 0 {
		p.LegacyMaxSlope = m.Defaults.LegacyMaxSlope
	}
	return p
}

package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// InputPath is the point cloud to derive from. Required in batch mode.
	InputPath string
	// Products are the product kinds to request in batch mode.
	Products []string
	// ConfigPath points at an optional HCL configuration file.
	ConfigPath string

	// ServeAddr switches the process into server mode when non-empty.
	ServeAddr string

	LogFormat string
	LogLevel  string

	// Overrides for file configuration. Zero values mean "use the file".
	CacheDir    string
	Workers     int
	ProgressURL string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" && cfg.ServeAddr == "" {
		return nil, errors.New("an input path is required unless running in serve mode")
	}
	if len(cfg.Products) == 0 {
		cfg.Products = []string{"final_blend"}
	}
	return &cfg, nil
}

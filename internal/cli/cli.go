// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("reliefpipe", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
reliefpipe - derives relief visualization rasters from LiDAR point clouds.

Usage:
  reliefpipe [options] [INPUT_PATH]

Arguments:
  INPUT_PATH
    Path to the point cloud file to process (batch mode).

Options:
`)
		flagSet.PrintDefaults()
	}

	inputFlag := flagSet.String("input", "", "Path to the point cloud file.")
	iFlag := flagSet.String("i", "", "Path to the point cloud file (shorthand).")
	productsFlag := flagSet.String("products", "final_blend", "Comma-separated product kinds to derive.")
	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Artifact cache directory. Overrides the config file.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent pipeline workers. 0 uses the config file value.")
	serveFlag := flagSet.String("serve", "", "Listen address for the HTTP API (e.g. ':8080'). Empty runs batch mode.")
	progressFlag := flagSet.String("progress-url", "", "socket.io URL for progress streaming. Overrides the config file.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *inputFlag != "" {
		path = *inputFlag
	} else if *iFlag != "" {
		path = *iFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Input path determined.", "path", path)

	if path == "" && *serveFlag == "" {
		slog.Debug("No input path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	var products []string
	for _, p := range strings.Split(*productsFlag, ",") {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		InputPath:   path,
		Products:    products,
		ConfigPath:  *configFlag,
		ServeAddr:   *serveFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		CacheDir:    *cacheDirFlag,
		Workers:     *workersFlag,
		ProgressURL: *progressFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/defermod/internal/app"
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

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("defermod", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
DeferMod - a module graph engine with deferred evaluation.

Usage:
  defermod [options] ENTRY_SPECIFIER

Arguments:
  ENTRY_SPECIFIER
    Specifier of the entry module, relative to the modules root
    (e.g. "main" for <root>/main.hcl).

Options:
`)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("modules-root", ".", "Directory indexed for .hcl module files.")
	mFlag := flagSet.String("m", "", "Directory indexed for .hcl module files (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	otelFlag := flagSet.String("otel-endpoint", "", "OTLP gRPC endpoint for trace export. Empty disables tracing.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No entry specifier provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	entry := flagSet.Arg(0)

	root := *rootFlag
	if *mFlag != "" {
		root = *mFlag
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
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		EntrySpecifier: entry,
		ModulesRoot:    root,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		OtelEndpoint:   *otelFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "entry", config.EntrySpecifier, "root", config.ModulesRoot)
	return config, false, nil
}

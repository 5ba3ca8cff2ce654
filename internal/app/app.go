package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/defermod/internal/engine"
	"github.com/vk/defermod/internal/source"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	engine *engine.Engine
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger. A failure to
// index the modules root is a fatal startup error and panics; the CLI
// entrypoint recovers it into a clean exit.
func NewApp(outW io.Writer, errW io.Writer, cfg *Config, funcs map[string]function.Function) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	provider, err := source.NewFSProvider(cfg.ModulesRoot)
	if err != nil {
		panic(fmt.Errorf("failed to index modules root: %w", err))
	}
	logger.Debug("Modules root indexed.", "root", cfg.ModulesRoot, "modules_found", provider.Len())

	return &App{
		outW:   outW,
		logger: logger,
		engine: engine.New(provider, engine.WithFunctions(funcs)),
	}
}

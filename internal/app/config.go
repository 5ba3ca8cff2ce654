package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// EntrySpecifier is the module the graph is rooted at.
	EntrySpecifier string
	// ModulesRoot is the directory indexed for .hcl module files.
	ModulesRoot string

	LogFormat    string
	LogLevel     string
	OtelEndpoint string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.EntrySpecifier == "" {
		return nil, errors.New("EntrySpecifier is a required configuration field and cannot be empty")
	}
	if cfg.ModulesRoot == "" {
		cfg.ModulesRoot = "."
	}
	return &cfg, nil
}

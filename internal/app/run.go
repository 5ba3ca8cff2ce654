package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/defermod/internal/ctxlog"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "entry", cfg.EntrySpecifier)

	result, err := a.engine.Run(ctx, cfg.EntrySpecifier)
	if err != nil {
		return fmt.Errorf("failed to run module graph: %w", err)
	}

	names := make([]string, 0, len(result.Bindings))
	for name := range result.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(a.outW, "entry %s\n", result.Entry)
	for _, name := range names {
		fmt.Fprintf(a.outW, "  %s = %s\n", name, formatValue(result.Bindings[name]))
	}
	for _, site := range result.Deferred {
		// A defer.<local> reference during the eager walk may already have
		// resolved the site's target.
		state := "unevaluated"
		if site.Namespace.Resolved() {
			state = "evaluated"
		}
		fmt.Fprintf(a.outW, "deferred %s (as %q in %s, %s)\n", site.Target, site.LocalName, site.Importer, state)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// formatValue renders a binding value for CLI output.
func formatValue(v cty.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.GoString()
	}
}

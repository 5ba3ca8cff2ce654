package loader

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/vk/defermod/internal/ctxlog"
	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/parser"
	"github.com/vk/defermod/internal/source"
)

// Loader materializes module graphs: it resolves every import edge starting
// at an entry specifier, parses each module exactly once, and links the
// resulting records into an immutable Graph. It never evaluates anything.
type Loader struct {
	provider source.Provider
}

// New creates a Loader backed by the given source provider.
func New(provider source.Provider) *Loader {
	return &Loader{provider: provider}
}

// Load resolves, parses, and links the full graph reachable from
// entrySpecifier. Eager and deferred imports are loaded alike: the whole
// graph must be present before any module is evaluated. Any failure -
// unresolvable specifier, malformed source, or an import cycle - aborts the
// load and surfaces as *GraphLoadError; no partial graph escapes.
func (l *Loader) Load(ctx context.Context, entrySpecifier string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	entry := canonicalize("", entrySpecifier)
	logger.Debug("Load: starting graph load.", "entry", entry)

	g := &Graph{entry: entry, records: make(map[string]*module.Record)}
	if err := l.visit(ctx, g, entry, ""); err != nil {
		return nil, &GraphLoadError{Entry: entry, Err: err}
	}
	logger.Debug("Load: all modules parsed.", "module_count", len(g.records))

	if err := detectCycles(g); err != nil {
		return nil, &GraphLoadError{Entry: entry, Err: err}
	}
	logger.Debug("Load: cycle detection passed.")

	computeAsyncClosures(g)

	// Publish the loaded state last, so a record is never observable as
	// Loaded while its graph is still incomplete.
	for _, rec := range g.records {
		rec.MarkLoaded()
	}
	logger.Debug("Load: graph load complete.", "entry", entry, "module_count", len(g.records))
	return g, nil
}

// visit fetches, parses, and records one module, then recurses into every
// import edge, deferred ones included. Records are deduplicated by canonical
// specifier, so a module shared by several importers is parsed once.
func (l *Loader) visit(ctx context.Context, g *Graph, specifier, importer string) error {
	if _, ok := g.records[specifier]; ok {
		return nil
	}

	src, err := l.provider.Source(ctx, specifier)
	if err != nil {
		return &ResolutionError{Specifier: specifier, Importer: importer, Err: err}
	}

	rec, err := parser.Parse(specifier, src)
	if err != nil {
		return err
	}
	g.records[specifier] = rec

	for i := range rec.Imports {
		entry := &rec.Imports[i]
		entry.Resolved = canonicalize(specifier, entry.Source)
		if err := l.visit(ctx, g, entry.Resolved, specifier); err != nil {
			return err
		}
	}
	return nil
}

// canonicalize resolves a specifier as written in a module file against the
// specifier of the importing module. Relative specifiers ("./x", "../y")
// resolve against the importer's directory; anything else is already
// canonical apart from cleaning.
func canonicalize(importer, specifier string) string {
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		return path.Join(path.Dir(importer), specifier)
	}
	return path.Clean(specifier)
}

// detectCycles checks the import graph for cycles using depth-first search
// with three node sets: permanently cleared nodes, nodes on the current
// recursion stack, and everything else. Deferred edges participate like any
// other edge; a cycle makes the graph unloadable regardless of how it would
// be evaluated.
func detectCycles(g *Graph) error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(rec *module.Record) error
	visit = func(rec *module.Record) error {
		if permanent[rec.Specifier] {
			return nil
		}
		if temporary[rec.Specifier] {
			return fmt.Errorf("import cycle detected involving module %q", rec.Specifier)
		}

		temporary[rec.Specifier] = true
		for _, entry := range rec.Imports {
			dep := g.records[entry.Resolved]
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, rec.Specifier)
		permanent[rec.Specifier] = true
		return nil
	}

	for _, rec := range g.Records() {
		if err := visit(rec); err != nil {
			return err
		}
	}
	return nil
}

// computeAsyncClosures marks every record whose evaluation would require
// asynchronous suspension: the record itself is async, or an async module is
// reachable from it through eager edges only. Deferred edges stop the
// traversal because a deferred target has its own, separate trigger. The
// result also names the offending module so a rejected access can report it.
func computeAsyncClosures(g *Graph) {
	memo := make(map[string]string) // specifier -> async cause ("" = none)

	var closure func(rec *module.Record) string
	closure = func(rec *module.Record) string {
		if cause, ok := memo[rec.Specifier]; ok {
			return cause
		}
		// Pre-seed so an eager diamond does not recompute; cycles cannot
		// occur here because the graph is already acyclic.
		memo[rec.Specifier] = ""
		if rec.Async {
			memo[rec.Specifier] = rec.Specifier
			return rec.Specifier
		}
		for _, entry := range rec.Imports {
			if entry.Deferred {
				continue
			}
			if cause := closure(g.records[entry.Resolved]); cause != "" {
				memo[rec.Specifier] = cause
				return cause
			}
		}
		return ""
	}

	for _, rec := range g.records {
		cause := closure(rec)
		rec.AsyncClosure = cause != ""
		rec.AsyncCause = cause
	}
}

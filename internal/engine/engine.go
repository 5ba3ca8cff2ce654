// Package engine ties loading and evaluation together: it materializes the
// full module graph, evaluates everything eagerly reachable from the entry,
// and registers each deferred import site as an independent top-level
// execution node, triggered later by export access.
package engine

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty/function"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vk/defermod/internal/ctxlog"
	"github.com/vk/defermod/internal/eval"
	"github.com/vk/defermod/internal/loader"
	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/namespace"
	"github.com/vk/defermod/internal/source"
)

// Engine runs module graphs end to end.
type Engine struct {
	loader *loader.Loader
	funcs  map[string]function.Function
	tracer trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithFunctions supplies host functions to every graph the engine runs.
func WithFunctions(funcs map[string]function.Function) Option {
	return func(e *Engine) {
		e.funcs = funcs
	}
}

// New creates an Engine reading module source from the given provider.
func New(provider source.Provider, opts ...Option) *Engine {
	e := &Engine{
		loader: loader.New(provider),
		tracer: otel.Tracer("defermod/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Site is one deferred import site: a top-level execution node registered
// when the graph finishes loading, analogous to a dynamic import's execution
// node except that its trigger is synchronous export access.
type Site struct {
	// Importer is the module containing the deferred import declaration.
	Importer string
	// LocalName is the name the namespace is bound to inside the importer.
	LocalName string
	// Target is the canonical specifier of the deferred module.
	Target string
	// Namespace is the shared deferred namespace for the target.
	Namespace *namespace.Deferred
}

// Result is the outcome of running a graph: the entry module's bindings plus
// the registry of deferred sites still waiting for their first access.
type Result struct {
	Entry    string
	Bindings module.Bindings
	Deferred []Site

	graph *loader.Graph
}

// Namespace returns the deferred namespace for a target specifier, when the
// graph contains a deferred import of it.
func (r *Result) Namespace(target string) (*namespace.Deferred, bool) {
	for _, site := range r.Deferred {
		if site.Target == target {
			return site.Namespace, true
		}
	}
	return nil, false
}

// Graph exposes the loaded graph, primarily for inspection in tests and
// embedders.
func (r *Result) Graph() *loader.Graph {
	return r.graph
}

// Run loads the full graph rooted at entrySpecifier and evaluates its eager
// portion. Loading is all-or-nothing; nothing evaluates unless every module,
// deferred targets included, loaded successfully. Deferred targets are
// skipped by the eager walk and registered as sites instead.
func (e *Engine) Run(ctx context.Context, entrySpecifier string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	ctx, loadSpan := e.tracer.Start(ctx, "graph.load",
		trace.WithAttributes(attribute.String("module.entry", entrySpecifier)))
	graph, err := e.loader.Load(ctx, entrySpecifier)
	loadSpan.End()
	if err != nil {
		return nil, err
	}
	logger.Info("Module graph loaded.", "entry", graph.Entry(), "modules", graph.Len())

	evaluator := eval.New(graph, eval.WithFunctions(e.funcs))

	// Register deferred sites before anything runs: namespaces exist from
	// the moment the graph finishes loading, whether or not their importer
	// ever evaluates.
	var sites []Site
	for _, rec := range graph.Records() {
		for _, entry := range rec.Imports {
			if !entry.Deferred {
				continue
			}
			target, _ := graph.Record(entry.Resolved)
			sites = append(sites, Site{
				Importer:  rec.Specifier,
				LocalName: entry.LocalName,
				Target:    entry.Resolved,
				Namespace: evaluator.Namespace(target),
			})
		}
	}
	logger.Debug("Deferred import sites registered.", "count", len(sites))

	entry, ok := graph.Record(graph.Entry())
	if !ok {
		return nil, fmt.Errorf("entry module %q missing from its own graph", graph.Entry())
	}

	ctx, evalSpan := e.tracer.Start(ctx, "graph.evaluate",
		trace.WithAttributes(attribute.String("module.entry", graph.Entry())))
	bindings, err := evaluator.Evaluate(ctx, entry)
	evalSpan.End()
	if err != nil {
		return nil, err
	}
	logger.Info("Eager evaluation finished.", "entry", graph.Entry(), "exports", len(bindings))

	return &Result{
		Entry:    graph.Entry(),
		Bindings: bindings,
		Deferred: sites,
		graph:    graph,
	}, nil
}

package eval

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty/function"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vk/defermod/internal/ctxlog"
	"github.com/vk/defermod/internal/loader"
	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/namespace"
)

// Evaluator executes module bodies against a fully loaded graph. Evaluation
// is synchronous, run-to-completion, and idempotent per record: a body runs
// at most once, and both its bindings and its failure are cached forever on
// the record.
type Evaluator struct {
	graph      *loader.Graph
	funcs      map[string]function.Function
	namespaces map[string]*namespace.Deferred
	tracer     trace.Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFunctions adds host functions to the function table available inside
// module bodies. Host entries override defaults with the same name.
func WithFunctions(funcs map[string]function.Function) Option {
	return func(e *Evaluator) {
		for name, fn := range funcs {
			e.funcs[name] = fn
		}
	}
}

// New creates an Evaluator over the given graph.
func New(g *loader.Graph, opts ...Option) *Evaluator {
	e := &Evaluator{
		graph:      g,
		funcs:      defaultFunctions(),
		namespaces: make(map[string]*namespace.Deferred),
		tracer:     otel.Tracer("defermod/eval"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the module body and returns its export bindings. Terminal
// states short-circuit: an Evaluated record returns its cached bindings, an
// Errored record re-returns its recorded error. A record already Evaluating
// means the trigger re-entered a running body, which is a programmer fault.
//
// This is the asynchronous-capable path used by the orchestrator's eager
// walk; it does not reject async modules. Deferred accesses go through
// EvaluateSync instead.
func (e *Evaluator) Evaluate(ctx context.Context, rec *module.Record) (module.Bindings, error) {
	switch rec.State() {
	case module.StateEvaluated:
		return rec.Bindings(), nil
	case module.StateErrored:
		return nil, rec.Err()
	case module.StateEvaluating:
		return nil, &ReentrantEvaluationError{Specifier: rec.Specifier}
	case module.StateUnlinked:
		return nil, fmt.Errorf("module %q evaluated before its graph finished loading", rec.Specifier)
	}

	if !rec.BeginEvaluation() {
		// Lost the state transition; re-dispatch on whatever state won.
		return e.Evaluate(ctx, rec)
	}

	ctx, span := e.tracer.Start(ctx, "module.evaluate",
		trace.WithAttributes(attribute.String("module.specifier", rec.Specifier)))
	defer span.End()

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluate: executing module body.", "module", rec.Specifier)

	bindings, err := e.executeBody(ctx, rec)
	if err != nil {
		evalErr := &EvaluationError{Specifier: rec.Specifier, Err: err}
		rec.Fail(evalErr)
		logger.Debug("Evaluate: module body failed.", "module", rec.Specifier, "error", err)
		return nil, evalErr
	}

	rec.Complete(bindings)
	logger.Debug("Evaluate: module evaluated.", "module", rec.Specifier, "export_count", len(bindings))
	return bindings, nil
}

// EvaluateSync is the trigger used by deferred namespace access. The calling
// context is assumed synchronous and cannot suspend, so a target whose async
// closure is set is rejected up front - before any part of its body or its
// eager dependencies executes. The rejection only applies to records that
// still have a body to run: a record the async-capable eager walk already
// finished keeps its normal terminal behavior, cached bindings or the
// recorded error, and a record mid-evaluation is still a re-entrancy fault.
func (e *Evaluator) EvaluateSync(ctx context.Context, rec *module.Record) (module.Bindings, error) {
	if rec.AsyncClosure && rec.State() == module.StateLoaded {
		return nil, &AsyncEvaluationError{Specifier: rec.Specifier, Cause: rec.AsyncCause}
	}
	return e.Evaluate(ctx, rec)
}

// Namespace returns the deferred namespace for a record, minting it on first
// request. There is exactly one namespace per deferred target; every import
// site deferring to the same module shares it.
func (e *Evaluator) Namespace(rec *module.Record) *namespace.Deferred {
	if ns, ok := e.namespaces[rec.Specifier]; ok {
		return ns
	}
	ns := namespace.New(rec, func(ctx context.Context) (module.Bindings, error) {
		ctx, span := e.tracer.Start(ctx, "namespace.resolve",
			trace.WithAttributes(attribute.String("module.specifier", rec.Specifier)))
		defer span.End()
		return e.EvaluateSync(ctx, rec)
	})
	e.namespaces[rec.Specifier] = ns
	return ns
}

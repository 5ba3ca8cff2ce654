// Package module defines the Record entity: one parsed module, its import
// and export entries, and its evaluation state. Records are created and owned
// by the loader's graph; the evaluator and deferred namespaces only hold
// references to them.
package module

import (
	"sync/atomic"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Bindings maps exported names to their evaluated values.
type Bindings map[string]cty.Value

// ImportEntry is one import declaration of a module, in declaration order.
type ImportEntry struct {
	// LocalName is the name the namespace is bound to inside the module body.
	LocalName string
	// Source is the specifier as written in the module file (possibly relative).
	Source string
	// Resolved is the canonical specifier, filled in by the loader.
	Resolved string
	// Deferred marks an import whose target must not be evaluated until one
	// of its exports is accessed.
	Deferred bool
}

// ExportEntry is one export declaration of a module, in declaration order.
type ExportEntry struct {
	Name  string
	Value hcl.Expression
}

// Record is a single vertex in the module graph. Its state advances
// monotonically: Unlinked -> Loaded -> Evaluating -> Evaluated | Errored.
// Evaluated and Errored are terminal.
type Record struct {
	// Specifier is the canonical identifier of the module, stable for the
	// lifetime of the graph.
	Specifier string
	// Imports and Exports preserve declaration order; evaluation order
	// depends on it.
	Imports []ImportEntry
	Exports []ExportEntry
	// Async is true when the module was parsed with the async marker set,
	// meaning its body requires asynchronous suspension to run.
	Async bool
	// AsyncClosure is true when this module, or any dependency reachable
	// through eager edges only, is async. Computed once by the loader.
	AsyncClosure bool
	// AsyncCause names the module responsible for AsyncClosure being true.
	AsyncCause string

	// state is managed atomically so namespace readers never observe a torn
	// transition. bindings and evalErr are written exactly once, before the
	// corresponding terminal state is published.
	state    atomic.Int32
	bindings Bindings
	evalErr  error
}

// State represents the lifecycle position of a record.
type State int32

const (
	// StateUnlinked is the zero state: the record exists but its import
	// edges are not yet wired to other records.
	StateUnlinked State = iota
	// StateLoaded means the record and its whole graph finished loading;
	// the record is ready to be evaluated.
	StateLoaded
	// StateEvaluating means the module body is currently executing.
	StateEvaluating
	// StateEvaluated means the body ran to completion and bindings are
	// cached forever.
	StateEvaluated
	// StateErrored means the body failed; the error is cached forever and
	// re-surfaced on every later evaluation attempt.
	StateErrored
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnlinked:
		return "unlinked"
	case StateLoaded:
		return "loaded"
	case StateEvaluating:
		return "evaluating"
	case StateEvaluated:
		return "evaluated"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// State atomically retrieves the record's lifecycle state.
func (r *Record) State() State {
	return State(r.state.Load())
}

// MarkLoaded transitions the record from Unlinked to Loaded. It reports
// whether the transition happened, so a double load is detectable.
func (r *Record) MarkLoaded() bool {
	return r.state.CompareAndSwap(int32(StateUnlinked), int32(StateLoaded))
}

// BeginEvaluation transitions the record from Loaded to Evaluating. It
// reports false when the record is not in Loaded state, which callers treat
// as either a cache hit (terminal states) or a re-entrant trigger.
func (r *Record) BeginEvaluation() bool {
	return r.state.CompareAndSwap(int32(StateLoaded), int32(StateEvaluating))
}

// Complete publishes the bindings and moves the record to its Evaluated
// terminal state. Must only be called by the evaluator that owns the
// Evaluating transition.
func (r *Record) Complete(b Bindings) {
	r.bindings = b
	r.state.Store(int32(StateEvaluated))
}

// Fail records the evaluation error and moves the record to its Errored
// terminal state. The record is permanently poisoned.
func (r *Record) Fail(err error) {
	r.evalErr = err
	r.state.Store(int32(StateErrored))
}

// Bindings returns the cached export bindings. Only valid once the record is
// Evaluated.
func (r *Record) Bindings() Bindings {
	return r.bindings
}

// Err returns the recorded evaluation error. Only valid once the record is
// Errored.
func (r *Record) Err() error {
	return r.evalErr
}

// Import returns the import entry bound to the given local name.
func (r *Record) Import(localName string) (ImportEntry, bool) {
	for _, entry := range r.Imports {
		if entry.LocalName == localName {
			return entry, true
		}
	}
	return ImportEntry{}, false
}

// ExportNames returns the exported names in declaration order.
func (r *Record) ExportNames() []string {
	names := make([]string, 0, len(r.Exports))
	for _, entry := range r.Exports {
		names = append(names, entry.Name)
	}
	return names
}

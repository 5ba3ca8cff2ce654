// Package loader materializes complete module graphs before any evaluation
// happens.
//
// The load phase is the only phase allowed to touch external sources. It
// resolves every import edge reachable from the entry specifier - eager and
// deferred alike - parses each module exactly once, links import entries to
// their target records, rejects cycles, and precomputes each record's async
// closure. The returned Graph is immutable from then on: the loader is its
// sole writer, so the evaluator and deferred namespaces read it without
// locks.
//
// Loading is all-or-nothing. A single unresolvable specifier, parse failure,
// or cycle aborts the entire load with *GraphLoadError; no partially loaded
// graph is ever handed to the evaluator.
package loader

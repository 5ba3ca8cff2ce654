// Package eval executes module bodies against a fully loaded graph.
//
// Evaluation follows static module semantics: a module's eager dependencies
// run first, depth-first in declaration order, then its own export
// expressions run in declaration order. Deferred imports never run here;
// they bind to deferred namespaces, and only an actual reference to one of
// their exports triggers the target - synchronously, through EvaluateSync,
// which rejects targets whose eager dependency closure requires asynchronous
// suspension.
//
// Idempotence is the concurrency model: a body runs at most once, success
// caches bindings forever, failure poisons the record forever, and a trigger
// that re-enters a running body is reported as a fault rather than re-run.
package eval

// Package namespace provides the deferred module namespace: the object a
// deferred import binds to instead of the target's evaluated exports.
//
// A Deferred is a lazily-initialized cell. The first export access resolves
// the wrapped module through an injected resolve capability; on success the
// bindings are cached and every later access is a plain map read. Failures
// are not cached here - the module record itself remembers terminal failures,
// so re-surfacing them identically is the resolver's job.
package namespace

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/defermod/internal/module"
)

// ResolveFunc evaluates the wrapped module and returns its bindings. It is
// injected by the evaluator so this package needs no knowledge of evaluation
// order, async checks, or re-entrancy rules.
type ResolveFunc func(ctx context.Context) (module.Bindings, error)

// Deferred wraps exactly one module record. It is created once per deferred
// import target when the graph finishes loading and shared by every import
// site that defers to the same module.
type Deferred struct {
	record  *module.Record
	resolve ResolveFunc

	mu       sync.Mutex
	resolved bool
	bindings module.Bindings
}

// New creates a deferred namespace over the given record.
func New(rec *module.Record, resolve ResolveFunc) *Deferred {
	return &Deferred{record: rec, resolve: resolve}
}

// Specifier returns the canonical specifier of the wrapped module.
func (d *Deferred) Specifier() string {
	return d.record.Specifier
}

// Resolved reports whether the wrapped module's bindings are already cached.
func (d *Deferred) Resolved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolved
}

// ExportNames returns the names this namespace exposes, in declaration
// order. Available without triggering evaluation: names come from the parse,
// values do not.
func (d *Deferred) ExportNames() []string {
	return d.record.ExportNames()
}

// Resolve returns the wrapped module's bindings, evaluating it on first use.
// The resolve capability runs outside the lock: resolution may recurse back
// into this namespace (a re-entrant access during the module's own body),
// and that fault must surface as an error from the resolver, not as a
// deadlock here.
func (d *Deferred) Resolve(ctx context.Context) (module.Bindings, error) {
	d.mu.Lock()
	if d.resolved {
		b := d.bindings
		d.mu.Unlock()
		return b, nil
	}
	d.mu.Unlock()

	bindings, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if !d.resolved {
		d.resolved = true
		d.bindings = bindings
	}
	bindings = d.bindings
	d.mu.Unlock()
	return bindings, nil
}

// Get returns the value of one export, evaluating the wrapped module on the
// first access to any of its exports.
func (d *Deferred) Get(ctx context.Context, name string) (cty.Value, error) {
	bindings, err := d.Resolve(ctx)
	if err != nil {
		return cty.NilVal, err
	}
	val, ok := bindings[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("module %q has no export %q", d.record.Specifier, name)
	}
	return val, nil
}

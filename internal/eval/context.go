package eval

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/namespace"
)

// executeBody runs one module body: eager dependencies first, in declaration
// order (static evaluation order), then the export expressions, also in
// declaration order. Deferred imports are bound to namespaces instead of
// being evaluated; a namespace's target only runs when an export expression
// actually references it.
func (e *Evaluator) executeBody(ctx context.Context, rec *module.Record) (module.Bindings, error) {
	eager := make(map[string]cty.Value)
	deferred := make(map[string]*namespace.Deferred)

	for _, entry := range rec.Imports {
		dep, ok := e.graph.Record(entry.Resolved)
		if !ok {
			return nil, fmt.Errorf("import %q is not part of the loaded graph", entry.Resolved)
		}
		if entry.Deferred {
			deferred[entry.LocalName] = e.Namespace(dep)
			continue
		}
		bindings, err := e.Evaluate(ctx, dep)
		if err != nil {
			return nil, err
		}
		eager[entry.LocalName] = namespaceVal(bindings)
	}

	bindings := make(module.Bindings, len(rec.Exports))
	resolvedDefer := make(map[string]cty.Value)
	for _, exp := range rec.Exports {
		if err := e.resolveDeferredRefs(ctx, exp.Value, deferred, resolvedDefer); err != nil {
			return nil, fmt.Errorf("export %q: %w", exp.Name, err)
		}
		val, diags := exp.Value.Value(evalContext(eager, resolvedDefer, e.funcs))
		if diags.HasErrors() {
			return nil, fmt.Errorf("export %q: %s", exp.Name, diags.Error())
		}
		bindings[exp.Name] = val
	}
	return bindings, nil
}

// resolveDeferredRefs scans an export expression for traversals rooted at
// the deferred namespace root and resolves each referenced namespace before
// the expression evaluates. This is the in-language access trigger: touching
// defer.<local>.<name> is what makes the target module run, and any failure
// (async rejection, re-entrancy, a poisoned record) surfaces right here, at
// the access site.
func (e *Evaluator) resolveDeferredRefs(ctx context.Context, expr hcl.Expression, deferred map[string]*namespace.Deferred, resolved map[string]cty.Value) error {
	for _, trav := range expr.Variables() {
		if trav.RootName() != deferRoot {
			continue
		}
		if len(trav) < 2 {
			return fmt.Errorf("a deferred reference must name an import, e.g. %s.lib.value", deferRoot)
		}
		attr, ok := trav[1].(hcl.TraverseAttr)
		if !ok {
			return fmt.Errorf("a deferred reference must name an import with attribute syntax")
		}
		local := attr.Name
		if _, done := resolved[local]; done {
			continue
		}
		ns, ok := deferred[local]
		if !ok {
			return fmt.Errorf("no deferred import named %q", local)
		}
		bindings, err := ns.Resolve(ctx)
		if err != nil {
			return err
		}
		resolved[local] = namespaceVal(bindings)
	}
	return nil
}

// Variable roots available inside module bodies.
const (
	importRoot = "import"
	deferRoot  = "defer"
)

// evalContext assembles the HCL evaluation context for one export
// expression: eager namespaces under the import root, already-resolved
// deferred namespaces under the defer root, plus the function table.
func evalContext(eager, deferredVals map[string]cty.Value, funcs map[string]function.Function) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			importRoot: objectVal(eager),
			deferRoot:  objectVal(deferredVals),
		},
		Functions: funcs,
	}
}

// namespaceVal converts a module's bindings into the object value its
// importers see.
func namespaceVal(bindings module.Bindings) cty.Value {
	return objectVal(map[string]cty.Value(bindings))
}

func objectVal(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}

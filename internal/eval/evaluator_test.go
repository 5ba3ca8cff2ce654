package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/defermod/internal/loader"
	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/source"
)

// countingFunc returns a zero-argument "compute" function that counts its
// invocations; calling it stands in for a module body's side effects.
func countingFunc(calls *int) function.Function {
	return function.New(&function.Spec{
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			*calls++
			return cty.NumberIntVal(42), nil
		},
	})
}

// failingFunc returns a function that always fails evaluation.
func failingFunc() function.Function {
	return function.New(&function.Spec{
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.NilVal, assert.AnError
		},
	})
}

func mustLoad(t *testing.T, provider source.MapProvider, entry string) *loader.Graph {
	t.Helper()
	g, err := loader.New(provider).Load(context.Background(), entry)
	require.NoError(t, err)
	return g
}

func TestEvaluate_Idempotent(t *testing.T) {
	// --- Arrange ---
	calls := 0
	g := mustLoad(t, source.MapProvider{
		"lib": `export "value" { value = compute() }`,
	}, "lib")
	e := New(g, WithFunctions(map[string]function.Function{"compute": countingFunc(&calls)}))
	rec, _ := g.Record("lib")

	// --- Act ---
	first, err1 := e.Evaluate(context.Background(), rec)
	second, err2 := e.Evaluate(context.Background(), rec)

	// --- Assert ---
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, 1, calls, "module body must execute exactly once")
	assert.Equal(t, first, second)
	assert.True(t, first["value"].RawEquals(cty.NumberIntVal(42)))
	assert.Equal(t, module.StateEvaluated, rec.State())
}

func TestEvaluate_EagerDependenciesFirst(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"main": `
			import "helper" { from = "./helper" }
			export "shout" { value = upper(import.helper.greeting) }
		`,
		"helper": `export "greeting" { value = "hello" }`,
	}, "main")
	e := New(g)

	rec, _ := g.Record("main")
	bindings, err := e.Evaluate(context.Background(), rec)

	require.NoError(t, err)
	assert.True(t, bindings["shout"].RawEquals(cty.StringVal("HELLO")))

	helper, _ := g.Record("helper")
	assert.Equal(t, module.StateEvaluated, helper.State())
}

func TestEvaluate_DeferredImportIsNotEvaluated(t *testing.T) {
	// --- Arrange ---
	// main defers lib but its exports never touch defer.lib, so lib must
	// stay Loaded after main evaluates.
	calls := 0
	g := mustLoad(t, source.MapProvider{
		"main": `
			import "lib" {
				from  = "./lib"
				defer = true
			}
			export "ready" { value = true }
		`,
		"lib": `export "value" { value = compute() }`,
	}, "main")
	e := New(g, WithFunctions(map[string]function.Function{"compute": countingFunc(&calls)}))

	// --- Act ---
	rec, _ := g.Record("main")
	_, err := e.Evaluate(context.Background(), rec)

	// --- Assert ---
	require.NoError(t, err)
	assert.Zero(t, calls)
	lib, _ := g.Record("lib")
	assert.Equal(t, module.StateLoaded, lib.State())
}

func TestEvaluate_DeferredReferenceTriggersTarget(t *testing.T) {
	calls := 0
	g := mustLoad(t, source.MapProvider{
		"main": `
			import "lib" {
				from  = "./lib"
				defer = true
			}
			export "copy" { value = defer.lib.value }
			export "again" { value = defer.lib.value }
		`,
		"lib": `export "value" { value = compute() }`,
	}, "main")
	e := New(g, WithFunctions(map[string]function.Function{"compute": countingFunc(&calls)}))

	rec, _ := g.Record("main")
	bindings, err := e.Evaluate(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "two references to the same deferred namespace share one evaluation")
	assert.True(t, bindings["copy"].RawEquals(cty.NumberIntVal(42)))
	assert.True(t, bindings["again"].RawEquals(cty.NumberIntVal(42)))
}

func TestEvaluate_FailurePoisonsRecord(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"lib": `export "value" { value = explode() }`,
	}, "lib")
	e := New(g, WithFunctions(map[string]function.Function{"explode": failingFunc()}))
	rec, _ := g.Record("lib")

	_, err1 := e.Evaluate(context.Background(), rec)
	_, err2 := e.Evaluate(context.Background(), rec)

	var evalErr *EvaluationError
	require.ErrorAs(t, err1, &evalErr)
	assert.Equal(t, "lib", evalErr.Specifier)
	assert.Equal(t, module.StateErrored, rec.State())
	assert.Same(t, err1.(*EvaluationError), err2.(*EvaluationError), "every later attempt re-surfaces the identical error")
}

func TestEvaluate_FailingEagerDependencyPoisonsImporter(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"main": `
			import "bad" { from = "./bad" }
			export "v" { value = import.bad.value }
		`,
		"bad": `export "value" { value = explode() }`,
	}, "main")
	e := New(g, WithFunctions(map[string]function.Function{"explode": failingFunc()}))

	rec, _ := g.Record("main")
	_, err := e.Evaluate(context.Background(), rec)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, module.StateErrored, rec.State())
	bad, _ := g.Record("bad")
	assert.Equal(t, module.StateErrored, bad.State())
}

func TestEvaluateSync_RejectsAsyncClosure(t *testing.T) {
	// --- Arrange ---
	// lib itself is synchronous, but its eager dependency is async; the
	// synchronous trigger must reject before anything executes.
	calls := 0
	g := mustLoad(t, source.MapProvider{
		"lib": `
			import "net" { from = "./net" }
			export "value" { value = compute() }
		`,
		"net": `
			async = true
			export "data" { value = compute() }
		`,
	}, "lib")
	e := New(g, WithFunctions(map[string]function.Function{"compute": countingFunc(&calls)}))
	rec, _ := g.Record("lib")

	// --- Act ---
	_, err := e.EvaluateSync(context.Background(), rec)

	// --- Assert ---
	var asyncErr *AsyncEvaluationError
	require.ErrorAs(t, err, &asyncErr)
	assert.Equal(t, "lib", asyncErr.Specifier)
	assert.Equal(t, "net", asyncErr.Cause)
	assert.Zero(t, calls, "no side effect may run before the async rejection")
	assert.Equal(t, module.StateLoaded, rec.State(), "the record is not poisoned by an async rejection")
}

func TestEvaluateSync_ErroredAsyncClosureResurfacesRecordedError(t *testing.T) {
	// --- Arrange ---
	// lib's eager dependency is async and its body fails. The eager walk is
	// allowed to evaluate the chain, poisoning both records.
	g := mustLoad(t, source.MapProvider{
		"lib": `
			import "net" { from = "./net" }
			export "value" { value = import.net.data }
		`,
		"net": `
			async = true
			export "data" { value = explode() }
		`,
	}, "lib")
	e := New(g, WithFunctions(map[string]function.Function{"explode": failingFunc()}))
	rec, _ := g.Record("lib")

	_, walkErr := e.Evaluate(context.Background(), rec)
	require.Error(t, walkErr)
	require.Equal(t, module.StateErrored, rec.State())

	// --- Act ---
	_, err := e.EvaluateSync(context.Background(), rec)

	// --- Assert ---
	// A poisoned record re-surfaces its recorded error on every later
	// access; the async rejection only applies while a body is still to run.
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "lib", evalErr.Specifier)
	assert.Same(t, walkErr, err)
	var asyncErr *AsyncEvaluationError
	assert.False(t, errors.As(err, &asyncErr), "an errored record must not report an async rejection")
}

func TestEvaluateSync_EvaluatedAsyncClosureServesCache(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"net": `
			async = true
			export "data" { value = 1 }
		`,
	}, "net")
	e := New(g)
	rec, _ := g.Record("net")

	walked, err := e.Evaluate(context.Background(), rec)
	require.NoError(t, err)

	cached, err := e.EvaluateSync(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, walked, cached)
}

func TestEvaluateSync_EvaluatingAsyncClosureIsReentrant(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"net": `
			async = true
			export "data" { value = 1 }
		`,
	}, "net")
	e := New(g)
	rec, _ := g.Record("net")
	require.True(t, rec.AsyncClosure)

	// Simulate a synchronous trigger arriving mid-evaluation.
	require.True(t, rec.BeginEvaluation())
	_, err := e.EvaluateSync(context.Background(), rec)

	var reentrant *ReentrantEvaluationError
	require.ErrorAs(t, err, &reentrant)
	assert.Equal(t, "net", reentrant.Specifier)
}

func TestEvaluate_EagerWalkMayEvaluateAsyncModules(t *testing.T) {
	// The orchestrator's eager walk is an async-capable context; only the
	// synchronous deferred-access trigger rejects async closures.
	g := mustLoad(t, source.MapProvider{
		"net": `
			async = true
			export "data" { value = 1 }
		`,
	}, "net")
	e := New(g)
	rec, _ := g.Record("net")

	bindings, err := e.Evaluate(context.Background(), rec)

	require.NoError(t, err)
	assert.True(t, bindings["data"].RawEquals(cty.NumberIntVal(1)))
}

func TestEvaluate_ReentrantTriggerIsAFault(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"lib": `export "value" { value = 1 }`,
	}, "lib")
	e := New(g)
	rec, _ := g.Record("lib")

	// Simulate a trigger arriving while the body is already executing.
	require.True(t, rec.BeginEvaluation())
	_, err := e.Evaluate(context.Background(), rec)

	var reentrant *ReentrantEvaluationError
	require.ErrorAs(t, err, &reentrant)
	assert.Equal(t, "lib", reentrant.Specifier)
}

func TestNamespace_SharedPerTarget(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"lib": `export "value" { value = 1 }`,
	}, "lib")
	e := New(g)
	rec, _ := g.Record("lib")

	assert.Same(t, e.Namespace(rec), e.Namespace(rec))
}

func TestEvaluate_UnknownDeferredLocal(t *testing.T) {
	g := mustLoad(t, source.MapProvider{
		"main": `export "v" { value = defer.ghost.value }`,
	}, "main")
	e := New(g)
	rec, _ := g.Record("main")

	_, err := e.Evaluate(context.Background(), rec)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), `no deferred import named "ghost"`)
}

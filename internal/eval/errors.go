package eval

import "fmt"

// EvaluationError reports a module body that failed during execution. It is
// recorded on the module's record, which permanently poisons it: every later
// evaluation attempt re-surfaces the same error.
type EvaluationError struct {
	Specifier string
	Err       error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating module %q: %v", e.Specifier, e.Err)
}

// Unwrap exposes the underlying cause for errors.As/Is.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// AsyncEvaluationError reports a synchronous deferred access that reached a
// module requiring asynchronous suspension. Nothing is executed: the check
// runs before the module body starts, so no side effects leak.
type AsyncEvaluationError struct {
	// Specifier is the module whose namespace was accessed.
	Specifier string
	// Cause is the async module that made the access illegal; it may be the
	// accessed module itself or an eager transitive dependency.
	Cause string
}

// Error implements the error interface.
func (e *AsyncEvaluationError) Error() string {
	if e.Cause == e.Specifier {
		return fmt.Sprintf("module %q requires asynchronous evaluation and cannot be triggered from a synchronous access", e.Specifier)
	}
	return fmt.Sprintf("module %q cannot be triggered from a synchronous access: eager dependency %q requires asynchronous evaluation", e.Specifier, e.Cause)
}

// ReentrantEvaluationError reports an evaluation trigger that re-entered a
// module already executing its own body, for example a deferred access that
// loops back into the accessing module.
type ReentrantEvaluationError struct {
	Specifier string
}

// Error implements the error interface.
func (e *ReentrantEvaluationError) Error() string {
	return fmt.Sprintf("re-entrant evaluation of module %q: its body is already executing", e.Specifier)
}

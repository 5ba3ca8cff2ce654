package loader

import "fmt"

// ResolutionError reports a specifier that could not be mapped to module
// source during the load phase.
type ResolutionError struct {
	Specifier string
	Importer  string
	Err       error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("cannot resolve entry module %q: %v", e.Specifier, e.Err)
	}
	return fmt.Sprintf("cannot resolve module %q (imported by %q): %v", e.Specifier, e.Importer, e.Err)
}

// Unwrap exposes the underlying cause for errors.As/Is.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// GraphLoadError reports that the load of a module graph failed as a whole.
// No partial graph is ever returned alongside it: a graph either loads
// completely or is not evaluatable at all.
type GraphLoadError struct {
	Entry string
	Err   error
}

// Error implements the error interface.
func (e *GraphLoadError) Error() string {
	return fmt.Sprintf("loading module graph rooted at %q: %v", e.Entry, e.Err)
}

// Unwrap exposes the underlying cause for errors.As/Is.
func (e *GraphLoadError) Unwrap() error {
	return e.Err
}

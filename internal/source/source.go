// Package source provides module source text to the loader. A Provider maps
// a canonical specifier to raw source; resolution of where that text lives
// (filesystem, memory) is entirely the provider's concern.
package source

import (
	"context"
	"fmt"
)

// Provider supplies raw module source text for a specifier. Implementations
// must be safe for repeated calls with the same specifier.
type Provider interface {
	// Source returns the source text for the given canonical specifier. A
	// specifier with no backing source fails with *NotFoundError.
	Source(ctx context.Context, specifier string) (string, error)
}

// NotFoundError reports a specifier that has no backing source.
type NotFoundError struct {
	Specifier string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module source not found for specifier %q", e.Specifier)
}

package source

import "context"

// MapProvider serves module source from an in-memory map of specifier to
// source text. It exists for tests and for embedders that assemble module
// graphs programmatically.
type MapProvider map[string]string

// Source implements Provider.
func (p MapProvider) Source(_ context.Context, specifier string) (string, error) {
	src, ok := p[specifier]
	if !ok {
		return "", &NotFoundError{Specifier: specifier}
	}
	return src, nil
}

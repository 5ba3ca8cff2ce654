package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// moduleExtension is the file extension a module source file must carry.
const moduleExtension = ".hcl"

// FSProvider serves module source from a directory tree. The tree is indexed
// once at construction time; the specifier for a file is its slash-separated
// path relative to the root, minus the extension. Indexing up front keeps the
// load phase free of directory walks and makes missing specifiers cheap to
// detect.
type FSProvider struct {
	root  string
	index map[string]string // specifier -> absolute file path
}

// NewFSProvider recursively indexes rootPath for module files and returns a
// provider serving them by specifier.
func NewFSProvider(rootPath string) (*FSProvider, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), moduleExtension) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		specifier := strings.TrimSuffix(filepath.ToSlash(rel), moduleExtension)
		index[specifier] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexing module root %q: %w", rootPath, err)
	}
	return &FSProvider{root: rootPath, index: index}, nil
}

// Len returns the number of module files discovered under the root.
func (p *FSProvider) Len() int {
	return len(p.index)
}

// Source implements Provider by reading the indexed file for the specifier.
func (p *FSProvider) Source(_ context.Context, specifier string) (string, error) {
	path, ok := p.index[specifier]
	if !ok {
		return "", &NotFoundError{Specifier: specifier}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading module %q: %w", specifier, err)
	}
	return string(data), nil
}

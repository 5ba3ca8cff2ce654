// Package parser turns raw module source text into module records. It owns
// the HCL-specific decoding; nothing downstream of it touches source text.
package parser

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/defermod/internal/module"
	"github.com/vk/defermod/internal/schema"
)

// ParseError reports source text that could not be parsed or decoded into a
// module record.
type ParseError struct {
	Specifier string
	Diags     hcl.Diagnostics
	Detail    string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parsing module %q: %s", e.Specifier, e.Detail)
	}
	return fmt.Sprintf("parsing module %q: %s", e.Specifier, e.Diags.Error())
}

// Parse decodes a single module source file into a record skeleton. The
// record carries import and export entries in declaration order plus the
// async flag; its state is Unlinked until the loader wires and marks it.
func Parse(specifier, src string) (*module.Record, error) {
	p := hclparse.NewParser()
	file, diags := p.ParseHCL([]byte(src), specifier+moduleFileSuffix)
	if diags.HasErrors() {
		return nil, &ParseError{Specifier: specifier, Diags: diags}
	}

	var mf schema.ModuleFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, &ParseError{Specifier: specifier, Diags: diags}
	}

	rec := &module.Record{
		Specifier: specifier,
		Async:     mf.Async,
	}

	seenImports := make(map[string]bool)
	for _, imp := range mf.Imports {
		if seenImports[imp.LocalName] {
			return nil, &ParseError{
				Specifier: specifier,
				Detail:    fmt.Sprintf("duplicate import local name %q", imp.LocalName),
			}
		}
		seenImports[imp.LocalName] = true
		rec.Imports = append(rec.Imports, module.ImportEntry{
			LocalName: imp.LocalName,
			Source:    imp.From,
			Deferred:  imp.Defer,
		})
	}

	seenExports := make(map[string]bool)
	for _, exp := range mf.Exports {
		if seenExports[exp.Name] {
			return nil, &ParseError{
				Specifier: specifier,
				Detail:    fmt.Sprintf("duplicate export name %q", exp.Name),
			}
		}
		seenExports[exp.Name] = true
		rec.Exports = append(rec.Exports, module.ExportEntry{
			Name:  exp.Name,
			Value: exp.Value,
		})
	}

	return rec, nil
}

// moduleFileSuffix is appended to the specifier to give HCL diagnostics a
// filename-shaped source identifier.
const moduleFileSuffix = ".hcl"

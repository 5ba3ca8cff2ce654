// Package schema defines the HCL shapes a module file decodes into. These
// structs are the raw, format-specific view of a module; the parser package
// translates them into module records.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// ImportBlock represents an `import` block from a module file. The label is
// the local name the imported namespace is bound to inside the module body.
type ImportBlock struct {
	LocalName string `hcl:"local_name,label"`
	From      string `hcl:"from"`
	Defer     bool   `hcl:"defer,optional"`
}

// ExportBlock represents an `export` block from a module file. The label is
// the name the value is exported under; the value attribute is kept as an
// undecoded expression and evaluated only when the module body runs.
type ExportBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// ModuleFile represents the top-level structure of a single module source
// file: an optional async marker plus ordered import and export blocks.
type ModuleFile struct {
	Async   bool           `hcl:"async,optional"`
	Imports []*ImportBlock `hcl:"import,block"`
	Exports []*ExportBlock `hcl:"export,block"`
}

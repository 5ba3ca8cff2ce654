package loader

import (
	"sort"

	"github.com/vk/defermod/internal/module"
)

// Graph is the complete set of modules reachable from an entry specifier,
// eager and deferred edges alike. The loader is its sole writer; once Load
// returns, the graph is read-only for the rest of its lifetime, so readers
// need no locking.
type Graph struct {
	entry   string
	records map[string]*module.Record
}

// Entry returns the canonical specifier of the entry module.
func (g *Graph) Entry() string {
	return g.entry
}

// Record returns the module record for a canonical specifier.
func (g *Graph) Record(specifier string) (*module.Record, bool) {
	rec, ok := g.records[specifier]
	return rec, ok
}

// Records returns all records in the graph, sorted by specifier for
// deterministic iteration.
func (g *Graph) Records() []*module.Record {
	out := make([]*module.Record, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Specifier < out[j].Specifier })
	return out
}

// Len returns the number of modules in the graph.
func (g *Graph) Len() int {
	return len(g.records)
}

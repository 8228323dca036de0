package graph

import (
	"maps"
	"slices"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/ritzau/incbuild/pkg/state"
)

// Propagate moves every clean record that transitively depends on a file in
// the compile set, or on a deleted file, into the compile set. Records are
// moved as they are. It returns the moved paths, sorted.
//
// The result is the least fixed point of "a clean file depending on a
// compiled or deleted file must compile", computed as one breadth first
// walk over the reversed dependency edges of the clean records.
func Propagate(compile, clean map[string]*state.SourceFileRecord, deleted map[string]bool) []string {
	// Edge D -> C: invalidating D invalidates the clean file C
	inv := NewFileGraph()
	for _, c := range slices.Sorted(maps.Keys(clean)) {
		for _, d := range clean[c].Dependencies {
			inv.AddDependency(d, c)
		}
	}

	// A virtual root reaching every seed lets one walk cover them all
	root := simple.Node(int64(len(inv.paths)))
	inv.graph.AddNode(root)
	for _, seed := range seeds(compile, deleted) {
		if id, ok := inv.ids[seed]; ok {
			inv.graph.SetEdge(inv.graph.NewEdge(root, inv.graph.Node(id)))
		}
	}

	var moved []string
	bf := traverse.BreadthFirst{
		Visit: func(n gonumgraph.Node) {
			if n.ID() == root.ID() {
				return
			}
			p := inv.paths[n.ID()]
			if rec, ok := clean[p]; ok {
				moved = append(moved, p)
				compile[p] = rec
				delete(clean, p)
			}
		},
	}
	bf.Walk(inv.graph, root, nil)

	slices.Sort(moved)
	return moved
}

// FixedPoint computes the same result as Propagate by repeated passes over
// the clean set until no record moves.
func FixedPoint(compile, clean map[string]*state.SourceFileRecord, deleted map[string]bool) []string {
	var moved []string
	for {
		changed := false
		for _, p := range slices.Sorted(maps.Keys(clean)) {
			rec := clean[p]
			for _, d := range rec.Dependencies {
				if _, ok := compile[d]; ok || deleted[d] {
					moved = append(moved, p)
					compile[p] = rec
					delete(clean, p)
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}

	slices.Sort(moved)
	return moved
}

func seeds(compile map[string]*state.SourceFileRecord, deleted map[string]bool) []string {
	out := slices.Collect(maps.Keys(compile))
	for p := range deleted {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Package cycles reports circular dependencies between source files.
// Cycles are legal for the build; they are surfaced for information only.
package cycles

import (
	"slices"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/incbuild/pkg/graph"
)

// FileCycle represents a circular dependency between source files
type FileCycle struct {
	Files []string `json:"files"` // sorted file paths in the cycle
}

// FindFileCycles finds all circular dependencies in the file dependency graph,
// ordered by their first file
func FindFileCycles(fg *graph.FileGraph) []FileCycle {
	cycles := make([]FileCycle, 0)
	for _, scc := range topo.TarjanSCC(fg.Graph()) {
		if len(scc) < 2 {
			continue
		}

		files := make([]string, 0, len(scc))
		for _, n := range scc {
			if node := fg.GetNodeByID(n.ID()); node != nil {
				files = append(files, node.Path)
			}
		}
		slices.Sort(files)
		cycles = append(cycles, FileCycle{Files: files})
	}

	slices.SortFunc(cycles, func(a, b FileCycle) int {
		return slices.Compare(a.Files, b.Files)
	})
	return cycles
}

// Package graph holds the file-level dependency graph and the propagation
// of invalidation along it.
package graph

import (
	"cmp"
	"slices"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/incbuild/pkg/deps"
	"github.com/ritzau/incbuild/pkg/state"
)

// FileNode represents a source file in the dependency graph
type FileNode struct {
	Path string // e.g. "app/Main.java"
}

// FileGraph is a directed graph where an edge A -> B means A depends on B
type FileGraph struct {
	graph *simple.DirectedGraph
	nodes map[string]*FileNode // Map from file path to node
	ids   map[string]int64     // Map from file path to graph ID
	paths []string             // Graph ID to file path
}

// NewFileGraph creates a new file dependency graph
func NewFileGraph() *FileGraph {
	return &FileGraph{
		graph: simple.NewDirectedGraph(),
		nodes: make(map[string]*FileNode),
		ids:   make(map[string]int64),
	}
}

// AddFile adds a file to the graph
func (fg *FileGraph) AddFile(path string) {
	if _, exists := fg.nodes[path]; exists {
		return
	}

	id := int64(len(fg.paths))
	fg.nodes[path] = &FileNode{Path: path}
	fg.ids[path] = id
	fg.paths = append(fg.paths, path)

	fg.graph.AddNode(simple.Node(id))
}

// AddDependency adds a dependency edge from source to target, adding
// missing files. Self edges are ignored.
func (fg *FileGraph) AddDependency(source, target string) {
	if source == target {
		return
	}
	fg.AddFile(source)
	fg.AddFile(target)

	sourceID := fg.ids[source]
	targetID := fg.ids[target]

	if !fg.graph.HasEdgeFromTo(sourceID, targetID) {
		fg.graph.SetEdge(fg.graph.NewEdge(fg.graph.Node(sourceID), fg.graph.Node(targetID)))
	}
}

// GetNodeByID returns a file node by its graph ID
func (fg *FileGraph) GetNodeByID(id int64) *FileNode {
	if id < 0 || id >= int64(len(fg.paths)) {
		return nil
	}
	return fg.nodes[fg.paths[id]]
}

// Graph returns the underlying directed graph
func (fg *FileGraph) Graph() *simple.DirectedGraph {
	return fg.graph
}

// Nodes returns all file nodes sorted by path
func (fg *FileGraph) Nodes() []*FileNode {
	nodes := make([]*FileNode, 0, len(fg.nodes))
	for _, p := range slices.Sorted(slices.Values(fg.paths)) {
		nodes = append(nodes, fg.nodes[p])
	}
	return nodes
}

// Edges returns all dependency edges as sorted [source, target] pairs
func (fg *FileGraph) Edges() [][2]string {
	var edges [][2]string

	iter := fg.graph.Edges()
	for iter.Next() {
		edge := iter.Edge()
		edges = append(edges, [2]string{fg.paths[edge.From().ID()], fg.paths[edge.To().ID()]})
	}

	slices.SortFunc(edges, func(a, b [2]string) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
	return edges
}

// GetDependencies returns the sorted files the given file depends on
func (fg *FileGraph) GetDependencies(path string) []string {
	id, exists := fg.ids[path]
	if !exists {
		return nil
	}
	return fg.collect(fg.graph.From(id))
}

// GetDependents returns the sorted files that depend on the given file
func (fg *FileGraph) GetDependents(path string) []string {
	id, exists := fg.ids[path]
	if !exists {
		return nil
	}
	return fg.collect(fg.graph.To(id))
}

func (fg *FileGraph) collect(iter gonumgraph.Nodes) []string {
	var out []string
	for iter.Next() {
		out = append(out, fg.paths[iter.Node().ID()])
	}
	slices.Sort(out)
	return out
}

// BuildFileGraph builds a file dependency graph from per-file dependency
// lists. Dependencies on files without an entry still become nodes.
func BuildFileGraph(fileDeps []*deps.FileDependency) *FileGraph {
	fg := NewFileGraph()

	for _, dep := range fileDeps {
		if dep.SourceFile == "" {
			continue
		}
		fg.AddFile(dep.SourceFile)
		for _, depFile := range dep.Dependencies {
			fg.AddDependency(dep.SourceFile, depFile)
		}
	}

	return fg
}

// FromState builds the file graph of every record in a build state
func FromState(s *state.BuildState) *FileGraph {
	fileDeps := make([]*deps.FileDependency, 0, len(s.SourceFiles))
	for _, p := range s.Paths() {
		fileDeps = append(fileDeps, &deps.FileDependency{
			SourceFile:   p,
			Dependencies: s.SourceFiles[p].Dependencies,
		})
	}
	return BuildFileGraph(fileDeps)
}

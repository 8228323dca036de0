package cycles

import (
	"reflect"
	"testing"

	"github.com/ritzau/incbuild/pkg/graph"
)

func buildGraph(edges ...[2]string) *graph.FileGraph {
	fg := graph.NewFileGraph()
	for _, e := range edges {
		fg.AddDependency(e[0], e[1])
	}
	return fg
}

func TestFindFileCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		want  [][]string
	}{
		{
			name:  "acyclic chain",
			edges: [][2]string{{"Main.java", "Base.java"}, {"Base.java", "Util.java"}},
			want:  nil,
		},
		{
			name:  "mutual reference",
			edges: [][2]string{{"Node.java", "Tree.java"}, {"Tree.java", "Node.java"}},
			want:  [][]string{{"Node.java", "Tree.java"}},
		},
		{
			name: "three file cycle",
			edges: [][2]string{
				{"A.java", "B.java"},
				{"B.java", "C.java"},
				{"C.java", "A.java"},
			},
			want: [][]string{{"A.java", "B.java", "C.java"}},
		},
		{
			name: "two cycles with acyclic parts",
			edges: [][2]string{
				{"Main.java", "X.java"},
				{"X.java", "Y.java"},
				{"Y.java", "X.java"},
				{"Main.java", "Util.java"},
				{"P.java", "Q.java"},
				{"Q.java", "R.java"},
				{"R.java", "P.java"},
			},
			want: [][]string{{"P.java", "Q.java", "R.java"}, {"X.java", "Y.java"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycles := FindFileCycles(buildGraph(tt.edges...))

			var got [][]string
			for _, c := range cycles {
				got = append(got, c.Files)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindFileCycles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindFileCyclesEmptyGraph(t *testing.T) {
	cycles := FindFileCycles(graph.NewFileGraph())
	if cycles == nil || len(cycles) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", cycles)
	}
}

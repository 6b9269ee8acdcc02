// Package graphtest provides small scheduling problems shared by tests.
package graphtest

import (
	"testing"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// Edge is a weighted precedence edge used to build fixtures.
type Edge struct {
	From, To int
	Cost     float64
}

// CommMatrix returns an n x n communication matrix holding the given edges
// and graph.NoEdge everywhere else.
func CommMatrix(n int, edges ...Edge) [][]float64 {
	comm := make([][]float64, n)
	for i := range comm {
		comm[i] = make([]float64, n)
		for j := range comm[i] {
			comm[i][j] = graph.NoEdge
		}
	}
	for _, e := range edges {
		comm[e.From][e.To] = e.Cost
	}
	return comm
}

// Uniform returns an n x p computation matrix where every entry is cost.
func Uniform(n, p int, cost float64) [][]float64 {
	comp := make([][]float64, n)
	for i := range comp {
		comp[i] = make([]float64, p)
		for j := range comp[i] {
			comp[i][j] = cost
		}
	}
	return comp
}

// Build constructs and validates a graph, failing the test on error.
func Build(t testing.TB, numProcessors int, comp [][]float64, edges ...Edge) *graph.Graph {
	t.Helper()
	g, err := graph.New(numProcessors, comp, CommMatrix(len(comp), edges...))
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate graph: %v", err)
	}
	return g
}

// Chain is 0 -> 1 -> 2 on two processors, cost 2 everywhere, edge cost 1.
func Chain(t testing.TB) *graph.Graph {
	t.Helper()
	return Build(t, 2, Uniform(3, 2, 2),
		Edge{0, 1, 1},
		Edge{1, 2, 1},
	)
}

// ForkJoin is 0 -> {1, 2} -> 3 on two processors, cost 2 everywhere, edge cost 1.
func ForkJoin(t testing.TB) *graph.Graph {
	t.Helper()
	return Build(t, 2, Uniform(4, 2, 2),
		Edge{0, 1, 1},
		Edge{0, 2, 1},
		Edge{1, 3, 1},
		Edge{2, 3, 1},
	)
}

// Single is a one-task graph on two processors with costs 3 and 1.
func Single(t testing.TB) *graph.Graph {
	t.Helper()
	return Build(t, 2, [][]float64{{3, 1}})
}

// Topcuoglu is the ten-task, three-processor example graph from the HEFT
// paper (Topcuoglu, Hariri and Wu, 2002), re-indexed from 0.
func Topcuoglu(t testing.TB) *graph.Graph {
	t.Helper()
	comp := [][]float64{
		{14, 16, 9},
		{13, 19, 18},
		{11, 13, 19},
		{13, 8, 17},
		{12, 13, 10},
		{13, 16, 9},
		{7, 15, 11},
		{5, 11, 14},
		{18, 12, 20},
		{21, 7, 16},
	}
	return Build(t, 3, comp,
		Edge{0, 1, 18},
		Edge{0, 2, 12},
		Edge{0, 3, 9},
		Edge{0, 4, 11},
		Edge{0, 5, 14},
		Edge{1, 7, 19},
		Edge{1, 8, 16},
		Edge{2, 6, 23},
		Edge{3, 7, 27},
		Edge{3, 8, 23},
		Edge{4, 8, 13},
		Edge{5, 7, 15},
		Edge{6, 9, 17},
		Edge{7, 9, 11},
		Edge{8, 9, 13},
	)
}

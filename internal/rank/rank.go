// Package rank turns the optimistic cost table into task priorities.
package rank

import (
	"sort"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/lookahead"
)

// Compute returns rank[t] = mean of PCT row t + average computation cost of t.
func Compute(g *graph.Graph, pct *lookahead.Table) []float64 {
	ranks := make([]float64, g.NumTasks)
	for t := range ranks {
		ranks[t] = pct.Mean(t) + g.AvgComp(t)
	}
	return ranks
}

// Order returns task ids sorted by descending rank. Equal ranks keep
// ascending id order.
func Order(ranks []float64) []int {
	order := make([]int, len(ranks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return ranks[order[i]] > ranks[order[j]]
	})
	return order
}

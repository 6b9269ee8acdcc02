// Package cpm computes structural earliest and latest start bounds for a
// task graph and derives its critical path.
package cpm

import (
	"math"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// uncomputed marks a table entry that has not been filled yet.
var uncomputed = math.NaN()

// Analyze performs critical path analysis on a validated graph. Durations are
// average computation costs and every edge is charged its communication cost,
// since no processor assignment is known yet.
func Analyze(g *graph.Graph, tol Tolerance) *Result {
	n := g.NumTasks
	order := g.Order()

	result := &Result{
		AEST:     filled(n, uncomputed),
		ALST:     filled(n, uncomputed),
		Critical: make([]bool, n),
		Adjacent: make([]bool, n),
	}

	// Forward pass: AEST
	for _, t := range order {
		est := 0.0
		for _, p := range g.Pred(t) {
			if v := result.AEST[p] + g.AvgComp(p) + g.Comm[p][t]; v > est {
				est = v
			}
		}
		result.AEST[t] = est
	}
	result.Length = result.AEST[g.Sink()]

	// Backward pass: ALST
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		if len(g.Succ(t)) == 0 {
			result.ALST[t] = result.AEST[t]
			continue
		}
		lst := math.Inf(1)
		for _, s := range g.Succ(t) {
			if v := result.ALST[s] - g.Comm[t][s]; v < lst {
				lst = v
			}
		}
		result.ALST[t] = lst - g.AvgComp(t)
	}

	for t := 0; t < n; t++ {
		result.Critical[t] = tol.Equal(result.AEST[t], result.ALST[t])
	}

	for t := 0; t < n; t++ {
		if result.Critical[t] {
			continue
		}
		for _, s := range g.Succ(t) {
			if result.Critical[s] {
				result.Adjacent[t] = true
				break
			}
		}
	}

	for _, t := range order {
		if result.Critical[t] {
			result.CriticalPath = append(result.CriticalPath, t)
		}
	}

	return result
}

// Slack returns ALST - AEST for task t.
func (r *Result) Slack(t int) float64 {
	return r.ALST[t] - r.AEST[t]
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Package lookahead computes per-task, per-processor lower bounds on the work
// remaining after a task finishes. PCT looks ahead over every successor and
// drives task priorities; CNCT looks ahead over critical successors only and
// breaks processor ties during allocation.
package lookahead

import (
	"math"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// NoChoice marks a Via entry for a task without successors.
var NoChoice = Choice{Succ: -1, Proc: -1}

// Choice names the successor and processor that determined a table entry.
type Choice struct {
	Succ int `json:"succ"`
	Proc int `json:"proc"`
}

// Table is a task x processor matrix of lookahead costs.
type Table struct {
	Cost [][]float64 `json:"cost"`
	Via  [][]Choice  `json:"via"`
}

// Mean returns the average of task t's row over all processors.
func (tb *Table) Mean(t int) float64 {
	row := tb.Cost[t]
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	return sum / float64(len(row))
}

// PCT computes the optimistic cost table over all successors:
//
//	PCT[t][p] = max over successors s and processors q of
//	            PCT[s][q] + comp[s][q] + (comm[t][s] if p != q)
//
// and 0 for tasks without successors. Rows are filled in reverse topological
// order, so every successor row is complete before it is read. Ties keep the
// first (successor, processor) pair in ascending order.
func PCT(g *graph.Graph) *Table {
	tb := newTable(g.NumTasks, g.NumProcessors)
	order := g.Order()

	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		succ := g.Succ(t)
		for p := 0; p < g.NumProcessors; p++ {
			if len(succ) == 0 {
				tb.set(t, p, 0, NoChoice)
				continue
			}
			best, via := math.Inf(-1), NoChoice
			for _, s := range succ {
				for q := 0; q < g.NumProcessors; q++ {
					v := tb.Cost[s][q] + g.Comp[s][q] + g.CommCost(t, s, p, q)
					if v > best {
						best, via = v, Choice{Succ: s, Proc: q}
					}
				}
			}
			tb.set(t, p, best, via)
		}
	}
	return tb
}

// CNCT computes the critical-node cost table. For each task the lookahead is
// restricted to successors on the critical path, falling back to all
// successors when none is critical:
//
//	CNCT[t][p] = max over those successors s of
//	             min over processors q of
//	             CNCT[s][q] + comp[s][q] + (comm[t][s] if p != q)
//
// Tasks without successors get 0. Ties keep the first successor reaching the
// maximum and, for it, the first processor reaching the minimum.
func CNCT(g *graph.Graph, critical []bool) *Table {
	tb := newTable(g.NumTasks, g.NumProcessors)
	order := g.Order()

	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		succ := criticalSuccessors(g, t, critical)
		for p := 0; p < g.NumProcessors; p++ {
			if len(succ) == 0 {
				tb.set(t, p, 0, NoChoice)
				continue
			}
			best, via := math.Inf(-1), NoChoice
			for _, s := range succ {
				low, lowProc := math.Inf(1), -1
				for q := 0; q < g.NumProcessors; q++ {
					v := tb.Cost[s][q] + g.Comp[s][q] + g.CommCost(t, s, p, q)
					if v < low {
						low, lowProc = v, q
					}
				}
				if low > best {
					best, via = low, Choice{Succ: s, Proc: lowProc}
				}
			}
			tb.set(t, p, best, via)
		}
	}
	return tb
}

// criticalSuccessors returns the critical successors of t, or all of its
// successors when none of them is critical.
func criticalSuccessors(g *graph.Graph, t int, critical []bool) []int {
	all := g.Succ(t)
	var crit []int
	for _, s := range all {
		if critical[s] {
			crit = append(crit, s)
		}
	}
	if len(crit) == 0 {
		return all
	}
	return crit
}

func newTable(n, p int) *Table {
	tb := &Table{
		Cost: make([][]float64, n),
		Via:  make([][]Choice, n),
	}
	for t := 0; t < n; t++ {
		tb.Cost[t] = make([]float64, p)
		tb.Via[t] = make([]Choice, p)
		for q := range tb.Cost[t] {
			tb.Cost[t][q] = math.NaN()
			tb.Via[t][q] = NoChoice
		}
	}
	return tb
}

func (tb *Table) set(t, p int, v float64, via Choice) {
	tb.Cost[t][p] = v
	tb.Via[t][p] = via
}

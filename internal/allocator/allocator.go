// Package allocator places tasks onto processors in priority order using
// insertion-based list scheduling with a critical-path lookahead.
package allocator

import (
	"errors"
	"fmt"
	"math"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/lookahead"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/schedule"
)

// ErrUnscheduledPredecessor means a task was reached before one of its
// predecessors was placed, i.e. the order was not topological.
var ErrUnscheduledPredecessor = errors.New("predecessor not scheduled")

// slot is an idle interval [start, end) on a processor timeline.
type slot struct {
	start, end float64
}

// Allocate assigns every task in order to the processor minimizing its
// lookahead-adjusted finish time:
//
//	score = EFT + CNCT[t][p]   unless t is critical-node-adjacent
//	score = EFT                otherwise
//
// The first processor reaching the minimum wins. Tasks are inserted into the
// earliest idle slot that fits, so gaps left by earlier decisions are reused.
func Allocate(g *graph.Graph, order []int, cnct *lookahead.Table, adjacent []bool) (*schedule.Schedule, error) {
	s := schedule.New(g.NumTasks, g.NumProcessors)

	for _, t := range order {
		bestProc := -1
		bestScore := math.Inf(1)
		var bestStart float64

		for p := 0; p < g.NumProcessors; p++ {
			est, err := earliestStart(g, s, t, p)
			if err != nil {
				return nil, err
			}
			cost := g.Comp[t][p]
			start := firstFit(idleSlots(s.Timeline(p)), est, cost)
			eft := start + cost

			score := eft
			if !adjacent[t] {
				score += cnct.Cost[t][p]
			}
			if p == 0 || score < bestScore {
				bestProc, bestScore, bestStart = p, score, start
			}
		}

		if err := s.Assign(t, bestProc, bestStart, bestStart+g.Comp[t][bestProc]); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// earliestStart returns the time all of t's inputs are available on p.
func earliestStart(g *graph.Graph, s *schedule.Schedule, t, p int) (float64, error) {
	est := 0.0
	for _, pred := range g.Pred(t) {
		a := s.Tasks[pred]
		if !a.Assigned() {
			return 0, fmt.Errorf("%w: task %d needs task %d", ErrUnscheduledPredecessor, t, pred)
		}
		if v := a.End + g.CommCost(pred, t, a.Processor, p); v > est {
			est = v
		}
	}
	return est, nil
}

// idleSlots lists the gaps of a start-ordered timeline, ending with the
// unbounded interval after its last task. Gaps are measured from the latest
// end seen so far, so a zero-length task never reopens time already taken.
func idleSlots(tl []schedule.Assignment) []slot {
	if len(tl) == 0 {
		return []slot{{0, math.Inf(1)}}
	}
	var slots []slot
	if tl[0].Start != 0 {
		slots = append(slots, slot{0, tl[0].Start})
	}
	end := tl[0].End
	for _, a := range tl[1:] {
		if a.Start >= end {
			slots = append(slots, slot{end, a.Start})
		}
		if a.End > end {
			end = a.End
		}
	}
	return append(slots, slot{end, math.Inf(1)})
}

// firstFit returns the start time in the first slot, in chronological order,
// that can hold a task of the given cost starting no earlier than est.
func firstFit(slots []slot, est, cost float64) float64 {
	for _, sl := range slots {
		if est < sl.start {
			if sl.start+cost <= sl.end {
				return sl.start
			}
		} else if est+cost <= sl.end {
			return est
		}
	}
	// unreachable: the last slot is unbounded
	return est
}

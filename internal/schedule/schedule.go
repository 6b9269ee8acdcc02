// Package schedule holds the allocator's output: one assignment per task, one
// start-ordered timeline per processor and the overall makespan.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// Unassigned is the processor id of a task that has not been placed yet.
const Unassigned = -1

var (
	// ErrReassigned is returned when a task is assigned a second time.
	ErrReassigned = errors.New("task already assigned")
	// ErrInvalid is returned by Validate for an inconsistent schedule.
	ErrInvalid = errors.New("invalid schedule")
)

// Assignment is the placement of a single task.
type Assignment struct {
	ID        int     `json:"id"`
	Processor int     `json:"processor"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// Assigned reports whether the task has been placed on a processor.
func (a Assignment) Assigned() bool { return a.Processor != Unassigned }

// Duration returns End - Start.
func (a Assignment) Duration() float64 { return a.End - a.Start }

// Timeline is the ordered list of tasks placed on one processor.
type Timeline struct {
	ID    int   `json:"id"`
	Tasks []int `json:"tasks"`
}

// Schedule is the result of allocation. Tasks is indexed by task id and
// Processors by processor id.
type Schedule struct {
	Tasks      []Assignment `json:"tasks"`
	Processors []Timeline   `json:"processors"`
	Makespan   float64      `json:"makespan"`
}

// New returns an empty schedule with every task unassigned.
func New(numTasks, numProcessors int) *Schedule {
	s := &Schedule{
		Tasks:      make([]Assignment, numTasks),
		Processors: make([]Timeline, numProcessors),
	}
	for i := range s.Tasks {
		s.Tasks[i] = Assignment{ID: i, Processor: Unassigned}
	}
	for p := range s.Processors {
		s.Processors[p] = Timeline{ID: p, Tasks: []int{}}
	}
	return s
}

// Assign places task on processor over [start, end) and keeps the processor's
// timeline sorted by start time, then end time. A task can only be assigned
// once.
func (s *Schedule) Assign(task, processor int, start, end float64) error {
	if s.Tasks[task].Assigned() {
		return fmt.Errorf("%w: task %d is on processor %d", ErrReassigned, task, s.Tasks[task].Processor)
	}
	s.Tasks[task] = Assignment{ID: task, Processor: processor, Start: start, End: end}

	tl := &s.Processors[processor]
	tl.Tasks = append(tl.Tasks, task)
	sort.SliceStable(tl.Tasks, func(i, j int) bool {
		a, b := s.Tasks[tl.Tasks[i]], s.Tasks[tl.Tasks[j]]
		return a.Start < b.Start || (a.Start == b.Start && a.End < b.End)
	})

	if end > s.Makespan {
		s.Makespan = end
	}
	return nil
}

// Timeline returns the assignments on processor p in start order.
func (s *Schedule) Timeline(p int) []Assignment {
	out := make([]Assignment, 0, len(s.Processors[p].Tasks))
	for _, id := range s.Processors[p].Tasks {
		out = append(out, s.Tasks[id])
	}
	return out
}

// ComputeMakespan returns the latest end time over all assigned tasks.
func (s *Schedule) ComputeMakespan() float64 {
	m := 0.0
	for _, a := range s.Tasks {
		if a.Assigned() && a.End > m {
			m = a.End
		}
	}
	return m
}

// Utilization returns the busy time of processor p divided by the makespan.
func (s *Schedule) Utilization(p int) float64 {
	if s.Makespan == 0 {
		return 0
	}
	busy := 0.0
	for _, a := range s.Timeline(p) {
		busy += a.Duration()
	}
	return busy / s.Makespan
}

// String renders the schedule as text, one block per processor followed by
// the makespan. Processors and tasks are labelled from 1.
func (s *Schedule) String() string {
	var b strings.Builder
	for p := range s.Processors {
		fmt.Fprintf(&b, "Processor %d:\n", p+1)
		for _, a := range s.Timeline(p) {
			fmt.Fprintf(&b, "  Task %d: start = %g, end = %g\n", a.ID+1, a.Start, a.End)
		}
	}
	fmt.Fprintf(&b, "Makespan = %g\n", s.Makespan)
	return b.String()
}

// Validate checks the schedule against g: every task assigned, durations
// equal to the computation cost on the chosen processor, timelines free of
// overlap, and every edge respected including communication delay.
func (s *Schedule) Validate(g *graph.Graph) error {
	if len(s.Tasks) != g.NumTasks || len(s.Processors) != g.NumProcessors {
		return fmt.Errorf("%w: schedule is %d tasks x %d processors, graph is %d x %d",
			ErrInvalid, len(s.Tasks), len(s.Processors), g.NumTasks, g.NumProcessors)
	}

	for id, a := range s.Tasks {
		if !a.Assigned() {
			return fmt.Errorf("%w: task %d is unassigned", ErrInvalid, id)
		}
		if want := g.Comp[id][a.Processor]; !near(a.Duration(), want) {
			return fmt.Errorf("%w: task %d runs for %g on processor %d, cost is %g",
				ErrInvalid, id, a.Duration(), a.Processor, want)
		}
	}

	for p := range s.Processors {
		// reach is the latest end seen so far on p, set by task by.
		reach, by := 0.0, -1
		for _, a := range s.Timeline(p) {
			if by >= 0 && a.Start+eps < reach {
				return fmt.Errorf("%w: tasks %d and %d overlap on processor %d",
					ErrInvalid, by, a.ID, p)
			}
			if by < 0 || a.End > reach {
				reach, by = a.End, a.ID
			}
		}
	}

	for from := 0; from < g.NumTasks; from++ {
		a := s.Tasks[from]
		for _, to := range g.Succ(from) {
			b := s.Tasks[to]
			ready := a.End + g.CommCost(from, to, a.Processor, b.Processor)
			if b.Start+eps < ready {
				return fmt.Errorf("%w: task %d starts at %g before data from task %d arrives at %g",
					ErrInvalid, to, b.Start, from, ready)
			}
		}
	}

	if m := s.ComputeMakespan(); !near(m, s.Makespan) {
		return fmt.Errorf("%w: makespan is %g, latest end is %g", ErrInvalid, s.Makespan, m)
	}
	return nil
}

const eps = 1e-9

func near(a, b float64) bool {
	d := a - b
	return d <= eps && d >= -eps
}

package graph

import "errors"

// NoEdge marks the absence of an edge in a communication-cost matrix.
const NoEdge = -1.0

// ErrShape is returned when the cost matrices do not agree on dimensions.
var ErrShape = errors.New("malformed cost matrix")

// ErrCycle is returned when the precedence relation is not acyclic.
var ErrCycle = errors.New("dependency cycle detected")

// ErrSource is returned when task 0 is not the unique entry task.
var ErrSource = errors.New("graph must have exactly one source at task 0")

// ErrSink is returned when task N-1 is not the unique exit task.
var ErrSink = errors.New("graph must have exactly one sink at the last task")

// ErrNegativeCost is returned for a negative computation or communication cost.
var ErrNegativeCost = errors.New("negative cost")

// Graph is a task DAG annotated with per-processor computation costs and
// per-edge communication costs. It is read-only once built by New.
type Graph struct {
	NumTasks      int
	NumProcessors int
	Comp          [][]float64 // task -> processor -> computation cost
	Comm          [][]float64 // task -> task -> communication cost, NoEdge if absent

	succ   [][]int   // task -> successors, ascending
	pred   [][]int   // task -> predecessors, ascending
	avg    []float64 // mean computation cost over processors
	order  []int     // topological order, source first
	roots  []int     // tasks with no predecessors
	leaves []int     // tasks with no successors
}

package cpm

import "math"

// Result holds the structural critical path analysis of a graph. All slices
// are indexed by task id.
type Result struct {
	AEST         []float64 `json:"aest"`          // earliest start, communication always charged
	ALST         []float64 `json:"alst"`          // latest start that keeps the sink on time
	Critical     []bool    `json:"critical"`      // AEST and ALST agree within tolerance
	Adjacent     []bool    `json:"adjacent"`      // not critical, but feeds a critical task
	CriticalPath []int     `json:"critical_path"` // critical tasks in topological order
	Length       float64   `json:"length"`        // AEST of the sink
}

// Tolerance controls the approximate equality used for critical-path
// membership: |a-b| <= Abs + Rel*|b|.
type Tolerance struct {
	Rel float64 `json:"rel"`
	Abs float64 `json:"abs"`
}

// DefaultTolerance returns Rel 1e-5, Abs 1e-8.
func DefaultTolerance() Tolerance {
	return Tolerance{Rel: 1e-5, Abs: 1e-8}
}

// Equal reports whether a is within tolerance of the reference value b.
func (tol Tolerance) Equal(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol.Abs+tol.Rel*math.Abs(b)
}

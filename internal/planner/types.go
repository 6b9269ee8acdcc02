package planner

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/cpm"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/lookahead"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/schedule"
)

// Plan collects every stage output of one scheduling run. Each field is
// computed once from the graph and the fields before it.
type Plan struct {
	CPM      *cpm.Result        `json:"cpm"`
	PCT      *lookahead.Table   `json:"pct"`
	CNCT     *lookahead.Table   `json:"cnct"`
	Ranks    []float64          `json:"ranks"`
	Order    []int              `json:"order"`
	Schedule *schedule.Schedule `json:"schedule"`
	Elapsed  time.Duration      `json:"elapsed"`
}

// Config holds the knobs of the pipeline.
type Config struct {
	Tolerance cpm.Tolerance
	Logger    zerolog.Logger
}

// WithProblem returns a copy of c whose logger tags entries with name.
func (c Config) WithProblem(name string) Config {
	c.Logger = c.Logger.With().Str("problem", name).Logger()
	return c
}

// Problem is a named graph scheduled as part of a batch.
type Problem struct {
	Name  string
	Graph *graph.Graph
}

// Result pairs a batch problem with its plan.
type Result struct {
	Name string
	Plan *Plan
}

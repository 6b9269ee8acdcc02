// Package planner threads a validated graph through critical path analysis,
// lookahead tables, ranking and allocation.
package planner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/allocator"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/cpm"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/lookahead"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/rank"
)

// Generate schedules g. The graph must have passed graph.Validate.
func Generate(g *graph.Graph, cfg Config) (*Plan, error) {
	log := cfg.Logger
	started := time.Now()

	cp := cpm.Analyze(g, cfg.Tolerance)
	log.Debug().
		Float64("length", cp.Length).
		Ints("critical_path", cp.CriticalPath).
		Msg("critical path analysed")

	pct := lookahead.PCT(g)
	cnct := lookahead.CNCT(g, cp.Critical)
	log.Debug().
		Int("tasks", g.NumTasks).
		Int("processors", g.NumProcessors).
		Msg("lookahead tables built")

	ranks := rank.Compute(g, pct)
	order := rank.Order(ranks)
	log.Debug().Ints("order", order).Msg("tasks ranked")

	s, err := allocator.Allocate(g, order, cnct, cp.Adjacent)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}

	plan := &Plan{
		CPM:      cp,
		PCT:      pct,
		CNCT:     cnct,
		Ranks:    ranks,
		Order:    order,
		Schedule: s,
		Elapsed:  time.Since(started),
	}
	log.Debug().
		Float64("makespan", s.Makespan).
		Dur("elapsed", plan.Elapsed).
		Msg("schedule complete")

	return plan, nil
}

// GenerateAll schedules independent problems concurrently, at most
// maxParallel at a time. Results keep the order of problems. The first
// failure cancels problems that have not started yet.
func GenerateAll(ctx context.Context, problems []Problem, cfg Config, maxParallel int) ([]Result, error) {
	if maxParallel <= 0 {
		maxParallel = 4
	}

	results := make([]Result, len(problems))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallel)

	for i, p := range problems {
		i, p := i, p
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			plan, err := Generate(p.Graph, cfg.WithProblem(p.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
			results[i] = Result{Name: p.Name, Plan: plan}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

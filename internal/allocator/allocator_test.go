package allocator

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/cpm"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph/graphtest"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/lookahead"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/rank"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/schedule"
)

// run executes the analysis stages and allocation for g.
func run(t *testing.T, g *graph.Graph) *schedule.Schedule {
	t.Helper()
	cp := cpm.Analyze(g, cpm.DefaultTolerance())
	order := rank.Order(rank.Compute(g, lookahead.PCT(g)))
	s, err := Allocate(g, order, lookahead.CNCT(g, cp.Critical), cp.Adjacent)
	require.NoError(t, err)
	return s
}

func TestAllocate_LinearChain(t *testing.T) {
	s := run(t, graphtest.Chain(t))

	want := []schedule.Assignment{
		{ID: 0, Processor: 0, Start: 0, End: 2},
		{ID: 1, Processor: 0, Start: 2, End: 4},
		{ID: 2, Processor: 0, Start: 4, End: 6},
	}
	if diff := cmp.Diff(want, s.Tasks); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 1, 2}, s.Processors[0].Tasks)
	assert.Empty(t, s.Processors[1].Tasks)
	assert.Equal(t, 6.0, s.Makespan)
}

func TestAllocate_ForkJoin(t *testing.T) {
	g := graphtest.ForkJoin(t)
	s := run(t, g)

	want := []schedule.Assignment{
		{ID: 0, Processor: 0, Start: 0, End: 2},
		{ID: 1, Processor: 0, Start: 2, End: 4},
		{ID: 2, Processor: 1, Start: 3, End: 5},
		{ID: 3, Processor: 1, Start: 5, End: 7},
	}
	if diff := cmp.Diff(want, s.Tasks); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}
	assert.NotEqual(t, s.Tasks[1].Processor, s.Tasks[2].Processor, "branches should run concurrently")
	assert.Equal(t, 7.0, s.Makespan)
	require.NoError(t, s.Validate(g))
}

func TestAllocate_SingleTask(t *testing.T) {
	s := run(t, graphtest.Single(t))

	assert.Equal(t, schedule.Assignment{ID: 0, Processor: 1, Start: 0, End: 1}, s.Tasks[0])
	assert.Equal(t, 1.0, s.Makespan)
}

func TestAllocate_Properties(t *testing.T) {
	graphs := map[string]*graph.Graph{
		"chain":     graphtest.Chain(t),
		"forkjoin":  graphtest.ForkJoin(t),
		"single":    graphtest.Single(t),
		"topcuoglu": graphtest.Topcuoglu(t),
	}

	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			s := run(t, g)
			require.NoError(t, s.Validate(g))

			for id, a := range s.Tasks {
				assert.GreaterOrEqual(t, s.Makespan, g.Comp[id][a.Processor])
			}
			assert.Equal(t, s.ComputeMakespan(), s.Makespan)

			again := run(t, g)
			if diff := cmp.Diff(s, again); diff != "" {
				t.Errorf("allocation is not deterministic (-first +second):\n%s", diff)
			}
		})
	}
}

func TestAllocate_AdjacentIgnoresLookahead(t *testing.T) {
	// One task, costs {3, 1}. The lookahead penalises processor 1 unless the
	// task is critical-node-adjacent.
	g := graphtest.Single(t)
	cnct := &lookahead.Table{Cost: [][]float64{{0, 5}}}

	s, err := Allocate(g, []int{0}, cnct, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Tasks[0].Processor)

	s, err = Allocate(g, []int{0}, cnct, []bool{true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Tasks[0].Processor)
}

func TestAllocate_TieKeepsFirstProcessor(t *testing.T) {
	g := graphtest.Build(t, 3, graphtest.Uniform(1, 3, 4))
	cnct := &lookahead.Table{Cost: [][]float64{{0, 0, 0}}}

	s, err := Allocate(g, []int{0}, cnct, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Tasks[0].Processor)
}

func TestAllocate_UnscheduledPredecessor(t *testing.T) {
	g := graphtest.Chain(t)
	cp := cpm.Analyze(g, cpm.DefaultTolerance())

	_, err := Allocate(g, []int{1, 0, 2}, lookahead.CNCT(g, cp.Critical), cp.Adjacent)
	if !errors.Is(err, ErrUnscheduledPredecessor) {
		t.Fatalf("expected ErrUnscheduledPredecessor, got %v", err)
	}
	assert.Contains(t, err.Error(), "task 1 needs task 0")
}

func TestIdleSlots(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		tl   []schedule.Assignment
		want []slot
	}{
		{"empty", nil, []slot{{0, inf}}},
		{
			"starts at zero",
			[]schedule.Assignment{{Start: 0, End: 2}, {Start: 5, End: 6}},
			[]slot{{2, 5}, {6, inf}},
		},
		{
			"leading gap",
			[]schedule.Assignment{{Start: 3, End: 4}},
			[]slot{{0, 3}, {4, inf}},
		},
		{
			"back to back",
			[]schedule.Assignment{{Start: 0, End: 2}, {Start: 2, End: 4}},
			[]slot{{2, 2}, {4, inf}},
		},
		{
			"zero length between tasks sharing a start",
			[]schedule.Assignment{{Start: 0, End: 2}, {Start: 2, End: 2}, {Start: 2, End: 4}},
			[]slot{{2, 2}, {2, 2}, {4, inf}},
		},
		{
			"longer task first at a shared start",
			[]schedule.Assignment{{Start: 5, End: 6}, {Start: 5, End: 5}},
			[]slot{{0, 5}, {6, inf}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idleSlots(tt.tl)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(slot{})); diff != "" {
				t.Errorf("slots mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFirstFit(t *testing.T) {
	inf := math.Inf(1)
	slots := []slot{{0, 3}, {5, 8}, {10, inf}}

	tests := []struct {
		name      string
		est, cost float64
		want      float64
	}{
		{"fits leading gap at zero", 0, 3, 0},
		{"est inside leading gap", 1, 2, 1},
		{"too long for leading gap", 1, 3, 5},
		{"waits for slot start", 4, 3, 5},
		{"est inside middle gap", 6, 2, 6},
		{"falls through to tail", 6, 3, 10},
		{"est past every gap", 20, 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstFit(slots, tt.est, tt.cost))
		})
	}
}

func TestAllocate_ReusesIdleGap(t *testing.T) {
	// Task 1 waits on processor 1 for the slow transfer 0 -> 1, leaving a gap
	// that the later task 2 fills.
	g := graphtest.Build(t, 2, [][]float64{{1, 100}, {100, 1}, {100, 1}, {1, 1}},
		graphtest.Edge{From: 0, To: 1, Cost: 10},
		graphtest.Edge{From: 0, To: 2, Cost: 2},
		graphtest.Edge{From: 1, To: 3, Cost: 0},
		graphtest.Edge{From: 2, To: 3, Cost: 0},
	)
	cnct := &lookahead.Table{Cost: graphtest.Uniform(4, 2, 0)}

	s, err := Allocate(g, []int{0, 1, 2, 3}, cnct, make([]bool, 4))
	require.NoError(t, err)

	assert.Equal(t, schedule.Assignment{ID: 1, Processor: 1, Start: 11, End: 12}, s.Tasks[1])
	assert.Equal(t, schedule.Assignment{ID: 2, Processor: 1, Start: 3, End: 4}, s.Tasks[2])
	assert.Equal(t, []int{2, 1}, s.Processors[1].Tasks)
	assert.Equal(t, []int{0, 3}, s.Processors[0].Tasks)
	assert.Equal(t, 13.0, s.Makespan)
	require.NoError(t, s.Validate(g))
}

func TestAllocate_ZeroCostTaskKeepsTimelineDisjoint(t *testing.T) {
	// Task 2 costs nothing and lands at the same start as task 1; task 3 must
	// still wait for task 1 to finish.
	g := graphtest.Build(t, 1, [][]float64{{5}, {1}, {0}, {1}, {0}},
		graphtest.Edge{From: 0, To: 1, Cost: 0},
		graphtest.Edge{From: 0, To: 2, Cost: 0},
		graphtest.Edge{From: 0, To: 3, Cost: 0},
		graphtest.Edge{From: 1, To: 4, Cost: 0},
		graphtest.Edge{From: 2, To: 4, Cost: 0},
		graphtest.Edge{From: 3, To: 4, Cost: 0},
	)
	cnct := &lookahead.Table{Cost: graphtest.Uniform(5, 1, 0)}

	s, err := Allocate(g, []int{0, 1, 2, 3, 4}, cnct, make([]bool, 5))
	require.NoError(t, err)

	assert.Equal(t, schedule.Assignment{ID: 1, Processor: 0, Start: 5, End: 6}, s.Tasks[1])
	assert.Equal(t, schedule.Assignment{ID: 2, Processor: 0, Start: 5, End: 5}, s.Tasks[2])
	assert.Equal(t, schedule.Assignment{ID: 3, Processor: 0, Start: 6, End: 7}, s.Tasks[3])
	assert.Equal(t, schedule.Assignment{ID: 4, Processor: 0, Start: 7, End: 7}, s.Tasks[4])
	assert.Equal(t, []int{0, 2, 1, 3, 4}, s.Processors[0].Tasks)
	require.NoError(t, s.Validate(g))
}

func TestAllocate_OverflowingScoresPickFirstProcessor(t *testing.T) {
	// Finish times overflow to +Inf on every processor.
	g := graphtest.Build(t, 2, [][]float64{{1e308, 1e308}, {1e308, 1e308}},
		graphtest.Edge{From: 0, To: 1, Cost: 1},
	)
	cnct := &lookahead.Table{Cost: graphtest.Uniform(2, 2, 0)}

	s, err := Allocate(g, []int{0, 1}, cnct, make([]bool, 2))
	require.NoError(t, err)

	assert.Equal(t, 0, s.Tasks[1].Processor)
	assert.True(t, math.IsInf(s.Tasks[1].End, 1))
}

func TestAllocate_InfiniteLookaheadPicksFirstProcessor(t *testing.T) {
	g := graphtest.Single(t)
	cnct := &lookahead.Table{Cost: [][]float64{make([]float64, g.NumProcessors)}}
	for p := range cnct.Cost[0] {
		cnct.Cost[0][p] = math.Inf(1)
	}

	s, err := Allocate(g, []int{0}, cnct, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Tasks[0].Processor)
}

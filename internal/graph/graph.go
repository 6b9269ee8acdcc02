package graph

import "fmt"

// New builds a Graph from a computation-cost matrix (tasks x processors) and a
// communication-cost matrix (tasks x tasks, NoEdge where there is no edge).
// Only shape and acyclicity are checked here; Validate checks the remaining
// scheduling preconditions.
func New(numProcessors int, comp, comm [][]float64) (*Graph, error) {
	n := len(comp)
	if n == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrShape)
	}
	if numProcessors <= 0 {
		return nil, fmt.Errorf("%w: need at least one processor, got %d", ErrShape, numProcessors)
	}
	if len(comm) != n {
		return nil, fmt.Errorf("%w: %d tasks but %d communication rows", ErrShape, n, len(comm))
	}
	for i := range comp {
		if len(comp[i]) != numProcessors {
			return nil, fmt.Errorf("%w: task %d has %d computation costs, want %d", ErrShape, i, len(comp[i]), numProcessors)
		}
		if len(comm[i]) != n {
			return nil, fmt.Errorf("%w: communication row %d has %d entries, want %d", ErrShape, i, len(comm[i]), n)
		}
	}

	g := &Graph{
		NumTasks:      n,
		NumProcessors: numProcessors,
		Comp:          comp,
		Comm:          comm,
		succ:          make([][]int, n),
		pred:          make([][]int, n),
		avg:           make([]float64, n),
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, c := range comp[i] {
			sum += c
		}
		g.avg[i] = sum / float64(numProcessors)

		for j := 0; j < n; j++ {
			if comm[i][j] == NoEdge {
				continue
			}
			g.succ[i] = append(g.succ[i], j)
			g.pred[j] = append(g.pred[j], i)
		}
	}

	for i := 0; i < n; i++ {
		if len(g.pred[i]) == 0 {
			g.roots = append(g.roots, i)
		}
		if len(g.succ[i]) == 0 {
			g.leaves = append(g.leaves, i)
		}
	}

	order, ok := g.topoSort()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrCycle, g.DetectCycle())
	}
	g.order = order

	return g, nil
}

// Validate checks the preconditions the analyzers rely on: non-negative
// costs, task 0 as the only source and task N-1 as the only sink.
func (g *Graph) Validate() error {
	for i := 0; i < g.NumTasks; i++ {
		for p, c := range g.Comp[i] {
			if c < 0 {
				return fmt.Errorf("%w: computation cost of task %d on processor %d is %g", ErrNegativeCost, i, p, c)
			}
		}
		for j, c := range g.Comm[i] {
			if c != NoEdge && c < 0 {
				return fmt.Errorf("%w: communication cost %d -> %d is %g", ErrNegativeCost, i, j, c)
			}
		}
	}

	if len(g.roots) != 1 || g.roots[0] != 0 {
		return fmt.Errorf("%w: tasks without predecessors are %v", ErrSource, g.roots)
	}
	if len(g.leaves) != 1 || g.leaves[0] != g.NumTasks-1 {
		return fmt.Errorf("%w: tasks without successors are %v", ErrSink, g.leaves)
	}
	return nil
}

// topoSort performs Kahn's algorithm. Roots are seeded and successors are
// released in index order, so the result is deterministic.
func (g *Graph) topoSort() ([]int, bool) {
	inDegree := make([]int, g.NumTasks)
	for i := range inDegree {
		inDegree[i] = len(g.pred[i])
	}

	queue := append([]int(nil), g.roots...)
	order := make([]int, 0, g.NumTasks)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, s := range g.succ[node] {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return order, len(order) == g.NumTasks
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *Graph) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, g.NumTasks)
	parent := make([]int, g.NumTasks)

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range g.succ[node] {
			if color[next] == gray {
				cycle := []int{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for id := 0; id < g.NumTasks; id++ {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// HasEdge reports whether there is a precedence edge from -> to.
func (g *Graph) HasEdge(from, to int) bool {
	return g.Comm[from][to] != NoEdge
}

// CommCost returns the communication cost of edge from -> to when the two
// tasks run on processors pFrom and pTo. Same-processor transfers are free.
func (g *Graph) CommCost(from, to, pFrom, pTo int) float64 {
	if pFrom == pTo {
		return 0
	}
	return g.Comm[from][to]
}

// Succ returns the successors of task t in ascending order. The slice is
// shared and must not be modified.
func (g *Graph) Succ(t int) []int { return g.succ[t] }

// Pred returns the predecessors of task t in ascending order. The slice is
// shared and must not be modified.
func (g *Graph) Pred(t int) []int { return g.pred[t] }

// AvgComp returns the mean computation cost of task t over all processors.
func (g *Graph) AvgComp(t int) float64 { return g.avg[t] }

// Order returns the tasks in topological order, source first. The slice is
// shared and must not be modified.
func (g *Graph) Order() []int { return g.order }

// Source returns the entry task.
func (g *Graph) Source() int { return 0 }

// Sink returns the exit task.
func (g *Graph) Sink() int { return g.NumTasks - 1 }

// Roots returns tasks without predecessors.
func (g *Graph) Roots() []int { return g.roots }

// Leaves returns tasks without successors.
func (g *Graph) Leaves() []int { return g.leaves }

// EdgeCount returns the number of precedence edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, s := range g.succ {
		n += len(s)
	}
	return n
}

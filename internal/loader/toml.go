package loader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

type tomlProblem struct {
	NumTasks      int         `toml:"num_tasks,omitempty"`
	NumProcessors int         `toml:"num_processors"`
	CompCost      [][]float64 `toml:"comp_cost"`
	EdgeCost      [][]float64 `toml:"edge_cost,omitempty"`
	Edges         []Edge      `toml:"edges,omitempty"`
}

// ParseTOML decodes a TOML problem:
//
//	num_processors = 2
//	comp_cost = [[2.0, 2.0], [2.0, 2.0]]
//
//	[[edges]]
//	from = 0
//	to = 1
//	cost = 1.0
//
// TOML has no null, so a matrix must use the no-edge value.
func ParseTOML(data []byte, opts Options) (*Problem, error) {
	var tp tomlProblem
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return assemble(tp.NumTasks, tp.NumProcessors, tp.CompCost, tp.EdgeCost, tp.Edges, opts)
}

// WriteTOML encodes g as a TOML problem with an edge list.
func WriteTOML(w io.Writer, g *graph.Graph) error {
	out := tomlProblem{
		NumTasks:      g.NumTasks,
		NumProcessors: g.NumProcessors,
		CompCost:      g.Comp,
		Edges:         edgeList(g.Comm),
	}
	return toml.NewEncoder(w).Encode(out)
}

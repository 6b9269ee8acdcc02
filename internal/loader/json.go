package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/tidwall/gjson"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// ParseJSON decodes a JSON problem:
//
//	{"num_processors": 2,
//	 "comp_cost": [[2, 2], [2, 2]],
//	 "edge_cost": [[null, 1], [null, null]]}
func ParseJSON(data []byte, opts Options) (*Problem, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrFormat)
	}
	root := gjson.ParseBytes(data)

	comp, err := matrixField(root, "comp_cost", false, 0)
	if err != nil {
		return nil, err
	}

	var matrix [][]float64
	if v := root.Get("edge_cost"); v.Exists() {
		matrix, err = matrixField(root, "edge_cost", true, opts.noEdge())
		if err != nil {
			return nil, err
		}
	}

	var edges []Edge
	if v := root.Get("edges"); v.Exists() {
		if !v.IsArray() {
			return nil, fmt.Errorf("%w: edges must be an array", ErrFormat)
		}
		edges = []Edge{}
		for i, e := range v.Array() {
			from, to, cost := e.Get("from"), e.Get("to"), e.Get("cost")
			if from.Type != gjson.Number || to.Type != gjson.Number || cost.Type != gjson.Number {
				return nil, fmt.Errorf("%w: edges[%d] needs numeric from, to and cost", ErrFormat, i)
			}
			if from.Num != math.Trunc(from.Num) || to.Num != math.Trunc(to.Num) {
				return nil, fmt.Errorf("%w: edges[%d] from and to must be integers", ErrFormat, i)
			}
			edges = append(edges, Edge{From: int(from.Int()), To: int(to.Int()), Cost: cost.Float()})
		}
	}

	return assemble(
		int(root.Get("num_tasks").Int()),
		int(root.Get("num_processors").Int()),
		comp, matrix, edges, opts,
	)
}

// matrixField reads a two-dimensional numeric array. When nullable, null
// entries decode to the sentinel.
func matrixField(root gjson.Result, key string, nullable bool, sentinel float64) ([][]float64, error) {
	v := root.Get(key)
	if !v.Exists() {
		return nil, fmt.Errorf("%w: %s is missing", ErrFormat, key)
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%w: %s must be an array of arrays", ErrFormat, key)
	}

	var out [][]float64
	for i, row := range v.Array() {
		if !row.IsArray() {
			return nil, fmt.Errorf("%w: %s[%d] must be an array", ErrFormat, key, i)
		}
		vals := make([]float64, 0, len(row.Array()))
		for j, cell := range row.Array() {
			switch {
			case cell.Type == gjson.Number:
				vals = append(vals, cell.Float())
			case cell.Type == gjson.Null && nullable:
				vals = append(vals, sentinel)
			default:
				return nil, fmt.Errorf("%w: %s[%d][%d] is %s, want a number", ErrFormat, key, i, j, cell.Type)
			}
		}
		out = append(out, vals)
	}
	return out, nil
}

type jsonProblem struct {
	NumTasks      int          `json:"num_tasks"`
	NumProcessors int          `json:"num_processors"`
	CompCost      [][]float64  `json:"comp_cost"`
	EdgeCost      [][]*float64 `json:"edge_cost"`
}

// WriteJSON encodes g as an indented JSON problem with null for missing edges.
func WriteJSON(w io.Writer, g *graph.Graph) error {
	out := jsonProblem{
		NumTasks:      g.NumTasks,
		NumProcessors: g.NumProcessors,
		CompCost:      g.Comp,
		EdgeCost:      make([][]*float64, g.NumTasks),
	}
	for i := range out.EdgeCost {
		out.EdgeCost[i] = make([]*float64, g.NumTasks)
		for j, c := range g.Comm[i] {
			c := c
			if c != graph.NoEdge {
				out.EdgeCost[i][j] = &c
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

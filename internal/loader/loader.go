// Package loader reads and writes scheduling problems as JSON or TOML.
//
// Both formats carry the processor count, a task x processor computation cost
// matrix and the edges, either as a task x task matrix ("edge_cost") or as a
// list of {from, to, cost} entries ("edges"). In a matrix, the configured
// no-edge value (and null in JSON) means there is no edge.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
)

// ErrFormat is returned for files that cannot be decoded into a problem.
var ErrFormat = errors.New("malformed problem file")

// Format is a problem file encoding.
type Format string

const (
	JSON Format = "json"
	TOML Format = "toml"
)

// Options controls decoding.
type Options struct {
	// NoEdge is the matrix value meaning "no edge". Zero means graph.NoEdge.
	NoEdge float64
}

func (o Options) noEdge() float64 {
	if o.NoEdge == 0 {
		return graph.NoEdge
	}
	return o.NoEdge
}

// Edge is a single precedence edge in list form.
type Edge struct {
	From int     `json:"from" toml:"from"`
	To   int     `json:"to" toml:"to"`
	Cost float64 `json:"cost" toml:"cost"`
}

// Problem is the decoded content of a problem file before it becomes a graph.
type Problem struct {
	Name          string
	NumTasks      int
	NumProcessors int
	Comp          [][]float64
	Comm          [][]float64
}

// Graph builds the graph for p. Shape and cycles are checked; scheduling
// preconditions are left to graph.Validate.
func (p *Problem) Graph() (*graph.Graph, error) {
	g, err := graph.New(p.NumProcessors, p.Comp, p.Comm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	return g, nil
}

// DetectFormat picks the format from the file extension, falling back to
// sniffing the content.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON
	case ".toml":
		return TOML
	}
	if gjson.ValidBytes(data) {
		return JSON
	}
	return TOML
}

// Load reads and decodes the problem file at path.
func Load(path string, opts Options) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem: %w", err)
	}

	var p *Problem
	switch DetectFormat(path, data) {
	case JSON:
		p, err = ParseJSON(data, opts)
	default:
		p, err = ParseTOML(data, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p, nil
}

// LoadGraph loads path and builds its graph.
func LoadGraph(path string, opts Options) (*graph.Graph, *Problem, error) {
	p, err := Load(path, opts)
	if err != nil {
		return nil, nil, err
	}
	g, err := p.Graph()
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

// Write encodes g in format f.
func Write(w io.Writer, g *graph.Graph, f Format) error {
	switch f {
	case JSON:
		return WriteJSON(w, g)
	case TOML:
		return WriteTOML(w, g)
	}
	return fmt.Errorf("unknown format %q", f)
}

// assemble checks the declared counts and turns an edge list or matrix into
// a communication matrix holding graph.NoEdge for missing edges.
func assemble(numTasks, numProcs int, comp, matrix [][]float64, edges []Edge, opts Options) (*Problem, error) {
	if len(comp) == 0 {
		return nil, fmt.Errorf("%w: comp_cost is missing or empty", ErrFormat)
	}
	if numTasks != 0 && numTasks != len(comp) {
		return nil, fmt.Errorf("%w: num_tasks is %d but comp_cost has %d rows", ErrFormat, numTasks, len(comp))
	}
	n := len(comp)
	if numProcs == 0 {
		numProcs = len(comp[0])
	}
	if matrix != nil && edges != nil {
		return nil, fmt.Errorf("%w: both edge_cost and edges are set", ErrFormat)
	}

	comm := make([][]float64, n)
	for i := range comm {
		comm[i] = make([]float64, n)
		for j := range comm[i] {
			comm[i][j] = graph.NoEdge
		}
	}

	if matrix != nil {
		if len(matrix) != n {
			return nil, fmt.Errorf("%w: edge_cost has %d rows, want %d", ErrFormat, len(matrix), n)
		}
		sentinel := opts.noEdge()
		for i, row := range matrix {
			if len(row) != n {
				return nil, fmt.Errorf("%w: edge_cost row %d has %d entries, want %d", ErrFormat, i, len(row), n)
			}
			for j, v := range row {
				if v == sentinel {
					continue
				}
				if v < 0 {
					return nil, fmt.Errorf("%w: edge_cost[%d][%d] is %g; only %g means no edge", ErrFormat, i, j, v, sentinel)
				}
				comm[i][j] = v
			}
		}
	}

	for _, e := range edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, fmt.Errorf("%w: edge %d -> %d outside 0..%d", ErrFormat, e.From, e.To, n-1)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("%w: self edge on task %d", ErrFormat, e.From)
		}
		if e.Cost < 0 {
			return nil, fmt.Errorf("%w: edge %d -> %d has negative cost %g", ErrFormat, e.From, e.To, e.Cost)
		}
		comm[e.From][e.To] = e.Cost
	}

	return &Problem{
		NumTasks:      n,
		NumProcessors: numProcs,
		Comp:          comp,
		Comm:          comm,
	}, nil
}

// edgeList returns the edges of a communication matrix in row-major order.
func edgeList(comm [][]float64) []Edge {
	var edges []Edge
	for i, row := range comm {
		for j, v := range row {
			if v != graph.NoEdge {
				edges = append(edges, Edge{From: i, To: j, Cost: v})
			}
		}
	}
	return edges
}

package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/planner"
)

// --- Graph types served to visualisers ---

type GraphNode struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	Processor  int     `json:"processor"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Rank       float64 `json:"rank"`
	IsCritical bool    `json:"is_critical"`
	IsAdjacent bool    `json:"is_adjacent"`
}

type GraphEdge struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	Cost       float64 `json:"cost"`
	IsCritical bool    `json:"is_critical"`
}

type GraphMetadata struct {
	Problem       string  `json:"problem"`
	UpdatedAt     string  `json:"updated_at"`
	NumTasks      int     `json:"num_tasks"`
	NumProcessors int     `json:"num_processors"`
	Makespan      float64 `json:"makespan"`
}

type Graph struct {
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	Processors   [][]int       `json:"processors"`
	CriticalPath []int         `json:"critical_path"`
	Metadata     GraphMetadata `json:"metadata"`
}

// ToGraph converts a scheduled problem into the normalised Graph the viewer
// serves.
func ToGraph(name string, g *graph.Graph, plan *planner.Plan) *Graph {
	cp := plan.CPM
	s := plan.Schedule

	nodes := make([]GraphNode, 0, g.NumTasks)
	for t := 0; t < g.NumTasks; t++ {
		a := s.Tasks[t]
		nodes = append(nodes, GraphNode{
			ID:         t,
			Label:      fmt.Sprintf("T%d", t+1),
			Processor:  a.Processor,
			Start:      a.Start,
			End:        a.End,
			Rank:       plan.Ranks[t],
			IsCritical: cp.Critical[t],
			IsAdjacent: cp.Adjacent[t],
		})
	}

	edges := []GraphEdge{}
	for from := 0; from < g.NumTasks; from++ {
		for _, to := range g.Succ(from) {
			edges = append(edges, GraphEdge{
				From:       from,
				To:         to,
				Cost:       g.Comm[from][to],
				IsCritical: cp.Critical[from] && cp.Critical[to],
			})
		}
	}

	procs := make([][]int, len(s.Processors))
	for p, tl := range s.Processors {
		procs[p] = tl.Tasks
	}

	return &Graph{
		Nodes:        nodes,
		Edges:        edges,
		Processors:   procs,
		CriticalPath: cp.CriticalPath,
		Metadata: GraphMetadata{
			Problem:       name,
			UpdatedAt:     time.Now().Format(time.RFC3339),
			NumTasks:      g.NumTasks,
			NumProcessors: g.NumProcessors,
			Makespan:      s.Makespan,
		},
	}
}

// --- HTTP server ---

// Server holds the graph currently being served and the websocket clients
// following it.
type Server struct {
	mu    sync.RWMutex
	graph *Graph
	subs  map[chan *Graph]struct{}
}

// NewServer returns a server with no graph loaded.
func NewServer() *Server {
	return &Server{subs: make(map[chan *Graph]struct{})}
}

// Set replaces the served graph and pushes it to every subscriber. A slow
// subscriber only ever sees the newest graph.
func (s *Server) Set(g *Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- g
	}
}

func (s *Server) subscribe() chan *Graph {
	ch := make(chan *Graph, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if s.graph != nil {
		ch <- s.graph
	}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan *Graph) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// Get returns the served graph, or nil.
func (s *Server) Get() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Handler routes GET/POST /graph, GET /schedule and the /ws update stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handlePostGraph(w, r)
		case http.MethodGet:
			s.handleGetGraph(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleGetSchedule(w, r)
	})

	mux.HandleFunc("/ws", s.handleWS)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ipeft viewer: GET /graph for the task graph, GET /schedule for processor timelines, /ws for live updates.\n"))
	})

	return mux
}

func (s *Server) handlePostGraph(w http.ResponseWriter, r *http.Request) {
	var g Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.Set(&g)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(&g)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Get()
	if g == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

// handleGetSchedule serves only the placement: per-processor timelines with
// start and end times, plus the makespan.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	g := s.Get()
	if g == nil {
		http.Error(w, "no graph loaded", http.StatusNotFound)
		return
	}

	type slot struct {
		Task  int     `json:"task"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	type out struct {
		Makespan   float64  `json:"makespan"`
		Processors [][]slot `json:"processors"`
	}

	o := out{Makespan: g.Metadata.Makespan, Processors: make([][]slot, len(g.Processors))}
	for p, ids := range g.Processors {
		o.Processors[p] = []slot{}
		for _, id := range ids {
			if id < 0 || id >= len(g.Nodes) {
				continue
			}
			n := g.Nodes[id]
			o.Processors[p] = append(o.Processors[p], slot{Task: id, Start: n.Start, End: n.End})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams the served graph as JSON text frames: the current one on
// connect, then every replacement.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// The client never sends anything we use; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case g := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(g); err != nil {
				return
			}
		}
	}
}

// Start launches the viewer HTTP server on the given port in the background.
// Returns the base URL (e.g. "http://localhost:7171"). The server shuts down
// when ctx is cancelled.
func Start(ctx context.Context, port int, s *Server) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("listen on port %d: %w", port, err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go srv.Serve(ln)

	addr := fmt.Sprintf("http://localhost:%d", ln.Addr().(*net.TCPAddr).Port)
	return addr, nil
}

// PostGraph sends a Graph to a running viewer server.
func PostGraph(addr string, g *Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	resp, err := http.Post(addr+"/graph", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST /graph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("POST /graph returned %d", resp.StatusCode)
	}

	return nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

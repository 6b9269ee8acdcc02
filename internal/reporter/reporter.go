package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/planner"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/state"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/ui"
)

// ganttSymbols label Gantt cells; task i uses ganttSymbols[i%len].
const ganttSymbols = "123456789abcdefghijklmnopqrstuvwxyz"

// Reporter renders one scheduled problem.
type Reporter struct {
	Name  string
	Graph *graph.Graph
	Plan  *planner.Plan
}

// New creates a new Reporter.
func New(name string, g *graph.Graph, plan *planner.Plan) *Reporter {
	return &Reporter{Name: name, Graph: g, Plan: plan}
}

// PrintSchedule writes a terminal-friendly schedule: one block per processor
// with critical markers, then makespan and critical path.
func (r *Reporter) PrintSchedule(w io.Writer) {
	s := r.Plan.Schedule
	cp := r.Plan.CPM

	fmt.Fprintf(w, "%s %s\n", ui.BoldCyan("Schedule"), ui.Dim(r.Name))
	fmt.Fprintf(w, "%s\n", ui.Cyan("════════════════════════"))
	fmt.Fprintf(w, "Tasks:      %s on %s processors\n\n", ui.Bold(r.Graph.NumTasks), ui.Bold(r.Graph.NumProcessors))

	for p := range s.Processors {
		tl := s.Timeline(p)
		fmt.Fprintf(w, "  %s %s\n", ui.ProcessorLabel(p),
			ui.Dim(fmt.Sprintf("(%d tasks, %.0f%% busy)", len(tl), 100*s.Utilization(p))))
		for _, a := range tl {
			fmt.Fprintf(w, "    %s Task %-4d start = %-10g end = %g\n",
				ui.CriticalMarker(cp.Critical[a.ID], cp.Adjacent[a.ID]), a.ID+1, a.Start, a.End)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Makespan:   %s\n", ui.BoldGreen(fmt.Sprintf("%g", s.Makespan)))
	fmt.Fprintf(w, "Critical:   %s %s\n",
		ui.BoldYellow(joinTasks(cp.CriticalPath, " → ")),
		ui.Dim(fmt.Sprintf("(structural length %g)", cp.Length)))
}

// PrintText writes the plain text view of the schedule.
func (r *Reporter) PrintText(w io.Writer) {
	fmt.Fprint(w, r.Plan.Schedule.String())
}

// PrintGantt writes an ASCII Gantt chart, width cells wide.
func (r *Reporter) PrintGantt(w io.Writer, width int) {
	s := r.Plan.Schedule
	if width <= 0 {
		width = 60
	}

	scale := 0.0
	if s.Makespan > 0 {
		scale = float64(width) / s.Makespan
	}

	for p := range s.Processors {
		row := []byte(strings.Repeat(".", width))
		for _, a := range s.Timeline(p) {
			lo := int(math.Round(a.Start * scale))
			hi := int(math.Round(a.End * scale))
			if hi == lo && a.End > a.Start {
				hi = lo + 1
			}
			if hi > width {
				hi = width
			}
			for c := lo; c < hi; c++ {
				row[c] = ganttSymbols[a.ID%len(ganttSymbols)]
			}
		}
		label := ui.ProcessorColor(p)(fmt.Sprintf("%-3s", fmt.Sprintf("P%d", p+1)))
		fmt.Fprintf(w, "%s |%s|\n", label, row)
	}
	fmt.Fprintf(w, "%s0%s%g\n", strings.Repeat(" ", 5), strings.Repeat(" ", width), s.Makespan)
}

// PrintAnalysis writes the analysis tables: per-task bounds, flags and rank,
// followed by the PCT and CNCT matrices.
func (r *Reporter) PrintAnalysis(w io.Writer) {
	g, plan := r.Graph, r.Plan
	cp := plan.CPM

	pos := make([]int, len(plan.Order))
	for i, id := range plan.Order {
		pos[id] = i
	}

	fmt.Fprintf(w, "%s %s\n\n", ui.BoldCyan("Analysis"), ui.Dim(r.Name))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tAVG\tAEST\tALST\tSLACK\tCN\tCNP\tRANK\tORDER")
	for t := 0; t < g.NumTasks; t++ {
		fmt.Fprintf(tw, "%d\t%g\t%g\t%g\t%g\t%s\t%s\t%g\t%d\n",
			t+1, g.AvgComp(t), cp.AEST[t], cp.ALST[t], cp.Slack(t),
			yesNo(cp.Critical[t]), yesNo(cp.Adjacent[t]), plan.Ranks[t], pos[t]+1)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nCritical path: %s (length %g)\n", joinTasks(cp.CriticalPath, " → "), cp.Length)

	printMatrix(w, "PCT", plan.PCT.Cost)
	printMatrix(w, "CNCT", plan.CNCT.Cost)
}

func printMatrix(w io.Writer, title string, m [][]float64) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold(title))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"TASK"}
	if len(m) > 0 {
		for p := range m[0] {
			header = append(header, fmt.Sprintf("P%d", p+1))
		}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for t, row := range m {
		cells := []string{fmt.Sprintf("%d", t+1)}
		for _, v := range row {
			cells = append(cells, fmt.Sprintf("%g", v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// WriteDOT writes the task graph in Graphviz DOT format. Nodes carry their
// placement; critical tasks and edges between them are highlighted.
func (r *Reporter) WriteDOT(w io.Writer) error {
	g, plan := r.Graph, r.Plan
	cp := plan.CPM

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", r.Name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")

	for t := 0; t < g.NumTasks; t++ {
		a := plan.Schedule.Tasks[t]
		attrs := fmt.Sprintf(`label="T%d\nP%d [%g, %g]"`, t+1, a.Processor+1, a.Start, a.End)
		switch {
		case cp.Critical[t]:
			attrs += `, style="rounded,bold", color=red`
		case cp.Adjacent[t]:
			attrs += `, color=orange`
		}
		fmt.Fprintf(&b, "  t%d [%s];\n", t, attrs)
	}

	b.WriteString("\n")

	for from := 0; from < g.NumTasks; from++ {
		for _, to := range g.Succ(from) {
			attrs := fmt.Sprintf(`label="%g"`, g.Comm[from][to])
			if cp.Critical[from] && cp.Critical[to] {
				attrs += `, color=red, penwidth=2`
			}
			fmt.Fprintf(&b, "  t%d -> t%d [%s];\n", from, to, attrs)
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type taskJSON struct {
	ID        int     `json:"id"`
	Processor int     `json:"processor"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Rank      float64 `json:"rank"`
	Critical  bool    `json:"critical"`
	Adjacent  bool    `json:"adjacent"`
}

type scheduleJSON struct {
	Problem       string     `json:"problem"`
	NumTasks      int        `json:"num_tasks"`
	NumProcessors int        `json:"num_processors"`
	Makespan      float64    `json:"makespan"`
	CriticalPath  []int      `json:"critical_path"`
	Order         []int      `json:"order"`
	Tasks         []taskJSON `json:"tasks"`
	Processors    [][]int    `json:"processors"`
}

// JSON returns the machine-readable schedule. Ids are 0-based.
func (r *Reporter) JSON() ([]byte, error) {
	s := r.Plan.Schedule
	cp := r.Plan.CPM

	o := scheduleJSON{
		Problem:       r.Name,
		NumTasks:      r.Graph.NumTasks,
		NumProcessors: r.Graph.NumProcessors,
		Makespan:      s.Makespan,
		CriticalPath:  cp.CriticalPath,
		Order:         r.Plan.Order,
	}
	for _, a := range s.Tasks {
		o.Tasks = append(o.Tasks, taskJSON{
			ID:        a.ID,
			Processor: a.Processor,
			Start:     a.Start,
			End:       a.End,
			Rank:      r.Plan.Ranks[a.ID],
			Critical:  cp.Critical[a.ID],
			Adjacent:  cp.Adjacent[a.ID],
		})
	}
	for _, tl := range s.Processors {
		o.Processors = append(o.Processors, tl.Tasks)
	}

	return json.MarshalIndent(o, "", "  ")
}

// Summary returns a one-block overview of a batch of scheduled problems.
func Summary(results []planner.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", ui.BoldCyan("Batch Complete"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("══════════════"))

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBLEM\tTASKS\tPROCESSORS\tMAKESPAN\tCRITICAL")
	for _, res := range results {
		s := res.Plan.Schedule
		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%g\n",
			res.Name, len(s.Tasks), len(s.Processors), s.Makespan, res.Plan.CPM.Length)
	}
	tw.Flush()

	return b.String()
}

// PrintRun writes a saved run, as shown by the show command.
func PrintRun(w io.Writer, run *state.Run) {
	fmt.Fprintf(w, "%s %s\n", ui.StatusIcon(string(run.Status)), ui.BoldCyan("Run "+run.ID))
	fmt.Fprintf(w, "Problem:    %s %s\n", ui.Bold(run.Problem), ui.Dim(run.Source))
	fmt.Fprintf(w, "Created:    %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))

	if run.Status == state.StatusFailed {
		fmt.Fprintf(w, "Status:     %s\n", ui.BoldRed("failed"))
		fmt.Fprintf(w, "Error:      %s\n", ui.Red(run.Error))
		return
	}

	fmt.Fprintf(w, "Status:     %s\n", ui.BoldGreen(string(run.Status)))
	fmt.Fprintf(w, "Tasks:      %d on %d processors\n", run.NumTasks, run.NumProcessors)
	fmt.Fprintf(w, "Makespan:   %s\n", ui.Bold(fmt.Sprintf("%g", run.Makespan)))
	fmt.Fprintf(w, "Critical:   %s\n", ui.BoldYellow(joinTasks(run.CriticalPath, " → ")))
	fmt.Fprintf(w, "Tolerance:  rel=%g abs=%g\n", run.Tolerance.Rel, run.Tolerance.Abs)
	fmt.Fprintf(w, "Elapsed:    %s\n\n", run.Elapsed)
	if run.Schedule != nil {
		fmt.Fprint(w, run.Schedule.String())
	}
}

// joinTasks formats 0-based task ids as 1-based labels.
func joinTasks(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id+1)
	}
	return strings.Join(parts, sep)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}

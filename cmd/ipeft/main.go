package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/config"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/loader"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/logging"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/planner"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/reporter"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/state"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/ui"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/viewer"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/watch"
)

var (
	flagConfig  string
	flagVerbose bool
	flagJSON    bool
	flagWatch   bool
	flagWidth   int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ipeft",
		Short: "Schedule task graphs onto heterogeneous processors",
		Long: `ipeft reads a task graph with per-processor computation costs and
inter-task communication costs, finds its critical path, and builds a
static schedule with lookahead list scheduling.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.PrintLogo(cmd.OutOrStdout())
			return cmd.Help()
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default .ipeft.toml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	pf.BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	pf.Bool("no-color", false, "Disable colored output")
	bindFlag("no_color", pf, "no-color")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(convertCmd())

	return rootCmd
}

func bindFlag(key string, fs *pflag.FlagSet, name string) {
	_ = viper.BindPFlag(key, fs.Lookup(name))
}

// session is the resolved configuration shared by every command.
type session struct {
	cfg   config.Config
	log   zerolog.Logger
	store *state.Store
}

func newSession() (*session, error) {
	if err := config.Init(flagConfig); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.NoColor {
		ui.SetNoColor(true)
	}

	level := cfg.LogLevel
	if flagVerbose {
		level = "debug"
	}
	var log zerolog.Logger
	if flagJSON {
		log, err = logging.JSON(os.Stderr, level)
	} else {
		log, err = logging.New(os.Stderr, level, cfg.NoColor)
	}
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, log: log, store: state.NewStore(cfg.StateDir)}, nil
}

func (s *session) plannerConfig() planner.Config {
	return planner.Config{Tolerance: s.cfg.CPMTolerance(), Logger: s.log}
}

// loadGraph reads a problem file and checks every scheduling precondition.
func (s *session) loadGraph(path string) (*graph.Graph, string, error) {
	g, p, err := loader.LoadGraph(path, loader.Options{NoEdge: s.cfg.NoEdge})
	if err != nil {
		return nil, "", err
	}
	if err := g.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	s.log.Debug().Str("file", path).Int("tasks", g.NumTasks).Int("processors", g.NumProcessors).
		Int("edges", g.EdgeCount()).Msg("problem loaded")
	return g, p.Name, nil
}

// plan loads and schedules a single problem.
func (s *session) plan(path string) (*reporter.Reporter, error) {
	g, name, err := s.loadGraph(path)
	if err != nil {
		return nil, err
	}
	p, err := planner.Generate(g, s.plannerConfig().WithProblem(name))
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	return reporter.New(name, g, p), nil
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule FILE...",
		Short: "Schedule one or more problem files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !flagWatch {
				return s.scheduleFiles(cmd.Context(), out, args)
			}
			if len(args) != 1 {
				return errors.New("--watch takes exactly one problem file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.scheduleFiles(ctx, out, args); err != nil {
				s.log.Error().Err(err).Msg("initial schedule failed")
			}
			fmt.Fprintf(out, "%s %s\n", ui.Cyan("Watching"), ui.Dim(args[0]))
			return watch.Watch(ctx, args[0], s.log, func() error {
				return s.scheduleFiles(ctx, out, args)
			})
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", false, "Re-schedule whenever the problem file changes")
	cmd.Flags().String("format", "text", "Output format (text, pretty, json, gantt, dot)")
	cmd.Flags().Int("max-parallel", 4, "Max problems scheduled concurrently")
	cmd.Flags().IntVar(&flagWidth, "width", 60, "Gantt chart width in cells")
	bindFlag("format", cmd.Flags(), "format")
	bindFlag("max_parallel", cmd.Flags(), "max-parallel")

	return cmd
}

// scheduleFiles schedules every file as one batch, saves a run per problem
// and renders each in the configured format.
func (s *session) scheduleFiles(ctx context.Context, out io.Writer, paths []string) error {
	problems := make([]planner.Problem, 0, len(paths))
	for _, path := range paths {
		g, name, err := s.loadGraph(path)
		if err != nil {
			s.saveRun(state.FailedRun(problemName(path), path, err))
			return err
		}
		problems = append(problems, planner.Problem{Name: name, Graph: g})
	}

	results, err := planner.GenerateAll(ctx, problems, s.plannerConfig(), s.cfg.MaxParallel)
	if err != nil {
		return err
	}

	format := s.cfg.Format
	if flagJSON {
		format = "json"
	}

	for i, res := range results {
		s.saveRun(state.NewRun(res.Name, paths[i], s.cfg.CPMTolerance(), res.Plan))
		rpt := reporter.New(res.Name, problems[i].Graph, res.Plan)
		if err := render(out, rpt, format); err != nil {
			return err
		}
	}

	if len(results) > 1 && format != "json" {
		fmt.Fprint(out, reporter.Summary(results))
	}
	return nil
}

func (s *session) saveRun(r *state.Run) {
	if err := s.store.Save(r); err != nil {
		s.log.Warn().Err(err).Str("dir", s.store.Dir()).Msg("could not save run")
	}
}

func problemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func render(out io.Writer, rpt *reporter.Reporter, format string) error {
	switch format {
	case "json":
		data, err := rpt.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "pretty":
		rpt.PrintSchedule(out)
	case "gantt":
		rpt.PrintGantt(out, flagWidth)
	case "dot":
		return rpt.WriteDOT(out)
	default:
		rpt.PrintText(out)
	}
	return nil
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print critical path, lookahead tables and ranks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			rpt, err := s.plan(args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(cmd.OutOrStdout(), rpt.Plan)
			}
			rpt.PrintAnalysis(cmd.OutOrStdout())
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "viz FILE",
		Short: "Draw the schedule as a Gantt chart or DOT graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			rpt, err := s.plan(args[0])
			if err != nil {
				return err
			}

			switch flagFormat {
			case "dot":
				return rpt.WriteDOT(cmd.OutOrStdout())
			case "gantt":
				rpt.PrintGantt(cmd.OutOrStdout(), flagWidth)
				return nil
			}
			return fmt.Errorf("unknown viz format %q (use gantt or dot)", flagFormat)
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "gantt", "Output format (gantt, dot)")
	cmd.Flags().IntVar(&flagWidth, "width", 60, "Gantt chart width in cells")

	return cmd
}

func validateCmd() *cobra.Command {
	var flagSchedule bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a problem file, and optionally the schedule built from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			g, name, err := s.loadGraph(args[0])
			if err != nil {
				fmt.Fprintf(out, "%s %s\n", ui.Red("✗"), err)
				return err
			}
			fmt.Fprintf(out, "%s %s: %d tasks, %d edges, %d processors\n",
				ui.Green("✓"), ui.Bold(name), g.NumTasks, g.EdgeCount(), g.NumProcessors)

			if !flagSchedule {
				return nil
			}

			p, err := planner.Generate(g, s.plannerConfig().WithProblem(name))
			if err != nil {
				return err
			}
			if err := p.Schedule.Validate(g); err != nil {
				fmt.Fprintf(out, "%s schedule: %s\n", ui.Red("✗"), err)
				return err
			}
			fmt.Fprintf(out, "%s schedule: makespan %g\n", ui.Green("✓"), p.Schedule.Makespan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagSchedule, "schedule", false, "Also build and check the schedule")

	return cmd
}

func showCmd() *cobra.Command {
	var flagPrevious bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the last saved run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}

			load := s.store.Load
			if flagPrevious {
				load = s.store.LoadPrevious
			}
			run, err := load()
			if errors.Is(err, state.ErrNoRun) {
				return fmt.Errorf("%w in %s (run ipeft schedule first)", err, s.store.Dir())
			}
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(cmd.OutOrStdout(), run)
			}
			reporter.PrintRun(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagPrevious, "previous", false, "Show the run before the last one")

	return cmd
}

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view FILE",
		Short: "Serve the schedule over HTTP for a visualiser",
		Long: `Schedules FILE and serves the result on GET /graph and GET /schedule.
If a viewer is already listening on the port, the new graph is posted to it
instead. With --watch the served graph follows changes to FILE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := args[0]

			build := func() (*viewer.Graph, error) {
				rpt, err := s.plan(path)
				if err != nil {
					return nil, err
				}
				return viewer.ToGraph(rpt.Name, rpt.Graph, rpt.Plan), nil
			}

			vg, err := build()
			if err != nil {
				return err
			}

			port := s.cfg.View.Port
			hostPort := fmt.Sprintf("localhost:%d", port)
			if viewer.IsPortOpen(hostPort) {
				if err := viewer.PostGraph("http://"+hostPort, vg); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Graph sent to viewer on port %d\n", ui.Green("✓"), port)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := viewer.NewServer()
			srv.Set(vg)
			url, err := viewer.Start(ctx, port, srv)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Serving %s on %s\n", ui.Green("✓"), ui.Bold(vg.Metadata.Problem), ui.Cyan(url+"/graph"))

			if flagWatch {
				return watch.Watch(ctx, path, s.log, func() error {
					vg, err := build()
					if err != nil {
						return err
					}
					srv.Set(vg)
					return nil
				})
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().Int("port", 7171, "Viewer port")
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "Reload the served graph when FILE changes")
	bindFlag("view.port", cmd.Flags(), "port")

	return cmd
}

func convertCmd() *cobra.Command {
	var (
		flagTo     string
		flagOutput string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Rewrite a problem file as JSON or TOML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			g, _, err := loader.LoadGraph(args[0], loader.Options{NoEdge: s.cfg.NoEdge})
			if err != nil {
				return err
			}

			f := loader.Format(flagTo)
			if f != loader.JSON && f != loader.TOML {
				return fmt.Errorf("unknown target format %q (use json or toml)", flagTo)
			}

			if flagOutput == "" {
				return loader.Write(cmd.OutOrStdout(), g, f)
			}
			file, err := os.Create(flagOutput)
			if err != nil {
				return err
			}
			defer file.Close()
			return loader.Write(file, g, f)
		},
	}

	cmd.Flags().StringVar(&flagTo, "to", "json", "Target format (json, toml)")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Write to a file instead of stdout")

	return cmd
}

// --- Output helpers ---

func outputJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

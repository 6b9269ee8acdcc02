package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/graph"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/state"
)

const chainJSON = `{
  "num_tasks": 3,
  "num_processors": 2,
  "comp_cost": [[2, 2], [2, 2], [2, 2]],
  "edge_cost": [[-1, 1, -1], [-1, -1, 1], [-1, -1, -1]]
}`

const forkJoinTOML = `num_processors = 2
comp_cost = [[2.0, 2.0], [2.0, 2.0], [2.0, 2.0], [2.0, 2.0]]

[[edges]]
from = 0
to = 1
cost = 1.0

[[edges]]
from = 0
to = 2
cost = 1.0

[[edges]]
from = 1
to = 3
cost = 1.0

[[edges]]
from = 2
to = 3
cost = 1.0
`

// twoSources has tasks 0 and 1 both without predecessors.
const twoSources = `{
  "num_processors": 1,
  "comp_cost": [[1], [1], [1]],
  "edge_cost": [[-1, -1, 1], [-1, -1, 1], [-1, -1, -1]]
}`

// setup moves into a fresh directory holding the given files.
func setup(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("IPEFT_STATE_DIR", filepath.Join(dir, ".state"))
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSchedule_Text(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON})

	out, err := execute(t, "schedule", "chain.json")
	require.NoError(t, err)

	want := "Processor 1:\n" +
		"  Task 1: start = 0, end = 2\n" +
		"  Task 2: start = 2, end = 4\n" +
		"  Task 3: start = 4, end = 6\n" +
		"Processor 2:\n" +
		"Makespan = 6\n"
	assert.Equal(t, want, out)
}

func TestSchedule_JSON(t *testing.T) {
	setup(t, map[string]string{"forkjoin.toml": forkJoinTOML})

	out, err := execute(t, "--json", "schedule", "forkjoin.toml")
	require.NoError(t, err)

	var got struct {
		Problem  string  `json:"problem"`
		Makespan float64 `json:"makespan"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "forkjoin", got.Problem)
	assert.Equal(t, 7.0, got.Makespan)
}

func TestSchedule_Batch(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON, "forkjoin.toml": forkJoinTOML})

	out, err := execute(t, "schedule", "--no-color", "--max-parallel", "2", "chain.json", "forkjoin.toml")
	require.NoError(t, err)
	assert.Contains(t, out, "Makespan = 6")
	assert.Contains(t, out, "Makespan = 7")
	assert.Contains(t, out, "Batch Complete")
}

func TestSchedule_SavesRun(t *testing.T) {
	dir := setup(t, map[string]string{"chain.json": chainJSON})

	_, err := execute(t, "schedule", "chain.json")
	require.NoError(t, err)

	run, err := state.NewStore(filepath.Join(dir, ".state")).Load()
	require.NoError(t, err)
	assert.Equal(t, "chain", run.Problem)
	assert.Equal(t, state.StatusScheduled, run.Status)
	assert.Equal(t, 6.0, run.Makespan)

	out, err := execute(t, "show", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
}

func TestSchedule_InvalidProblem(t *testing.T) {
	dir := setup(t, map[string]string{"bad.json": twoSources})

	_, err := execute(t, "schedule", "bad.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrSource), "got %v", err)

	run, err := state.NewStore(filepath.Join(dir, ".state")).Load()
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, run.Status)
	assert.Equal(t, "bad", run.Problem)
}

func TestSchedule_FormatFromConfigFile(t *testing.T) {
	setup(t, map[string]string{
		"chain.json":  chainJSON,
		".ipeft.toml": "format = \"gantt\"\n",
	})

	out, err := execute(t, "schedule", "--no-color", "--width", "12", "chain.json")
	require.NoError(t, err)
	assert.Contains(t, out, "P1  |111122223333|")
}

func TestSchedule_WatchNeedsOneFile(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON, "forkjoin.toml": forkJoinTOML})

	_, err := execute(t, "schedule", "--watch", "chain.json", "forkjoin.toml")
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON})

	out, err := execute(t, "analyze", "--no-color", "chain.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Critical path: 1 → 2 → 3 (length 6)")
	assert.Contains(t, out, "CNCT")
}

func TestViz(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON})

	out, err := execute(t, "viz", "--format", "dot", "chain.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `digraph "chain" {`), out)

	_, err = execute(t, "viz", "--format", "svg", "chain.json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON, "bad.json": twoSources})

	out, err := execute(t, "validate", "--no-color", "--schedule", "chain.json")
	require.NoError(t, err)
	assert.Contains(t, out, "chain: 3 tasks, 2 edges, 2 processors")
	assert.Contains(t, out, "schedule: makespan 6")

	_, err = execute(t, "validate", "bad.json")
	assert.ErrorIs(t, err, graph.ErrSource)
}

func TestShow_NoRun(t *testing.T) {
	setup(t, nil)

	_, err := execute(t, "show")
	assert.ErrorIs(t, err, state.ErrNoRun)
}

func TestConvert(t *testing.T) {
	dir := setup(t, map[string]string{"forkjoin.toml": forkJoinTOML})
	target := filepath.Join(dir, "forkjoin.json")

	_, err := execute(t, "convert", "--to", "json", "--output", target, "forkjoin.toml")
	require.NoError(t, err)

	out, err := execute(t, "schedule", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Makespan = 7")

	_, err = execute(t, "convert", "--to", "yaml", "forkjoin.toml")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	setup(t, map[string]string{"chain.json": chainJSON})
	t.Setenv("IPEFT_MAX_PARALLEL", "0")

	_, err := execute(t, "schedule", "chain.json")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ad-Bean/MicroserviceScheduler/internal/cpm"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/planner"
	"github.com/Ad-Bean/MicroserviceScheduler/internal/schedule"
)

const (
	lastFile   = "last.json"
	historyDir = "history"
)

// ErrNoRun is returned when no run has been saved.
var ErrNoRun = errors.New("no saved run")

// RunStatus represents the outcome of a scheduling run.
type RunStatus string

const (
	StatusScheduled RunStatus = "scheduled"
	StatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one scheduling run.
type Run struct {
	ID            string             `json:"id"`
	Problem       string             `json:"problem"`
	Source        string             `json:"source,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Status        RunStatus          `json:"status"`
	Error         string             `json:"error,omitempty"`
	NumTasks      int                `json:"num_tasks"`
	NumProcessors int                `json:"num_processors"`
	Tolerance     cpm.Tolerance      `json:"tolerance"`
	Makespan      float64            `json:"makespan"`
	CriticalPath  []int              `json:"critical_path,omitempty"`
	Order         []int              `json:"order,omitempty"`
	Schedule      *schedule.Schedule `json:"schedule,omitempty"`
	Elapsed       time.Duration      `json:"elapsed"`
}

// NewRun records a successful plan for the named problem.
func NewRun(problem, source string, tol cpm.Tolerance, plan *planner.Plan) *Run {
	s := plan.Schedule
	return &Run{
		ID:            uuid.NewString(),
		Problem:       problem,
		Source:        source,
		CreatedAt:     time.Now(),
		Status:        StatusScheduled,
		NumTasks:      len(s.Tasks),
		NumProcessors: len(s.Processors),
		Tolerance:     tol,
		Makespan:      s.Makespan,
		CriticalPath:  plan.CPM.CriticalPath,
		Order:         plan.Order,
		Schedule:      s,
		Elapsed:       plan.Elapsed,
	}
}

// FailedRun records a run that could not be scheduled.
func FailedRun(problem, source string, err error) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Problem:   problem,
		Source:    source,
		CreatedAt: time.Now(),
		Status:    StatusFailed,
		Error:     err.Error(),
	}
}

// Store keeps the most recent run in <dir>/last.json and earlier runs under
// <dir>/history/<id>.json.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore returns a store rooted at dir. Nothing is created until Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Save persists r as the latest run, archiving the previous one.
func (s *Store) Save(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.dir, historyDir), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	last := filepath.Join(s.dir, lastFile)
	if prev, err := readRun(last); err == nil {
		archived := filepath.Join(s.dir, historyDir, prev.ID+".json")
		if err := os.Rename(last, archived); err != nil {
			return fmt.Errorf("archive run %s: %w", prev.ID, err)
		}
	} else if !errors.Is(err, ErrNoRun) {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return os.WriteFile(last, data, 0644)
}

// Load reads the latest run.
func (s *Store) Load() (*Run, error) {
	return readRun(filepath.Join(s.dir, lastFile))
}

// LoadPrevious reads the newest archived run.
func (s *Store) LoadPrevious() (*Run, error) {
	runs, err := s.History()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRun
	}
	return runs[0], nil
}

// History returns archived runs, newest first.
func (s *Store) History() ([]*Run, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, historyDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var runs []*Run
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := readRun(filepath.Join(s.dir, historyDir, e.Name()))
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// Exists checks if a latest run has been saved.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, lastFile))
	return err == nil
}

// Clean removes the state directory.
func (s *Store) Clean() error {
	return os.RemoveAll(s.dir)
}

func readRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &r, nil
}

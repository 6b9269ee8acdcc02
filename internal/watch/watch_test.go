package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// touchUntil rewrites path until done is closed or the deadline passes. The
// watcher may not be registered yet when the first write lands.
func touchUntil(t *testing.T, path string, done <-chan struct{}) bool {
	t.Helper()
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if err := os.WriteFile(path, []byte(`{"num_processors": 1}`), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		select {
		case <-done:
			return true
		case <-deadline:
			return false
		case <-tick.C:
		}
	}
}

func TestWatch_CallsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := make(chan struct{})
	var once atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, path, zerolog.Nop(), func() error {
			if once.CompareAndSwap(false, true) {
				close(called)
			}
			return nil
		})
	}()

	if !touchUntil(t, path, called) {
		t.Fatal("timed out waiting for callback")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Watch returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.json")
	other := filepath.Join(dir, "other.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, path, zerolog.Nop(), func() error {
		calls.Add(1)
		return nil
	})

	never := make(chan struct{})
	touchUntil(t, other, never)

	if n := calls.Load(); n != 0 {
		t.Errorf("expected no callbacks for another file, got %d", n)
	}
}

func TestWatch_CallbackErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "problem.toml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := make(chan struct{})
	var calls atomic.Int32
	go Watch(ctx, path, zerolog.Nop(), func() error {
		if calls.Add(1) == 2 {
			close(second)
		}
		return errors.New("bad problem")
	})

	if !touchUntil(t, path, second) {
		t.Fatalf("expected a second callback after an error, got %d calls", calls.Load())
	}
}

func TestWatch_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "problem.json")
	err := Watch(context.Background(), path, zerolog.Nop(), func() error { return nil })
	if err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

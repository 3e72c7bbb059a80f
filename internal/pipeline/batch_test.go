package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"go.uber.org/goleak"
)

// notebooks returns n test notebooks in one project.
func notebooks(ids ...string) []model.Notebook {
	nbs := make([]model.Notebook, 0, len(ids))
	for _, id := range ids {
		nbs = append(nbs, model.Notebook{
			Path:       "analytics/notebooks/ab-simulator/" + id + ".ipynb",
			RelPath:    "ab-simulator/" + id + ".ipynb",
			ProjectID:  "ab-simulator",
			NotebookID: id,
		})
	}
	return nbs
}

// stepPipeline returns a factory whose pipelines run a single step.
func stepPipeline(do func(ctx context.Context, run *model.Run) error) func(model.Notebook) *Pipeline {
	return func(model.Notebook) *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: "work", doFunc: do})
		return p
	}
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(stepPipeline(nil))
	if bp.concurrency != DefaultConcurrency {
		t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
	}
	if bp.logger == nil {
		t.Error("expected default logger")
	}

	bp = NewBatchProcessor(stepPipeline(nil), WithConcurrency(4), WithConcurrency(0))
	if bp.concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", bp.concurrency)
	}
}

func TestProcessBatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("returns runs in notebook order", func(t *testing.T) {
		bp := NewBatchProcessor(stepPipeline(func(_ context.Context, run *model.Run) error {
			// Finish later notebooks first.
			if run.Notebook.NotebookID == "a" {
				time.Sleep(20 * time.Millisecond)
			}
			return nil
		}), WithConcurrency(3))

		nbs := notebooks("a", "b", "c")
		runs, err := bp.ProcessBatch(context.Background(), nbs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != len(nbs) {
			t.Fatalf("expected %d runs, got %d", len(nbs), len(runs))
		}
		for i, run := range runs {
			if run.Notebook.NotebookID != nbs[i].NotebookID {
				t.Errorf("run %d: expected %s, got %s", i, nbs[i].NotebookID, run.Notebook.NotebookID)
			}
			if run.Status != model.StatusSucceeded {
				t.Errorf("run %d: expected succeeded, got %v", i, run.Status)
			}
		}
	})

	t.Run("failures are recorded and do not stop the batch", func(t *testing.T) {
		bp := NewBatchProcessor(stepPipeline(func(_ context.Context, run *model.Run) error {
			if run.Notebook.NotebookID == "broken" {
				return errors.New("papermill failed: exit status 1")
			}
			return nil
		}))

		runs, err := bp.ProcessBatch(context.Background(), notebooks("ok", "broken", "after"))
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		report := model.NewRunReport(runs, time.Now(), time.Now())
		counts := report.Counts()
		if counts.Succeeded != 2 || counts.Failed != 1 {
			t.Errorf("unexpected counts %+v", counts)
		}
		if runs[1].ErrorMessage != "papermill failed: exit status 1" {
			t.Errorf("unexpected error message %q", runs[1].ErrorMessage)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		var current, peak atomic.Int32
		bp := NewBatchProcessor(stepPipeline(func(_ context.Context, _ *model.Run) error {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil
		}), WithConcurrency(2))

		if _, err := bp.ProcessBatch(context.Background(), notebooks("a", "b", "c", "d", "e")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent runs, got %d", peak.Load())
		}
	})

	t.Run("cancelled context leaves notebooks unstarted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		bp := NewBatchProcessor(stepPipeline(func(_ context.Context, _ *model.Run) error {
			cancel()
			return nil
		}))

		runs, err := bp.ProcessBatch(ctx, notebooks("a", "b", "c"))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if runs[0] == nil {
			t.Fatal("expected first notebook to run")
		}
		if runs[1] != nil || runs[2] != nil {
			t.Error("expected remaining notebooks not to start")
		}
	})
}

func TestProcessBatchWithCallback(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bp := NewBatchProcessor(stepPipeline(nil), WithConcurrency(2))

	var mu sync.Mutex
	seen := make(map[int]string)
	err := bp.ProcessBatchWithCallback(context.Background(), notebooks("a", "b", "c"), func(run *model.Run, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = run.Notebook.NotebookID
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[int]string{0: "a", 1: "b", 2: "c"}
	for i, id := range want {
		if seen[i] != id {
			t.Errorf("index %d: expected %s, got %s", i, id, seen[i])
		}
	}
}

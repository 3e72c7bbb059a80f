package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when WithConcurrency is not given.
const DefaultConcurrency = 1

// BatchProcessor runs many notebooks with bounded concurrency.
// A failing notebook never stops the batch; its error is recorded in its run.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each notebook, so that
	// per-project settings (parameters, timeout) can differ.
	pipelineFactory func(nb model.Notebook) *Pipeline

	// concurrency is the maximum number of notebooks run at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(nb model.Notebook) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every notebook and returns the runs in notebook order.
// Notebooks not started because ctx was cancelled have a nil entry, and the
// context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, notebooks []model.Notebook) ([]*model.Run, error) {
	runs := make([]*model.Run, len(notebooks))

	// Each goroutine writes only its own index.
	err := bp.ProcessBatchWithCallback(ctx, notebooks, func(run *model.Run, index int) {
		runs[index] = run
	})

	return runs, err
}

// ProcessBatchWithCallback runs every notebook and calls callback as each
// run finishes. The callback is called from the goroutine that ran the
// notebook, so it must be safe for concurrent use when concurrency > 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	notebooks []model.Notebook,
	callback func(run *model.Run, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_notebooks", len(notebooks),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, nb := range notebooks {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("running notebook",
				"notebook", nb.Key(),
				"index", i+1,
				"total", len(notebooks),
			)

			run := model.NewRun(nb)
			p := bp.pipelineFactory(nb)
			if err := p.Execute(ctx, run); err != nil {
				// Recorded in run; other notebooks keep going.
				bp.logger.Warn("notebook failed",
					"notebook", nb.Key(),
					"error", err,
				)
			} else {
				bp.logger.Info("notebook completed",
					"notebook", nb.Key(),
					"elapsed", run.Duration(),
				)
			}

			callback(run, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_notebooks", len(notebooks),
		"elapsed", time.Since(startTime),
	)

	return err
}

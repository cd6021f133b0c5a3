// Package dispatcher runs crawl tasks in fixed-size concurrent batches.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/2448334/seimas-scraper/internal/metrics"
)

// DefaultChunkSize is used when New is given a non-positive size.
const DefaultChunkSize = 16

// Task is one unit of work inside a stage.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Outcome is the observed result of one task.
type Outcome struct {
	Task     string
	Err      error
	Duration time.Duration
}

// Report collects the outcomes of a stage in task order.
type Report struct {
	Stage    string
	Outcomes []Outcome
}

// Failed counts tasks that returned an error or panicked.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Err combines every task error, or returns nil when all tasks succeeded.
func (r Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", o.Task, o.Err))
		}
	}
	return err
}

// Dispatcher executes task lists chunk by chunk: every task of a chunk runs
// concurrently and the next chunk starts only after the whole chunk finished.
type Dispatcher struct {
	chunkSize int
	logger    *zap.Logger
}

// New creates a Dispatcher.
func New(chunkSize int, logger *zap.Logger) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{chunkSize: chunkSize, logger: logger.Named("dispatcher")}
}

// ChunkSize reports the batch width.
func (d *Dispatcher) ChunkSize() int { return d.chunkSize }

// Run executes tasks for stage. A failing task never stops its siblings; once ctx is done
// the remaining chunks are not started and their tasks are reported with the context error.
func (d *Dispatcher) Run(ctx context.Context, stage string, tasks []Task) Report {
	return d.RunChunked(ctx, stage, tasks, d.chunkSize)
}

// RunChunked is Run with an explicit chunk size.
func (d *Dispatcher) RunChunked(ctx context.Context, stage string, tasks []Task, chunkSize int) Report {
	if chunkSize <= 0 {
		chunkSize = d.chunkSize
	}
	report := Report{Stage: stage, Outcomes: make([]Outcome, len(tasks))}
	logger := d.logger.With(zap.String("stage", stage))
	logger.Info("stage started", zap.Int("tasks", len(tasks)), zap.Int("chunk_size", chunkSize))

	for start := 0; start < len(tasks); start += chunkSize {
		end := min(start+chunkSize, len(tasks))
		if err := ctx.Err(); err != nil {
			for i := start; i < len(tasks); i++ {
				report.Outcomes[i] = Outcome{Task: tasks[i].Name, Err: err}
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				report.Outcomes[i] = d.execute(ctx, stage, tasks[i], logger)
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.Info("stage finished", zap.Int("tasks", len(tasks)), zap.Int("failed", report.Failed()))
	return report
}

func (d *Dispatcher) execute(ctx context.Context, stage string, task Task, logger *zap.Logger) (out Outcome) {
	start := time.Now()
	out.Task = task.Name
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("task panicked: %v", r)
		}
		out.Duration = time.Since(start)
		metrics.ObserveTask(stage, out.Err, out.Duration)
		if out.Err != nil {
			logger.Error("task failed", zap.String("task", task.Name), zap.Error(out.Err))
		}
	}()
	out.Err = task.Run(ctx)
	return out
}

// Package worker runs workflow executions pulled from the task queue.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/queue/memory"
	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// Source yields queued tasks.
type Source interface {
	Dequeue(ctx context.Context) (workflow.Task, error)
}

// Runner executes a single task. The workflow engine implements it.
type Runner interface {
	Execute(ctx context.Context, task workflow.Task) error
}

// Worker consumes tasks and hands them to the runner one at a time.
type Worker struct {
	source Source
	runner Runner
	logger *zap.Logger
}

// New constructs a Worker.
func New(source Source, runner Runner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{source: source, runner: runner, logger: logger}
}

// Run blocks, consuming tasks until the context finishes or the queue is
// closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("execution_id", task.ExecutionID))
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task workflow.Task) {
	telemetry.IncActiveWorkers()
	defer telemetry.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("execution panicked", zap.String("execution_id", task.ExecutionID), zap.Any("panic", r))
		}
	}()
	if err := w.runner.Execute(ctx, task); err != nil {
		w.logger.Error("execution failed", zap.String("execution_id", task.ExecutionID), zap.Error(err))
	}
}

// Pool builds n workers sharing one source and runner.
func Pool(n int, source Source, runner Runner, logger *zap.Logger) []*Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	n = max(n, 1)
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = New(source, runner, logger.Named("worker").With(zap.Int("index", i)))
	}
	return workers
}

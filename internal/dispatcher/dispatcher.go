// Package dispatcher sits between the workflow engine and its workers: the
// engine hands started executions to Enqueue, and Run drains them with a
// fixed-size worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/worker"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// Queue buffers executions between Start and the workers.
type Queue interface {
	worker.Source
	Enqueue(ctx context.Context, task workflow.Task) error
	Len() int
	Close()
}

// Dispatcher implements workflow.Enqueuer. The runner is supplied to Run
// rather than New so the engine can be built with the dispatcher as its
// queue.
type Dispatcher struct {
	queue   Queue
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher that will run the given number of workers.
func New(queue Queue, workers int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, workers: max(workers, 1), logger: logger}
}

// Enqueue queues a started execution for the next free worker.
func (d *Dispatcher) Enqueue(ctx context.Context, task workflow.Task) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("dispatch execution %s: %w", task.ExecutionID, err)
	}
	d.logger.Debug("execution queued", zap.String("execution_id", task.ExecutionID), zap.Int("pending", d.queue.Len()))
	return nil
}

// Pending reports executions waiting for a worker.
func (d *Dispatcher) Pending() int { return d.queue.Len() }

// Run starts the workers and blocks until all of them return, which happens
// when ctx finishes or Stop has been called and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context, runner worker.Runner) {
	d.logger.Info("dispatcher started", zap.Int("workers", d.workers))
	var wg sync.WaitGroup
	for _, w := range worker.Pool(d.workers, d.queue, runner, d.logger) {
		wg.Go(func() { w.Run(ctx) })
	}
	wg.Wait()
	d.logger.Info("dispatcher stopped", zap.Int("pending", d.queue.Len()))
}

// Stop refuses new executions. Already queued ones are still handed out.
func (d *Dispatcher) Stop() {
	d.logger.Info("dispatcher stopping", zap.Int("pending", d.queue.Len()))
	d.queue.Close()
}

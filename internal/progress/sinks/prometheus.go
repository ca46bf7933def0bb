package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/subsidy-portal/internal/progress"
)

// PrometheusSink exports execution lifecycle metrics.
type PrometheusSink struct {
	started   *prometheus.CounterVec
	finished  *prometheus.CounterVec
	running   prometheus.Gauge
	runtime   *prometheus.HistogramVec
	stepFails *prometheus.CounterVec

	tracker *executionTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_workflow_executions_started_total",
			Help: "Executions started, by workflow.",
		}, []string{"workflow"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_workflow_executions_finished_total",
			Help: "Executions finished, by workflow and result.",
		}, []string{"workflow", "result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_workflow_executions_running",
			Help: "Executions currently running.",
		}),
		runtime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_workflow_execution_runtime_seconds",
			Help:    "Wall time per finished execution.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		stepFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_workflow_step_failures_total",
			Help: "Step failures that halted an execution, by step type.",
		}, []string{"type"}),
		tracker: &executionTracker{running: make(map[string]struct{})},
	}
	for _, c := range []prometheus.Collector{s.started, s.finished, s.running, s.runtime, s.stepFails} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch {
		case evt.Stage == progress.StageExecutionStart:
			s.started.WithLabelValues(evt.WorkflowID).Inc()
			if s.tracker.start(evt.ExecutionID) {
				s.running.Inc()
			}
		case evt.Stage == progress.StageStepError:
			s.stepFails.WithLabelValues(evt.StepType).Inc()
		case evt.Stage.Finished():
			result := resultLabel(evt.Stage)
			s.finished.WithLabelValues(evt.WorkflowID, result).Inc()
			if evt.Dur > 0 {
				s.runtime.WithLabelValues(result).Observe(evt.Dur.Seconds())
			}
			if s.tracker.complete(evt.ExecutionID) {
				s.running.Dec()
			}
		}
	}
	return nil
}

func resultLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageExecutionDone:
		return "completed"
	case progress.StageExecutionCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type executionTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func (t *executionTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *executionTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/subsidy-portal/internal/progress"
)

func TestPrometheusSinkTracksExecutions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{ExecutionID: "a", WorkflowID: "wf", TS: now, Stage: progress.StageExecutionStart},
		{ExecutionID: "b", WorkflowID: "wf", TS: now, Stage: progress.StageExecutionStart},
		{ExecutionID: "a", WorkflowID: "wf", TS: now, Stage: progress.StageExecutionDone, Dur: 3 * time.Second},
		{ExecutionID: "b", WorkflowID: "wf", TS: now, Stage: progress.StageStepError, StepID: "n", StepType: "normalize"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.started.WithLabelValues("wf")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.finished.WithLabelValues("wf", "completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.running))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stepFails.WithLabelValues("normalize")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runtime, "portal_workflow_execution_runtime_seconds"))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{ExecutionID: "b", WorkflowID: "wf", TS: now, Stage: progress.StageExecutionError},
		{ExecutionID: "b", WorkflowID: "wf", TS: now, Stage: progress.StageExecutionError},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.running))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.finished.WithLabelValues("wf", "failed")))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{ExecutionID: "a", TS: now, Stage: progress.StageStepStart, StepID: "crawl", StepType: "crawl"},
		{ExecutionID: "a", TS: now, Stage: progress.StageStepError, StepID: "crawl", Note: "HTTP 500"},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.Equal(t, "HTTP 500", entries[1].ContextMap()["note"])
}

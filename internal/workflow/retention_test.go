package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/JakeFAU/subsidy-portal/internal/storage/memory"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

func TestJanitorSweepsExpiredAndOverflow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	store := memory.NewExecutionStore()
	ctx := context.Background()
	add := func(id string, status workflow.Status, ago time.Duration) {
		end := now.Add(-ago)
		e := workflow.Execution{ID: id, Status: status, StartTime: end.Add(-time.Minute)}
		if status.Terminal() {
			e.EndTime = &end
		}
		require.NoError(t, store.CreateExecution(ctx, e))
	}
	add("old", workflow.StatusCompleted, 48*time.Hour)
	add("running", workflow.StatusRunning, 72*time.Hour)
	add("a", workflow.StatusFailed, 3*time.Hour)
	add("b", workflow.StatusCancelled, 2*time.Hour)
	add("c", workflow.StatusCompleted, time.Hour)

	j := workflow.NewJanitor(workflow.RetentionConfig{TTL: 24 * time.Hour, MaxCount: 2}, store, clock.NewFixed(now), nil)
	n, err := j.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	left, err := store.ListExecutions(ctx, workflow.ExecutionFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(left))
	for _, e := range left {
		ids = append(ids, e.ID)
	}
	require.ElementsMatch(t, []string{"running", "b", "c"}, ids)
}

func TestJanitorDisabledByDefault(t *testing.T) {
	t.Parallel()

	require.False(t, workflow.RetentionConfig{}.Enabled())
	done := make(chan struct{})
	go func() {
		workflow.NewJanitor(workflow.RetentionConfig{}, memory.NewExecutionStore(), nil, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled janitor should return immediately")
	}
}

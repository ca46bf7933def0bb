package memory

import (
	"context"
	"testing"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/workflow"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue[workflow.Task](1)
	result := make(chan workflow.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	require.NoError(t, q.Enqueue(context.Background(), workflow.Task{ExecutionID: "exec-1"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "exec-1", got.ExecutionID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue[int](1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue[int](1)
	require.NoError(t, full.Enqueue(context.Background(), 1))
	require.Equal(t, 1, full.Len())
	require.EqualError(t, full.Enqueue(ctx, 2), "enqueue canceled: context canceled")
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](2)
	require.NoError(t, q.Enqueue(context.Background(), "buffered"))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), "late"), ErrClosed)
	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "buffered", got)
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

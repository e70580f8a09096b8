package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/papyrus/internal/core"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, core.IngestJob{DocumentID: id, ProjectID: "p1"}))
	}

	for _, want := range []string{"a", "b", "c"} {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, job.DocumentID)
		assert.Equal(t, "p1", job.ProjectID)
	}
}

func TestMemoryQueueDequeueHonorsCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after cancellation")
	}
}

func TestMemoryQueueEnqueueHonorsCancelWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), core.IngestJob{DocumentID: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, core.IngestJob{DocumentID: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueDefaultsSize(t *testing.T) {
	q := NewMemoryQueue(0)
	require.NoError(t, q.Enqueue(context.Background(), core.IngestJob{DocumentID: "x"}))

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", job.DocumentID)
}

package queue

import (
	"context"

	"github.com/inkwellhq/papyrus/internal/core"
)

// MemoryQueue is a process-local job queue backed by a buffered channel.
// It is the default when no Redis address is configured; jobs do not
// survive a restart.
type MemoryQueue struct {
	jobs chan core.IngestJob
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 128
	}
	return &MemoryQueue{jobs: make(chan core.IngestJob, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job core.IngestJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (core.IngestJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return core.IngestJob{}, ctx.Err()
	}
}

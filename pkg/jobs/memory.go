// pkg/jobs/memory.go
package jobs

import (
	"context"
	"sync"
)

// MemoryQueue is a channel-backed Queue for dev and tests.
type MemoryQueue struct {
	ch     chan Job
	closed sync.Once
	done   chan struct{}
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan Job, buffer), done: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	j, err := newJob(kind, payload)
	if err != nil {
		return err
	}
	return q.push(ctx, j)
}

func (q *MemoryQueue) Requeue(ctx context.Context, j Job) error {
	return q.push(ctx, j)
}

func (q *MemoryQueue) push(ctx context.Context, j Job) error {
	select {
	case q.ch <- j:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case j := <-q.ch:
		return j, nil
	case <-q.done:
		return Job{}, ErrClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Close releases blocked producers and consumers.
func (q *MemoryQueue) Close() {
	q.closed.Do(func() { close(q.done) })
}

// pkg/jobs/queue.go
package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Job is one unit of fire-and-forget work (email delivery, tracking).
type Job struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

// ErrClosed is returned by Dequeue once the queue is shut down.
var ErrClosed = errors.New("queue closed")

// Queue transports jobs between the request path and the worker. The
// request path only blocks for the Enqueue; completion and ordering of
// jobs are never part of the protocol's correctness.
type Queue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
	// Requeue puts a failed job back for another attempt.
	Requeue(ctx context.Context, j Job) error
}

func newJob(kind string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{ID: uuid.NewString(), Kind: kind, Payload: raw, Attempt: 1}, nil
}

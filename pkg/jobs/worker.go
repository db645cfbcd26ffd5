// pkg/jobs/worker.go
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// HandlerFunc processes one job payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Worker drains a Queue, dispatching jobs by kind. Failed jobs are
// requeued up to maxAttempts; after that they are dropped with a log
// line. Nothing in the login protocol waits on a worker.
type Worker struct {
	queue       Queue
	log         *zap.SugaredLogger
	handlers    map[string]HandlerFunc
	maxAttempts int
}

func NewWorker(queue Queue, log *zap.SugaredLogger) *Worker {
	return &Worker{
		queue:       queue,
		log:         log,
		handlers:    map[string]HandlerFunc{},
		maxAttempts: 3,
	}
}

func (w *Worker) Handle(kind string, fn HandlerFunc) {
	w.handlers[kind] = fn
}

// Run blocks until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		j, err := w.queue.Dequeue(ctx)
		if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			// Back off so an unreachable broker does not spin the loop.
			w.log.Errorw("job dequeue", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.dispatch(ctx, j)
	}
}

func (w *Worker) dispatch(ctx context.Context, j Job) {
	fn, ok := w.handlers[j.Kind]
	if !ok {
		w.log.Warnw("unknown job kind", "kind", j.Kind, "id", j.ID)
		return
	}
	if err := fn(ctx, j.Payload); err != nil {
		if j.Attempt >= w.maxAttempts {
			w.log.Errorw("job dropped", "kind", j.Kind, "id", j.ID, "attempt", j.Attempt, "err", err)
			return
		}
		j.Attempt++
		if rerr := w.queue.Requeue(ctx, j); rerr != nil {
			w.log.Errorw("job requeue", "kind", j.Kind, "id", j.ID, "err", rerr)
		}
		return
	}
}

// pkg/jobs/redis.go
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKey = "authmail:jobs"

// redisQueue is a Redis list used as a FIFO job queue (LPUSH/BRPOP).
// At-least-once: a job popped by a crashing worker is lost only between
// BRPOP and handler completion, which is acceptable for side channels.
type redisQueue struct {
	cli *redis.Client
}

func NewRedisQueue(cli *redis.Client) Queue {
	return &redisQueue{cli: cli}
}

func (q *redisQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	j, err := newJob(kind, payload)
	if err != nil {
		return err
	}
	return q.push(ctx, j)
}

func (q *redisQueue) Requeue(ctx context.Context, j Job) error {
	return q.push(ctx, j)
}

func (q *redisQueue) push(ctx context.Context, j Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return q.cli.LPush(ctx, redisKey, raw).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		res, err := q.cli.BRPop(ctx, 5*time.Second, redisKey).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			return Job{}, err
		}
		// res[0] is the key, res[1] the value
		var j Job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			return Job{}, err
		}
		return j, nil
	}
}

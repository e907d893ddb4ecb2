package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
)

// FinalizeJob asks the finalize worker to grade one session.
type FinalizeJob struct {
	SessionID uuid.UUID `json:"session_id"`
	Reason    string    `json:"reason"`
	Attempt   int       `json:"attempt"`
}

// FinalizeQueue is the Redis list shared by producers and the worker.
type FinalizeQueue struct {
	rdb *redis.Client
	key string
}

func NewFinalizeQueue(rdb *redis.Client) *FinalizeQueue {
	return &FinalizeQueue{rdb: rdb, key: config.WorkerKey.FinalizeSessionsQueue}
}

// EnqueueFinalize pushes one job per session in a single RPUSH.
func (q *FinalizeQueue) EnqueueFinalize(ctx context.Context, reason string, sessionIDs ...uuid.UUID) error {
	jobs := make([]FinalizeJob, len(sessionIDs))
	for i, id := range sessionIDs {
		jobs[i] = FinalizeJob{SessionID: id, Reason: reason}
	}
	return q.Requeue(ctx, jobs...)
}

// Requeue pushes jobs back to the tail of the list.
func (q *FinalizeQueue) Requeue(ctx context.Context, jobs ...FinalizeJob) error {
	if len(jobs) == 0 {
		return nil
	}
	values := make([]interface{}, len(jobs))
	for i, j := range jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("marshal finalize job: %w", err)
		}
		values[i] = raw
	}
	return q.rdb.RPush(ctx, q.key, values...).Err()
}

// Pop blocks for up to timeout. It returns nil, nil when the list stayed empty.
func (q *FinalizeQueue) Pop(ctx context.Context, timeout time.Duration) (*FinalizeJob, error) {
	item, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(item) < 2 {
		return nil, nil
	}

	var job FinalizeJob
	if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
		return nil, fmt.Errorf("invalid finalize payload: %w", err)
	}
	return &job, nil
}

// Len reports the queue backlog.
func (q *FinalizeQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

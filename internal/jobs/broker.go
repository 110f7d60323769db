package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Broker is the durable transport the Fabric submits jobs to and a
// WorkerPool consumes jobs from. Two implementations exist: RedisBroker
// (the "redis-like" durable mode) and SyncExecutor (the in-memory
// fallback). Both satisfy the same submit API.
type Broker interface {
	// Enqueue submits job for immediate (or, if notBefore is non-zero and
	// in the future, delayed) delivery.
	Enqueue(ctx context.Context, job Job, notBefore time.Time) error
	// Dequeue blocks (subject to ctx) until a job is available on queue.
	Dequeue(ctx context.Context, queue QueueName) (Job, error)
	// Mode reports which implementation is active, for operator visibility.
	Mode() string
}

// redisKey namespaces this process's queues from any other application
// sharing the same redis instance.
func redisKey(queue QueueName) string { return "mandiflow:queue:" + string(queue) }
func redisDelayedKey(queue QueueName) string { return "mandiflow:delayed:" + string(queue) }

// RedisBroker implements Broker over a redis list (LPUSH/BRPOP) for ready
// jobs and a sorted set (scored by ready-at unix time) for delayed jobs —
// the retry/backoff path promotes a delayed job into the ready list once
// its score has elapsed.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Mode() string { return "redis-like" }

func (b *RedisBroker) Enqueue(ctx context.Context, job Job, notBefore time.Time) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if notBefore.After(time.Now()) {
		return b.client.ZAdd(ctx, redisDelayedKey(job.Queue), redis.Z{
			Score: float64(notBefore.Unix()), Member: body,
		}).Err()
	}
	return b.client.LPush(ctx, redisKey(job.Queue), body).Err()
}

func (b *RedisBroker) Dequeue(ctx context.Context, queue QueueName) (Job, error) {
	b.promoteDueDelayed(ctx, queue)

	res, err := b.client.BRPop(ctx, 2*time.Second, redisKey(queue)).Result()
	if err == redis.Nil {
		return Job{}, ErrNoJobAvailable
	}
	if err != nil {
		return Job{}, fmt.Errorf("dequeue from %s: %w", queue, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

// promoteDueDelayed moves any delayed job whose ready-at has passed into
// the ready list. Best-effort: a failure here just means the job is
// retried on the next Dequeue poll.
func (b *RedisBroker) promoteDueDelayed(ctx context.Context, queue QueueName) {
	now := float64(time.Now().Unix())
	due, err := b.client.ZRangeByScore(ctx, redisDelayedKey(queue), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil || len(due) == 0 {
		return
	}
	for _, member := range due {
		pipe := b.client.TxPipeline()
		pipe.ZRem(ctx, redisDelayedKey(queue), member)
		pipe.LPush(ctx, redisKey(queue), member)
		_, _ = pipe.Exec(ctx)
	}
}

// Depth reports the number of ready jobs waiting on queue. Best-effort:
// errors degrade to zero since the stats surface is informational.
func (b *RedisBroker) Depth(ctx context.Context, queue QueueName) int64 {
	n, err := b.client.LLen(ctx, redisKey(queue)).Result()
	if err != nil {
		return 0
	}
	return n
}

// ErrNoJobAvailable is returned by Dequeue when its poll window elapses
// with nothing ready; callers loop and call again.
var ErrNoJobAvailable = fmt.Errorf("jobs: no job available")

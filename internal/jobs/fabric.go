package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/metrics"
)

// Fabric owns one Broker (redis-like or sync), every queue's WorkerPool,
// and the shared DLQ. Request handlers only ever call Submit — they never
// await long external I/O inline.
type Fabric struct {
	broker  Broker
	pools   map[QueueName]*WorkerPool
	dlq     *DLQ
	log     *logging.Logger
	queues  map[QueueName]QueueConfig
}

// New builds a Fabric. If redisClient is nil the fabric runs in sync mode
//.
func New(redisClient *redis.Client, queues map[QueueName]QueueConfig, log *logging.Logger) *Fabric {
	f := &Fabric{pools: make(map[QueueName]*WorkerPool), dlq: NewDLQ(), log: log, queues: queues}

	if redisClient != nil {
		f.broker = NewRedisBroker(redisClient)
	} else {
		f.broker = NewSyncExecutor(f.dispatchInline)
		log.Warn("broker unavailable at startup, running job fabric in sync mode")
	}
	return f
}

// Mode reports "redis-like" or "sync" for operator visibility.
func (f *Fabric) Mode() string { return f.broker.Mode() }

// Register wires processor to handle queue's jobs by building its worker
// pool; Start launches the pools (never in sync mode, since Submit runs
// inline there).
func (f *Fabric) Register(queue QueueName, processor Processor) {
	cfg, ok := f.queues[queue]
	if !ok {
		cfg = DefaultQueues()[queue]
	}
	f.pools[queue] = NewWorkerPool(cfg, f.broker, processor, f.dlq, f.log)
}

// Start launches every registered queue's worker pool. No-op in sync mode.
func (f *Fabric) Start(ctx context.Context) {
	if _, sync := f.broker.(*SyncExecutor); sync {
		return
	}
	for _, pool := range f.pools {
		pool.Start(ctx)
	}
}

// Stop stops every worker pool and waits for their in-flight jobs; see
// WorkerPool.Stop.
func (f *Fabric) Stop() {
	if _, sync := f.broker.(*SyncExecutor); sync {
		return
	}
	for _, pool := range f.pools {
		pool.Stop()
	}
}

// Submit enqueues payload onto queue. This is the only call a request
// handler makes. With a redis broker it returns once the job is enqueued;
// in sync mode the job, and any retry of it, runs inline before Submit
// returns.
func (f *Fabric) Submit(ctx context.Context, queue QueueName, payload map[string]interface{}) (string, error) {
	job := Job{ID: uuid.NewString(), Queue: queue, Payload: payload, Attempt: 1, EnqueuedAt: time.Now()}
	if err := f.broker.Enqueue(ctx, job, time.Time{}); err != nil {
		return "", fmt.Errorf("submit job to %s: %w", queue, err)
	}
	return job.ID, nil
}

// SubmitIdempotent is Submit plus a client-visible idempotency key carried
// on the job, so a processor can de-duplicate externally-visible effects
// such as the order-confirmation send.
func (f *Fabric) SubmitIdempotent(ctx context.Context, queue QueueName, idempotencyKey string, payload map[string]interface{}) (string, error) {
	job := Job{
		ID: uuid.NewString(), Queue: queue, Payload: payload, Attempt: 1,
		EnqueuedAt: time.Now(), IdempotencyKey: idempotencyKey,
	}
	if err := f.broker.Enqueue(ctx, job, time.Time{}); err != nil {
		return "", fmt.Errorf("submit idempotent job to %s: %w", queue, err)
	}
	return job.ID, nil
}

// DLQ exposes the admin list/inspect/retry surface.
func (f *Fabric) DLQ() *DLQ { return f.dlq }

// RetryDeadLetter re-submits a dead-lettered job into its original queue
// with a reset attempt counter, then removes it from the DLQ.
func (f *Fabric) RetryDeadLetter(ctx context.Context, jobID string) error {
	dl, ok := f.dlq.Inspect(jobID)
	if !ok {
		return fmt.Errorf("dead letter %s not found", jobID)
	}
	job := Job{ID: uuid.NewString(), Queue: dl.OriginalQueue, Payload: dl.Payload, Attempt: 1, EnqueuedAt: time.Now()}
	if err := f.broker.Enqueue(ctx, job, time.Time{}); err != nil {
		return fmt.Errorf("retry dead letter into %s: %w", dl.OriginalQueue, err)
	}
	f.dlq.Remove(jobID)
	return nil
}

// dispatchInline is the SyncExecutor's dispatch function: it looks up the
// registered processor for job.Queue and runs it through the same
// start/complete/fail wrapper and retry/DLQ policy a durable WorkerPool
// uses. Unlike redis-like mode, the job runs in the submitting goroutine,
// and a rescheduled retry sleeps out its backoff there as well.
func (f *Fabric) dispatchInline(ctx context.Context, job Job) error {
	pool, ok := f.pools[job.Queue]
	if !ok {
		return fmt.Errorf("no processor registered for queue %s", job.Queue)
	}
	pool.process(ctx, job)
	return nil
}

// Stats reports per-queue configuration and depth for GET /queues/stats,
// refreshing the queue-depth gauge as a side effect.
func (f *Fabric) Stats() map[string]interface{} {
	out := map[string]interface{}{"mode": f.Mode()}
	redisBroker, _ := f.broker.(*RedisBroker)
	queues := make(map[string]interface{}, len(f.queues))
	for name, cfg := range f.queues {
		q := map[string]interface{}{
			"concurrency":  cfg.Concurrency,
			"max_attempts": cfg.MaxAttempts,
			"timeout":      cfg.Timeout.String(),
		}
		if redisBroker != nil {
			depth := redisBroker.Depth(context.Background(), name)
			q["depth"] = depth
			metrics.QueueDepth.WithLabelValues(string(name)).Set(float64(depth))
		}
		queues[string(name)] = q
	}
	out["queues"] = queues
	out["dead_letters"] = len(f.dlq.List())
	return out
}

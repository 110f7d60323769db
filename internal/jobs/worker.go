package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/logging"
)

// WorkerPool runs one queue's configured concurrency of goroutines,
// pulling jobs from broker and invoking processor inside the common
// wrapper that logs start/complete/fail, captures panics as stack traces,
// and applies the queue's retry/backoff/DLQ policy.
type WorkerPool struct {
	cfg       QueueConfig
	broker    Broker
	processor Processor
	dlq       *DLQ
	log       *logging.Logger
	limiter   *limiter

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewWorkerPool(cfg QueueConfig, broker Broker, processor Processor, dlq *DLQ, log *logging.Logger) *WorkerPool {
	return &WorkerPool{
		cfg: cfg, broker: broker, processor: processor, dlq: dlq, log: log,
		limiter: newLimiter(cfg.RateLimit),
		stop:    make(chan struct{}),
	}
}

// Start launches cfg.Concurrency worker goroutines. One queue's saturation
// never starves another because each WorkerPool owns independent
// goroutines and calls Dequeue only for its own queue.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Stop signals every worker goroutine to exit and waits until each has
// finished its in-flight job. It has no deadline of its own: a worker can
// take up to one Dequeue poll plus the queue's job timeout to return.
func (p *WorkerPool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *WorkerPool) loop(ctx context.Context, workerIndex int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !p.limiter.Allow() {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		job, err := p.broker.Dequeue(ctx, p.cfg.Name)
		if err == ErrNoJobAvailable {
			continue
		}
		if err != nil {
			p.log.Error("dequeue failed", zap.String("queue", string(p.cfg.Name)), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		p.process(ctx, job)
	}
}

// process is the common wrapper: logs start/complete/fail, captures a
// panic's stack trace as a regular failure, and hands the outcome to the
// retry/backoff/DLQ policy.
func (p *WorkerPool) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	p.log.Info("job started", zap.String("queue", string(job.Queue)), zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))

	err := p.runCaptured(jobCtx, job)

	if err == nil {
		p.log.Info("job completed", zap.String("queue", string(job.Queue)), zap.String("job_id", job.ID),
			zap.Duration("duration", time.Since(start)))
		return
	}

	p.handleFailure(ctx, job, err)
}

// runCaptured invokes the processor, converting a panic into a regular
// error carrying the stack trace so the retry policy applies uniformly.
func (p *WorkerPool) runCaptured(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return p.processor.Run(ctx, job)
}

func (p *WorkerPool) handleFailure(ctx context.Context, job Job, cause error) {
	job.Attempt++
	movedToDLQ := job.Attempt > p.cfg.MaxAttempts

	p.log.Warn("job failed", zap.String("queue", string(job.Queue)), zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt), zap.Bool("dlq", movedToDLQ), zap.Error(cause))

	if movedToDLQ {
		p.dlq.Add(job, cause, "")
		p.processor.OnFailure(ctx, job, cause, true)
		return
	}

	delay := Backoff(p.cfg.BackoffBase, job.Attempt, p.cfg.Timeout)
	if err := p.broker.Enqueue(ctx, job, time.Now().Add(delay)); err != nil {
		p.log.Error("failed to reschedule job after failure", zap.String("job_id", job.ID), zap.Error(err))
	}
	p.processor.OnFailure(ctx, job, cause, false)
}

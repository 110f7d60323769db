package jobs

import (
	"context"
	"time"
)

// SyncExecutor is the in-memory fallback broker used when no BROKER_URL
// is configured. Enqueue runs the job inline
// against whatever Processor is registered for its queue instead of
// persisting it anywhere.
type SyncExecutor struct {
	dispatch func(ctx context.Context, job Job) error
}

// NewSyncExecutor wires dispatch, the function Enqueue calls to run a
// job's processor synchronously in the caller's goroutine.
func NewSyncExecutor(dispatch func(ctx context.Context, job Job) error) *SyncExecutor {
	return &SyncExecutor{dispatch: dispatch}
}

func (s *SyncExecutor) Mode() string { return "sync" }

// Enqueue runs job immediately. A processor failure goes through the
// pool's retry/DLQ policy and is not returned; Enqueue only errors when
// ctx ends during a delay or no processor is registered for the queue.
// notBefore is honored with a blocking sleep since there is no background
// poller in this mode.
func (s *SyncExecutor) Enqueue(ctx context.Context, job Job, notBefore time.Time) error {
	if d := time.Until(notBefore); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.dispatch(ctx, job)
}

// Dequeue is never called in sync mode — Enqueue already ran the job
// inline — but is implemented to satisfy Broker for callers that poll
// generically across modes.
func (s *SyncExecutor) Dequeue(ctx context.Context, queue QueueName) (Job, error) {
	<-ctx.Done()
	return Job{}, ctx.Err()
}

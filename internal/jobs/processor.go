package jobs

import "context"

// Processor is the common capability every queue's work implements:
// one small interface, no inheritance, no per-queue class hierarchies.
type Processor interface {
	// Run executes job and returns an error to trigger the fabric's
	// retry/backoff/DLQ policy, or nil on success.
	Run(ctx context.Context, job Job) error
	// OnFailure is called once Run's error has been recorded (and, if
	// attempts are exhausted, after the job has moved to the DLQ). It
	// never affects retry decisions — it's for queue-specific
	// side-effects like a compensating notification.
	OnFailure(ctx context.Context, job Job, err error, movedToDLQ bool)
}

// ProcessorFunc adapts a plain function to Processor for queues with no
// OnFailure side-effect.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Run(ctx context.Context, job Job) error { return f(ctx, job) }
func (f ProcessorFunc) OnFailure(context.Context, Job, error, bool) {}

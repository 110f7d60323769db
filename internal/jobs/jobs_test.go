package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiflow/core/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Service: "jobs-test", Format: "console"})
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, Backoff(base, 1, 0))
	assert.Equal(t, 2*time.Second, Backoff(base, 2, 0))
	assert.Equal(t, 4*time.Second, Backoff(base, 3, 0))
	assert.Equal(t, 8*time.Second, Backoff(base, 4, 0))
	assert.Equal(t, 5*time.Second, Backoff(base, 10, 5*time.Second), "capped at the queue's configured maximum")
}

func TestSyncExecutorRunsInline(t *testing.T) {
	var ran int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	fabric := New(nil, DefaultQueues(), testLogger())
	fabric.Register(QueueOrderProcessing, proc)
	assert.Equal(t, "sync", fabric.Mode())

	_, err := fabric.Submit(context.Background(), QueueOrderProcessing, map[string]interface{}{"order_id": "o1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestSyncExecutorRetriesThenDeadLetters(t *testing.T) {
	var calls int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("processor always fails")
	})

	cfg := DefaultQueues()
	qc := cfg[QueueCreditScore]
	qc.MaxAttempts = 1
	qc.BackoffBase = time.Millisecond
	cfg[QueueCreditScore] = qc

	fabric := New(nil, cfg, testLogger())
	fabric.Register(QueueCreditScore, proc)

	id, err := fabric.Submit(context.Background(), QueueCreditScore, map[string]interface{}{})
	require.NoError(t, err)

	// With MaxAttempts 1 the first failure already exhausts the budget, so
	// the processor runs once and the job is dead-lettered instead of
	// rescheduled, and the DLQ surface works identically across modes.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	dl, ok := fabric.DLQ().Inspect(id)
	assert.True(t, ok)
	assert.Equal(t, QueueCreditScore, dl.OriginalQueue)
}

func TestDLQListInspectRetry(t *testing.T) {
	dlq := NewDLQ()
	job := Job{ID: "job-1", Queue: QueueOrderRouting, Payload: map[string]interface{}{"x": 1}, Attempt: 4}
	dlq.Add(job, errors.New("boom"), "")

	list := dlq.List()
	require.Len(t, list, 1)
	assert.Equal(t, "job-1", list[0].JobID)

	entry, ok := dlq.Inspect("job-1")
	require.True(t, ok)
	assert.Equal(t, "boom", entry.LastError)

	dlq.Remove("job-1")
	_, ok = dlq.Inspect("job-1")
	assert.False(t, ok)
}

func TestRateLimiterEnforcesWindowCap(t *testing.T) {
	l := newLimiter(&RateLimit{Count: 2, Window: time.Minute})
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "third request within the window must be rejected")
}

func TestNilLimiterAlwaysAllows(t *testing.T) {
	var l *limiter
	assert.True(t, l.Allow())
}

package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/mandiflow/core/internal/metrics"
)

// DeadLetter is a job that exhausted its retry budget, kept with enough
// context for an operator to diagnose and retry it.
type DeadLetter struct {
	JobID         string                 `json:"job_id"`
	OriginalQueue QueueName              `json:"original_queue"`
	Payload       map[string]interface{} `json:"payload"`
	LastError     string                 `json:"last_error"`
	LastStack     string                 `json:"last_stack,omitempty"`
	Attempts      int                    `json:"attempts"`
	FailedAt      time.Time              `json:"failed_at"`
}

// DLQ is the single dead-letter sink every queue's exhausted jobs land in,
// keyed by original job id. It is held in memory only, so dead letters do
// not survive a process restart.
type DLQ struct {
	mu      sync.RWMutex
	entries map[string]DeadLetter
}

func NewDLQ() *DLQ {
	return &DLQ{entries: make(map[string]DeadLetter)}
}

// Add records job as dead-lettered.
func (d *DLQ) Add(job Job, lastErr error, stack string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[job.ID] = DeadLetter{
		JobID: job.ID, OriginalQueue: job.Queue, Payload: job.Payload,
		LastError: lastErr.Error(), LastStack: stack, Attempts: job.Attempt, FailedAt: time.Now(),
	}
	metrics.DeadLetters.WithLabelValues(string(job.Queue)).Inc()
}

// List returns every dead-lettered job, most recently failed first.
func (d *DLQ) List() []DeadLetter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DeadLetter, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	return out
}

// Inspect returns one dead letter by job id.
func (d *DLQ) Inspect(jobID string) (DeadLetter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[jobID]
	return e, ok
}

// Remove deletes a dead letter, used once it has been retried into its
// original queue.
func (d *DLQ) Remove(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[jobID]; ok {
		metrics.DeadLetters.WithLabelValues(string(e.OriginalQueue)).Dec()
	}
	delete(d.entries, jobID)
}

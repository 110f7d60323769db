// Package scheduler wraps robfig/cron into single-instance tickers with
// overlap prevention: a tick still running when the next one fires is
// skipped rather than run concurrently.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/logging"
)

// Job is one named periodic task.
type Job struct {
	Name string
	Spec string // standard 5-field cron expression or descriptor (@hourly, @every 2m)
	Run  func()
}

// Scheduler owns a cron.Cron instance and wraps every registered job so
// overlapping fires are skipped and logged, not queued or run in parallel.
type Scheduler struct {
	cron *cron.Cron
	log  *logging.Logger
	mu   sync.Mutex
	jobs []Job
}

func New(log *logging.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Register adds job to the schedule. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := new(int32)
	_, err := s.cron.AddFunc(job.Spec, func() {
		if !atomic.CompareAndSwapInt32(running, 0, 1) {
			s.log.Warn("skipping tick, previous run still in progress", zap.String("job", job.Name))
			return
		}
		defer atomic.StoreInt32(running, 0)

		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled job panicked", zap.String("job", job.Name), zap.Any("recover", r))
			}
		}()
		job.Run()
	})
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any in-flight runs to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

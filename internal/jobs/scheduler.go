// Package jobs runs the order API's background work on cron schedules:
// the ERP price list import and the nightly pricing audit.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs named jobs on cron schedules. A job never overlaps with
// itself, whether it was started by its schedule or by RunNow.
type Scheduler struct {
	cron    *cron.Cron
	cronLog cronLogger
	logger  *zap.Logger
	mu      sync.Mutex
	jobs    map[string]*scheduledJob
}

type scheduledJob struct {
	entryID cron.EntryID
	fn      func()
	running atomic.Bool
}

// NewScheduler creates a scheduler whose cron expressions carry a seconds field
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		cronLog: cl,
		logger:  logger,
		jobs:    make(map[string]*scheduledJob),
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler")
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// AddJob registers job under name. cronExpr takes six fields
// ("0 30 2 * * *") or a descriptor such as "@every 1h".
func (s *Scheduler) AddJob(name string, cronExpr string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	sj := &scheduledJob{fn: job}
	entryID, err := s.cron.AddFunc(cronExpr, func() { s.run(name, sj) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	sj.entryID = entryID
	s.jobs[name] = sj

	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// RunNow starts a registered job in the background outside its schedule.
// A panic in the job is logged like one in a scheduled run.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	sj, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				s.cronLog.Error(err, "panic", "job_name", name)
			}
		}()
		s.run(name, sj)
	}()
	return nil
}

// RemoveJob unregisters a job. A run in progress is not interrupted.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(sj.entryID)
	delete(s.jobs, name)

	s.logger.Info("removed scheduled job", zap.String("job_name", name))
	return nil
}

// GetJobNames returns the registered job names in sorted order
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(name string, sj *scheduledJob) {
	if !sj.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping job run, previous run still active", zap.String("job_name", name))
		return
	}
	defer sj.running.Store(false)

	start := time.Now()
	s.logger.Info("running scheduled job", zap.String("job_name", name))
	sj.fn()
	s.logger.Info("completed scheduled job",
		zap.String("job_name", name),
		zap.Duration("duration", time.Since(start)))
}

// cronLogger routes robfig/cron's own logging into zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

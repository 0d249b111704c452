package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler errors.
var (
	ErrUnknownJob = errors.New("cron: unknown job")
	ErrJobBusy    = errors.New("cron: job already running")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule checks a schedule expression.
func ParseSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself: a tick that finds the previous run still going is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]*entry
	order  []string
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type entry struct {
	job  Job
	lock sync.Mutex
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*entry),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds j. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.jobs[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start schedules every registered job. It fails on the first invalid
// schedule without starting anything.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC))
	for _, name := range s.order {
		e := s.jobs[name]
		if _, err := c.AddFunc(e.job.Schedule(), func() { s.tick(e) }); err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron = c
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

func (s *Scheduler) tick(e *entry) {
	if err := s.run(s.ctx, e); err != nil {
		if errors.Is(err, ErrJobBusy) {
			s.logger.Warn("cron: job still running, skipping tick", "job", e.job.Name())
			return
		}
		s.logger.Error("cron: job failed", "job", e.job.Name(), "error", err)
	}
}

// RunNow runs the named job immediately on the caller's goroutine. It
// returns ErrJobBusy when a scheduled run is in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	if !e.lock.TryLock() {
		return ErrJobBusy
	}
	defer e.lock.Unlock()

	start := time.Now()
	s.logger.Debug("cron: job started", "job", e.job.Name())
	if err := e.job.Run(ctx); err != nil {
		return err
	}
	s.logger.Debug("cron: job completed", "job", e.job.Name(), "duration", time.Since(start))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}

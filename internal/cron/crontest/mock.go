// Package crontest provides a recording cron.Job for scheduler tests.
package crontest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/lookupbot/internal/cron"
)

// Job is a cron.Job that counts its runs and signals each start.
type Job struct {
	name string
	spec string
	fn   func(ctx context.Context) error

	mu      sync.Mutex
	runs    int
	started chan struct{}
}

var _ cron.Job = (*Job)(nil)

// NewJob returns a job named name on schedule spec. fn may be nil.
func NewJob(name, spec string, fn func(ctx context.Context) error) *Job {
	return &Job{name: name, spec: spec, fn: fn, started: make(chan struct{}, 16)}
}

// Name implements cron.Job.
func (j *Job) Name() string { return j.name }

// Schedule implements cron.Job.
func (j *Job) Schedule() string { return j.spec }

// Run implements cron.Job.
func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	j.runs++
	j.mu.Unlock()

	select {
	case j.started <- struct{}{}:
	default:
	}

	if j.fn != nil {
		return j.fn(ctx)
	}
	return nil
}

// Runs returns how many times Run was called.
func (j *Job) Runs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// WaitStarted fails t unless a run begins within timeout.
func (j *Job) WaitStarted(t testing.TB, timeout time.Duration) {
	t.Helper()
	select {
	case <-j.started:
	case <-time.After(timeout):
		t.Fatalf("job %s did not run within %v", j.name, timeout)
	}
}

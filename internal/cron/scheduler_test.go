package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/lookupbot/internal/cron"
	"github.com/flemzord/lookupbot/internal/cron/crontest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_DuplicateName(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(discardLogger())
	if err := s.RegisterJob(crontest.NewJob("digest", "@daily", nil)); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(crontest.NewJob("digest", "@daily", nil)); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "digest" {
		t.Errorf("Jobs = %v", got)
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(discardLogger())
	_ = s.RegisterJob(crontest.NewJob("bad", "every day", nil))
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(discardLogger())
	_ = s.RegisterJob(crontest.NewJob("noop", "*/10 * * * *", nil))

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := cron.NewScheduler(nil).Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("store closed")
	job := crontest.NewJob("prune", "@hourly", func(context.Context) error { return wantErr })

	s := cron.NewScheduler(discardLogger())
	_ = s.RegisterJob(job)

	if err := s.RunNow(context.Background(), "prune"); !errors.Is(err, wantErr) {
		t.Errorf("RunNow = %v, want %v", err, wantErr)
	}
	if job.Runs() != 1 {
		t.Errorf("runs = %d", job.Runs())
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, cron.ErrUnknownJob) {
		t.Errorf("RunNow(missing) = %v", err)
	}
}

func TestScheduler_NoOverlap(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	job := crontest.NewJob("slow", "@daily", func(context.Context) error {
		<-release
		return nil
	})

	s := cron.NewScheduler(discardLogger())
	_ = s.RegisterJob(job)

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	job.WaitStarted(t, 5*time.Second)

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, cron.ErrJobBusy) {
		t.Errorf("overlapping run = %v, want ErrJobBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if job.Runs() != 1 {
		t.Errorf("runs = %d, want 1", job.Runs())
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	t.Parallel()

	job := crontest.NewJob("wait", "@every 1s", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s := cron.NewScheduler(discardLogger())
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	job.WaitStarted(t, 5*time.Second)

	stopped := make(chan struct{})
	go func() {
		_ = s.Stop(context.Background())
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"0 9 * * *", "*/10 * * * *", "@daily", "@every 1h"} {
		if err := cron.ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q) = %v", expr, err)
		}
	}
	for _, expr := range []string{"", "61 * * * *", "0 9 * *", "daily"} {
		if err := cron.ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", expr)
		}
	}
}

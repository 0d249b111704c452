package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

// InstanceCounter is the part of the instance registry the digest reads.
type InstanceCounter interface {
	Counts() map[instance.State]int
}

// DigestJob sends the admin a summary of clones, instances and activity.
type DigestJob struct {
	Store        store.Store
	Instances    InstanceCounter
	Sender       channel.Messenger
	AdminID      int64
	ScheduleExpr string // empty = "0 9 * * *"
	Logger       *slog.Logger
}

var _ Job = (*DigestJob)(nil)

// Name implements Job.
func (j *DigestJob) Name() string { return "admin_digest" }

// Schedule implements Job.
func (j *DigestJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 9 * * *"
}

// Run implements Job.
func (j *DigestJob) Run(ctx context.Context) error {
	stats, err := j.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("cron: digest stats: %w", err)
	}
	var counts map[instance.State]int
	if j.Instances != nil {
		counts = j.Instances.Counts()
	}

	text := FormatDigest(stats, counts)
	if _, err := j.Sender.Send(ctx, message.NewTextMessage(j.AdminID, text)); err != nil {
		return fmt.Errorf("cron: send digest: %w", err)
	}
	return nil
}

// FormatDigest renders the admin digest.
func FormatDigest(stats store.Stats, counts map[instance.State]int) string {
	var b strings.Builder
	b.WriteString("📊 *Daily Digest*\n\n")
	fmt.Fprintf(&b, "• Total clones: %d\n", stats.Clones)
	fmt.Fprintf(&b, "• Clone owners: %d\n", stats.Owners)
	fmt.Fprintf(&b, "• Running instances: %d\n", counts[instance.StateRunning])
	fmt.Fprintf(&b, "• Failed instances: %d\n", counts[instance.StateFailed])
	fmt.Fprintf(&b, "• Broadcasts sent: %d\n", stats.Broadcasts)
	fmt.Fprintf(&b, "• Logged actions: %d", stats.Activities)
	return b.String()
}

// ActivityPruneJob deletes activity entries older than Retention.
type ActivityPruneJob struct {
	Store        store.Store
	Retention    time.Duration
	ScheduleExpr string // empty = "30 3 * * *"
	Logger       *slog.Logger
	Now          func() time.Time
}

var _ Job = (*ActivityPruneJob)(nil)

// Name implements Job.
func (j *ActivityPruneJob) Name() string { return "activity_prune" }

// Schedule implements Job.
func (j *ActivityPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "30 3 * * *"
}

// Run implements Job.
func (j *ActivityPruneJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	n, err := j.Store.PruneActivity(ctx, now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("cron: prune activity: %w", err)
	}
	if n > 0 {
		j.Logger.Info("cron: pruned activity log", "count", n, "retention", j.Retention)
	}
	return nil
}

// Pruner drops stale rate limiter buckets.
type Pruner interface {
	Prune() int
}

// LimiterPruneJob keeps rate limiter memory bounded.
type LimiterPruneJob struct {
	Limiters     []Pruner
	ScheduleExpr string // empty = "*/10 * * * *"
	Logger       *slog.Logger
}

var _ Job = (*LimiterPruneJob)(nil)

// Name implements Job.
func (j *LimiterPruneJob) Name() string { return "limiter_prune" }

// Schedule implements Job.
func (j *LimiterPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run implements Job.
func (j *LimiterPruneJob) Run(_ context.Context) error {
	dropped := 0
	for _, l := range j.Limiters {
		dropped += l.Prune()
	}
	if dropped > 0 {
		j.Logger.Debug("cron: pruned rate limiter buckets", "count", dropped)
	}
	return nil
}

// Package cron runs the bot's periodic housekeeping: the admin digest,
// activity log retention and rate limiter pruning.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Names are unique per scheduler.
	Name() string

	// Schedule is a 5-field cron expression or a descriptor like "@daily".
	Schedule() string

	// Run executes one tick. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

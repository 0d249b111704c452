package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// poller implements long-polling for one bot token.
type poller struct {
	client *Client
	logger *slog.Logger
	config Config
	pause  time.Duration
}

func newPoller(client *Client, logger *slog.Logger, config Config) *poller {
	return &poller{
		client: client,
		logger: logger,
		config: config,
		pause:  errorPauseDuration,
	}
}

// run polls until ctx is done or a fatal error occurs. ready is called
// after the first successful getUpdates. Transient errors are retried,
// with a pause after several in a row.
func (p *poller) run(ctx context.Context, ready func(), handle func(Update)) error {
	var (
		offset            int
		consecutiveErrors int
		readyOnce         sync.Once
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if fatal(err) {
				return err
			}

			consecutiveErrors++
			p.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn("polling paused after consecutive errors",
					"pause", p.pause,
				)
				t := time.NewTimer(p.pause)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0
		if ready != nil {
			readyOnce.Do(ready)
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			handle(update)
		}
	}
}

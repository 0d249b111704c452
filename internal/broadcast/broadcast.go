// Package broadcast delivers an admin message to every active clone owner.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Errors returned by Broadcast.
var (
	ErrAdminOnly    = errors.New("broadcast: admin only")
	ErrEmptyMessage = errors.New("broadcast: empty message")
)

const defaultConcurrency = 8

// Recipients lists the instances whose owners receive broadcasts.
type Recipients interface {
	ListActive() []instance.Record
}

// Config wires a Fanout.
type Config struct {
	AdminID int64
	// Sender delivers the messages, normally the primary bot.
	Sender    channel.Messenger
	Instances Recipients
	Store     store.Store
	Audit     *security.AuditLogger
	Metrics   *metrics.Metrics
	// Concurrency bounds parallel sends. Defaults to 8.
	Concurrency int
	Logger      *slog.Logger
}

// Result reports what a broadcast reached.
type Result struct {
	ID        int64
	Attempted int
	Delivered int
	Failed    int
}

// Fanout sends broadcasts.
type Fanout struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Fanout.
func New(cfg Config) *Fanout {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{cfg: cfg, logger: logger}
}

// Format is the text clone owners receive. The admin's text is sent
// literally, so Markdown characters in it are escaped.
func Format(text string) string {
	return "📢 *Broadcast from Main Bot:*\n\n" + message.EscapeMarkdown(text)
}

// Broadcast sends text once to each distinct owner of an active clone.
// A non-admin issuer is rejected before anything happens. Individual
// delivery failures are logged and skipped.
func (f *Fanout) Broadcast(ctx context.Context, issuerID int64, text string) (Result, error) {
	if issuerID != f.cfg.AdminID {
		return Result{}, ErrAdminOnly
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	var res Result
	if f.cfg.Store != nil {
		id, err := f.cfg.Store.AddBroadcast(ctx, store.Broadcast{AdminID: issuerID, Message: text})
		if err != nil {
			return Result{}, fmt.Errorf("broadcast: record: %w", err)
		}
		res.ID = id
	}

	owners := f.owners()
	res.Attempted = len(owners)

	var delivered, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	body := Format(text)
	for _, owner := range owners {
		g.Go(func() error {
			if _, err := f.cfg.Sender.Send(gctx, message.NewTextMessage(owner, body)); err != nil {
				failed.Add(1)
				f.logger.Warn("broadcast delivery failed", "owner_id", owner, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Delivered = int(delivered.Load())
	res.Failed = int(failed.Load())

	if f.cfg.Store != nil {
		if err := f.cfg.Store.FinishBroadcast(ctx, res.ID, res.Attempted, res.Delivered); err != nil {
			f.logger.Error("broadcast result not stored", "id", res.ID, "error", err)
		}
	}
	f.cfg.Metrics.ObserveBroadcast(res.Delivered, res.Failed)
	f.cfg.Audit.Log(security.AuditEvent{
		Type:   security.EventBroadcast,
		UserID: issuerID,
		Detail: text,
		Metadata: map[string]string{
			"id":        strconv.FormatInt(res.ID, 10),
			"attempted": strconv.Itoa(res.Attempted),
			"delivered": strconv.Itoa(res.Delivered),
			"failed":    strconv.Itoa(res.Failed),
		},
	})
	f.logger.Info("broadcast sent", "id", res.ID, "attempted", res.Attempted, "delivered", res.Delivered)
	return res, nil
}

// owners returns the distinct owners of active clones, sorted.
func (f *Fanout) owners() []int64 {
	if f.cfg.Instances == nil {
		return nil
	}
	var out []int64
	for _, rec := range f.cfg.Instances.ListActive() {
		if rec.Primary || rec.OwnerID == 0 {
			continue
		}
		out = append(out, rec.OwnerID)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Handler processes one inbound update for the instance that received it.
// Each update is handled on its own goroutine.
type Handler func(ctx context.Context, m channel.Messenger, msg message.InboundMessage)

// Runner drives one bot instance until ctx is done or an error occurs.
// It calls ready once, after the first successful poll.
type Runner interface {
	Run(ctx context.Context, ready func()) error
}

// Launcher builds a Runner for an identity, routing its updates to h.
type Launcher interface {
	Launch(id Identity, h Handler) (Runner, error)
}

// SupervisorConfig tunes a Supervisor.
type SupervisorConfig struct {
	// StartDelay is waited before a clone starts.
	StartDelay time.Duration
	// RecoveryDelay and RecoveryJitter bound the randomized wait applied
	// to each clone restarted by Recover.
	RecoveryDelay  time.Duration
	RecoveryJitter time.Duration
	// OnFailure is called once per instance that ends in Failed.
	OnFailure func(id Identity, err error)

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Supervisor starts instances and isolates their failures from each other.
type Supervisor struct {
	registry *Registry
	launcher Launcher
	clone    Handler
	cfg      SupervisorConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewSupervisor creates a Supervisor. cloneHandler is bound to every clone.
func NewSupervisor(reg *Registry, l Launcher, cloneHandler Handler, cfg SupervisorConfig) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		registry: reg,
		launcher: l,
		clone:    cloneHandler,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the registry the supervisor writes to.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// StartInstance registers a clone and starts it after the configured
// delay. It returns false, with no side effects, when the token already
// has a live record. It never blocks on the instance itself.
func (s *Supervisor) StartInstance(id Identity) bool {
	return s.start(id, s.clone, false, s.cfg.StartDelay)
}

// StartPrimary runs the primary bot through the same path as clones,
// without a delay and with its own handler.
func (s *Supervisor) StartPrimary(id Identity, h Handler) bool {
	return s.start(id, h, true, 0)
}

// Recover restarts persisted clones. Each waits its own randomized delay
// so they do not hit the Bot API at the same instant. It returns how many
// were started.
func (s *Supervisor) Recover(ids []Identity) int {
	started := 0
	for _, id := range ids {
		if s.start(id, s.clone, false, s.recoveryDelay()) {
			started++
		}
	}
	return started
}

func (s *Supervisor) recoveryDelay() time.Duration {
	d := s.cfg.RecoveryDelay
	if s.cfg.RecoveryJitter > 0 {
		d += rand.N(s.cfg.RecoveryJitter)
	}
	return d
}

func (s *Supervisor) start(id Identity, h Handler, primary bool, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if !s.registry.register(id, primary) {
		s.logger.Debug("instance already live", "instance", id.Name)
		return false
	}
	s.syncMetrics()

	s.wg.Add(1)
	go s.run(id, h, delay)
	return true
}

func (s *Supervisor) run(id Identity, h Handler, delay time.Duration) {
	defer s.wg.Done()
	defer s.syncMetrics()

	logger := s.logger.With("instance", id.Name)

	defer func() {
		if r := recover(); r != nil {
			s.fail(logger, id, fmt.Errorf("instance: panic: %v", r))
		}
	}()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			s.registry.MarkStopped(id.Token)
			return
		}
	}

	runner, err := s.launcher.Launch(id, h)
	if err != nil {
		s.fail(logger, id, fmt.Errorf("instance: launch: %w", err))
		return
	}

	logger.Info("instance starting")
	err = runner.Run(s.ctx, func() {
		s.registry.MarkRunning(id.Token)
		s.syncMetrics()
		logger.Info("instance running")
	})

	if err == nil || (s.ctx.Err() != nil && errors.Is(err, context.Canceled)) {
		s.registry.MarkStopped(id.Token)
		logger.Info("instance stopped")
		return
	}
	s.fail(logger, id, err)
}

func (s *Supervisor) fail(logger *slog.Logger, id Identity, err error) {
	s.registry.MarkFailed(id.Token, err)
	logger.Error("instance failed", "error", err, "conflict", errors.Is(err, ErrConflict))
	if s.cfg.OnFailure != nil {
		s.cfg.OnFailure(id, err)
	}
}

func (s *Supervisor) syncMetrics() {
	if s.cfg.Metrics == nil {
		return
	}
	counts := s.registry.Counts()
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	s.cfg.Metrics.SetInstances(out)
}

// Stop cancels every instance and waits for them to return or for ctx
// to expire.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("instance: stop: %w", ctx.Err())
	}
}

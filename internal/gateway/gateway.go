// Package gateway serves the bot's HTTP surface: liveness and stats for
// hosting platforms, and an authenticated admin area with the instance
// list, a live audit feed and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/store"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// InstanceLister is the view of the instance registry the gateway reads.
type InstanceLister interface {
	List() []instance.Record
	Counts() map[instance.State]int
}

// Gateway is the "gateway.http" module.
type Gateway struct {
	config      Config
	appCtx      *core.AppContext
	logger      *slog.Logger
	authLimiter *security.RateLimiter
	startedAt   time.Time

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr

	// Resolved at Start from the service registry. Each may be nil.
	instances InstanceLister
	store     store.Store
	metrics   *metrics.Metrics
	audit     *security.AuditLogger
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.authLimiter = security.NewRateLimiter(g.config.AuthAttemptsPerMin, time.Minute)
	ctx.RegisterService("gateway.auth_limiter", g.authLimiter)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q", g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway auth not configured, admin routes disabled")
	}
	return nil
}

// Start implements core.Starter. Dependencies are looked up lazily so the
// gateway degrades when a service is missing.
func (g *Gateway) Start() error {
	g.instances, _ = core.Service[InstanceLister](g.appCtx, "instance.registry")
	g.store, _ = core.Service[store.Store](g.appCtx, "store")
	g.metrics, _ = core.Service[*metrics.Metrics](g.appCtx, "metrics")
	g.audit, _ = core.Service[*security.AuditLogger](g.appCtx, "security.audit")
	g.startedAt = time.Now()

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	srv := &http.Server{
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}
	g.mu.Lock()
	g.server = srv
	g.addr = ln.Addr()
	g.mu.Unlock()

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return srv.Shutdown(ctx)
}

// Addr returns the listening address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

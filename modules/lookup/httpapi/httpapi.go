// Package httpapi implements the lookup.http module: a lookup.Gateway backed
// by the phone and national-ID HTTP services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// ServiceName is the service registry key of the gateway.
const ServiceName = "lookup.gateway"

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ lookup.Gateway    = (*Gateway)(nil)
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
)

// Gateway performs one bounded GET per lookup. It never retries.
type Gateway struct {
	config  Config
	logger  *slog.Logger
	client  *http.Client
	metrics *metrics.Metrics
}

// New creates a gateway outside the module system.
func New(cfg Config, client *http.Client, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	cfg.defaults()
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{config: cfg, client: client, logger: logger, metrics: m}
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "lookup.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	return node.Decode(&g.config)
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.logger = ctx.Logger
	g.client = &http.Client{}
	if m, ok := core.Service[*metrics.Metrics](ctx, "metrics"); ok {
		g.metrics = m
	}
	ctx.RegisterService(ServiceName, g)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// FetchPhone implements lookup.Gateway.
func (g *Gateway) FetchPhone(ctx context.Context, number string) (lookup.Result, error) {
	return g.fetch(ctx, lookup.KindPhone, g.config.PhoneURL, url.Values{
		g.config.PhoneParam: {number},
	})
}

// FetchNationalID implements lookup.Gateway.
func (g *Gateway) FetchNationalID(ctx context.Context, id string) (lookup.Result, error) {
	q := url.Values{g.config.NationalIDParam: {id}}
	if g.config.NationalIDKey != "" {
		q.Set(g.config.KeyParam, g.config.NationalIDKey)
	}
	return g.fetch(ctx, lookup.KindNationalID, g.config.NationalIDURL, q)
}

func (g *Gateway) fetch(ctx context.Context, kind lookup.Kind, base string, params url.Values) (res lookup.Result, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "lookup.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("lookup.kind", string(kind))),
	)
	start := time.Now()
	defer func() {
		g.metrics.ObserveUpstream(string(kind), res.Succeeded, start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upstream unavailable")
		}
		span.End()
	}()

	res = lookup.Result{Kind: kind}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	endpoint, err := withQuery(base, params)
	if err != nil {
		return res, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return res, fmt.Errorf("lookup.http: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return res, unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, unavailable(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.config.MaxBodyBytes))
	if err != nil {
		return res, unavailable(err)
	}
	if !json.Valid(body) {
		return res, unavailable(errors.New("response is not valid JSON"))
	}

	g.logger.Debug("lookup fetched", "kind", kind, "bytes", len(body), "elapsed", time.Since(start))
	res.Succeeded = true
	res.Payload = body
	return res, nil
}

func withQuery(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("lookup.http: parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", lookup.ErrUpstreamUnavailable, err)
}

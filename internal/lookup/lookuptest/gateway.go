// Package lookuptest provides a scriptable lookup.Gateway for tests.
package lookuptest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/lookupbot/internal/lookup"
)

// Gateway answers lookups with canned payloads. A nil payload for a kind
// produces an unsuccessful result wrapping lookup.ErrUpstreamUnavailable.
type Gateway struct {
	Phone      json.RawMessage
	NationalID json.RawMessage

	// Block, when set, makes every call wait for ctx to be done.
	Block bool

	mu    sync.Mutex
	calls []string
}

var _ lookup.Gateway = (*Gateway)(nil)

// FetchPhone implements lookup.Gateway.
func (g *Gateway) FetchPhone(ctx context.Context, number string) (lookup.Result, error) {
	return g.fetch(ctx, lookup.KindPhone, number, g.Phone)
}

// FetchNationalID implements lookup.Gateway.
func (g *Gateway) FetchNationalID(ctx context.Context, id string) (lookup.Result, error) {
	return g.fetch(ctx, lookup.KindNationalID, id, g.NationalID)
}

func (g *Gateway) fetch(ctx context.Context, kind lookup.Kind, input string, payload json.RawMessage) (lookup.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, input)
	g.mu.Unlock()

	if g.Block {
		<-ctx.Done()
		return lookup.Result{Kind: kind}, ctx.Err()
	}
	if payload == nil {
		return lookup.Result{Kind: kind}, lookup.ErrUpstreamUnavailable
	}
	return lookup.Result{Kind: kind, Succeeded: true, Payload: payload}, nil
}

// Calls returns the inputs passed to the gateway, in order.
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

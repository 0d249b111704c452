package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/lookupbot/internal/security"
)

const (
	feedBuffer       = 64
	feedWriteTimeout = 5 * time.Second
)

// handleAuditFeed streams audit events as JSON text frames. An optional
// ?type= query keeps only events of that type. Events are dropped for a
// client that cannot keep up.
func (g *Gateway) handleAuditFeed(w http.ResponseWriter, r *http.Request) {
	if g.audit == nil {
		http.Error(w, "audit log unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	filter := security.EventType(r.URL.Query().Get("type"))
	events := make(chan security.AuditEvent, feedBuffer)
	unsubscribe := g.audit.Subscribe(func(e security.AuditEvent) {
		if filter != "" && e.Type != filter {
			return
		}
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	// The feed is write-only; CloseRead handles control frames and
	// cancels ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	g.logger.Info("audit feed connected", "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("audit feed disconnected", "remote_addr", r.RemoteAddr)
			return
		case e := <-events:
			if err := writeEvent(ctx, conn, e); err != nil {
				g.logger.Warn("audit feed write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e security.AuditEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

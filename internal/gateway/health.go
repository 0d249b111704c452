package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/security"
)

// RootResponse is the JSON body of GET /.
type RootResponse struct {
	Service       string `json:"service"`
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status    string         `json:"status"` // "ok" or "degraded"
	Primary   string         `json:"primary"`
	Instances map[string]int `json:"instances"`
}

// StatsResponse is the JSON body of GET /stats.
type StatsResponse struct {
	TotalClones   int            `json:"total_clones"`
	Owners        int            `json:"owners"`
	Broadcasts    int            `json:"broadcasts"`
	Activities    int            `json:"activities"`
	Instances     map[string]int `json:"instances"`
	UptimeSeconds int64          `json:"uptime_seconds"`
}

type instanceJSON struct {
	Name      string `json:"name"`
	Token     string `json:"token"`
	OwnerID   int64  `json:"owner_id"`
	State     string `json:"state"`
	Primary   bool   `json:"primary"`
	StartedAt string `json:"started_at"`
	LastError string `json:"last_error,omitempty"`
}

func (g *Gateway) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, RootResponse{
			Service:       "lookupbot",
			Status:        "running",
			UptimeSeconds: g.uptime(),
		})
	}
}

// handleHealth answers 503 while the primary bot is not running, so a
// host's health check restarts a process whose main bot is down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "degraded", Primary: "absent", Instances: map[string]int{}}

		if g.instances != nil {
			resp.Instances = stateCounts(g.instances.Counts())
			for _, rec := range g.instances.List() {
				if rec.Primary {
					resp.Primary = string(rec.State)
					if rec.State == instance.StateRunning {
						resp.Status = "ok"
					}
					break
				}
			}
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func (g *Gateway) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{Instances: map[string]int{}, UptimeSeconds: g.uptime()}

		if g.store != nil {
			stats, err := g.store.Stats(r.Context())
			if err != nil {
				g.logger.Error("stats query failed", "error", err)
				http.Error(w, "stats unavailable", http.StatusInternalServerError)
				return
			}
			resp.TotalClones = stats.Clones
			resp.Owners = stats.Owners
			resp.Broadcasts = stats.Broadcasts
			resp.Activities = stats.Activities
		}
		if g.instances != nil {
			resp.Instances = stateCounts(g.instances.Counts())
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// handleInstances lists every registered instance. Tokens are masked.
func (g *Gateway) handleInstances() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []instanceJSON{}
		if g.instances != nil {
			for _, rec := range g.instances.List() {
				item := instanceJSON{
					Name:      rec.Name,
					Token:     security.MaskToken(rec.Token),
					OwnerID:   rec.OwnerID,
					State:     string(rec.State),
					Primary:   rec.Primary,
					StartedAt: rec.StartedAt.UTC().Format(time.RFC3339),
					LastError: rec.LastError,
				}
				out = append(out, item)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) uptime() int64 {
	if g.startedAt.IsZero() {
		return 0
	}
	return int64(time.Since(g.startedAt).Seconds())
}

func stateCounts(counts map[instance.State]int) map[string]int {
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

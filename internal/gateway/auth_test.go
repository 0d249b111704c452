package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/security/securitytest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BearerToken: "secret-token", BasicUser: "admin", BasicPass: "pass123"}

	tests := []struct {
		name    string
		prepare func(*http.Request)
		want    int
		event   security.EventType
	}{
		{"bearer ok", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") }, http.StatusOK, security.EventAuthSuccess},
		{"bearer wrong", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, security.EventAuthFailure},
		{"basic ok", func(r *http.Request) { r.SetBasicAuth("admin", "pass123") }, http.StatusOK, security.EventAuthSuccess},
		{"basic wrong", func(r *http.Request) { r.SetBasicAuth("admin", "guess") }, http.StatusUnauthorized, security.EventAuthFailure},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, security.EventAuthFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			audit, events := securitytest.NewTestAuditLogger()
			handler := authMiddleware(cfg, audit, nil)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			got := events()
			if len(got) != 1 || got[0].Type != tt.event {
				t.Fatalf("events = %+v, want one %s", got, tt.event)
			}
			if got[0].Metadata["path"] != "/api/instances" {
				t.Errorf("metadata = %v", got[0].Metadata)
			}
		})
	}
}

func TestAuthMiddleware_RateLimitedPerHost(t *testing.T) {
	t.Parallel()

	limiter := security.NewRateLimiter(2, time.Minute)
	handler := authMiddleware(AuthConfig{BearerToken: "tok"}, nil, limiter)(okHandler())

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = remote
		req.Header.Set("Authorization", "Bearer wrong")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for range 2 {
		if code := do("10.0.0.1:5000"); code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", code)
		}
	}
	if code := do("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Errorf("third attempt from same host = %d, want 429", code)
	}
	if code := do("10.0.0.2:5000"); code != http.StatusUnauthorized {
		t.Errorf("other host = %d, want 401", code)
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg  AuthConfig
		want bool
	}{
		{AuthConfig{}, false},
		{AuthConfig{BearerToken: "x"}, true},
		{AuthConfig{BasicUser: "u"}, false},
		{AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.IsConfigured(); got != tt.want {
			t.Errorf("%+v.IsConfigured() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

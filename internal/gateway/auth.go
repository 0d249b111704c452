package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/lookupbot/internal/security"
)

// authMiddleware checks a Bearer token or Basic credentials in constant
// time. Attempts are rate limited per remote host and audited.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.Allow("auth:" + remoteHost(r)); err != nil {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			method, ok := authenticate(cfg, r)
			if !ok {
				emitAuthEvent(audit, security.EventAuthFailure, r, method)
				w.Header().Set("WWW-Authenticate", `Bearer realm="lookupbot"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			emitAuthEvent(audit, security.EventAuthSuccess, r, method)
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate returns the method that succeeded, or the reason for the
// failure.
func authenticate(cfg AuthConfig, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header", false
	}
	if cfg.BearerToken != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && constantTimeEqual(token, cfg.BearerToken) {
			return "bearer", true
		}
	}
	if cfg.BasicUser != "" && cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
			return "basic", true
		}
	}
	return "invalid credentials", false
}

func emitAuthEvent(audit *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	audit.Log(security.AuditEvent{
		Type:   eventType,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

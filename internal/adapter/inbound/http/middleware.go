package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/danubesoft/ifn-gateway/internal/ctxkey"
	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
)

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The ID is stored under ctxkey.RequestIDKey and echoed back in the
// X-Request-ID response header.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// logFromContext retrieves the request-enriched logger, or slog.Default().
func logFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// APIKeyMiddleware authenticates requests with a Bearer token against the
// key ring. An empty ring disables authentication entirely, the local
// deployment mode.
func APIKeyMiddleware(ring *auth.KeyRing) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ring == nil || ring.Empty() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			key, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || key == "" {
				writeError(w, r, http.StatusUnauthorized, "missing API key")
				return
			}

			if err := ring.Validate(key); err != nil {
				logFromContext(r.Context()).Warn("rejected request with invalid API key",
					"source_ip", realIPFromContext(r.Context()))
				writeError(w, r, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RealIPMiddleware extracts the client's real IP for logging and the call
// trail. It trusts only the first X-Forwarded-For entry, falling back to
// X-Real-IP and then RemoteAddr.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractRealIP(r)
		ctx := context.WithValue(r.Context(), ctxkey.RealIPKey{}, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func realIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ctxkey.RealIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func extractRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

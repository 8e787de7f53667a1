package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danubesoft/ifn-gateway/internal/adapter/outbound/memory"
	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
	"github.com/danubesoft/ifn-gateway/internal/service"
)

func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyMiddleware_EmptyRingDisablesAuth(t *testing.T) {
	ring, err := auth.NewKeyRing(nil)
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	handler := APIKeyMiddleware(ring)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lista-mesaje", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestAPIKeyMiddleware_RequiresBearerToken(t *testing.T) {
	ring, err := auth.NewKeyRing([]string{auth.HashKey("secret-key")})
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}
	handler := APIKeyMiddleware(ring)(okHandler())

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"wrong key", "Bearer not-it", http.StatusUnauthorized},
		{"valid key", "Bearer secret-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/lista-mesaje", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"x-forwarded-for single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.1:1234", "203.0.113.9"},
		{"x-forwarded-for chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.1:1234", "203.0.113.9"},
		{"x-real-ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:1234", "198.51.100.4"},
		{"remote addr fallback", nil, "192.0.2.7:5555", "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = realIPFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("real IP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	metrics := NewMetrics(newTestRegistry(), nil)
	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lista-mesaje", nil))

	got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/lista-mesaje", "error"))
	if got != 1 {
		t.Errorf("requests_total{/lista-mesaje,error} = %v, want 1", got)
	}
}

func TestMetricsMiddleware_SkipsOperationalEndpoints(t *testing.T) {
	metrics := NewMetrics(newTestRegistry(), nil)
	handler := MetricsMiddleware(metrics)(okHandler())

	for _, path := range []string{"/metrics", "/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.CollectAndCount(metrics.RequestsTotal); got != 0 {
		t.Errorf("operational endpoints produced %d request metric series, want 0", got)
	}
}

func TestRecentCallsEndpoint(t *testing.T) {
	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	trail := service.NewTrailService(store, testLogger())
	trail.Start(context.Background())
	defer trail.Stop()

	trail.Record(audit.CallRecord{
		Timestamp: time.Now().UTC(),
		RequestID: "req-1",
		Operation: "lista-mesaje",
		Outcome:   audit.OutcomeRelayed,
	})

	// Wait for the worker to flush.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(store.GetRecent(1)) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	handler := newTestTransport(
		&stubClient{resp: &upstream.Response{StatusCode: 200}},
		WithTrail(trail),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/recent?n=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var records []audit.CallRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("body is not a record list: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "req-1" {
		t.Errorf("records = %+v, want the recorded call", records)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/recent?n=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad n parameter: status = %d, want 400", rec.Code)
	}
}

func TestRecentCallsEndpoint_RequiresAuthWhenConfigured(t *testing.T) {
	store := memory.NewTrailStoreWithWriter(&bytes.Buffer{})
	trail := service.NewTrailService(store, testLogger())

	ring, err := auth.NewKeyRing([]string{auth.HashKey("trail-key")})
	if err != nil {
		t.Fatalf("NewKeyRing: %v", err)
	}

	handler := newTestTransport(
		&stubClient{resp: &upstream.Response{StatusCode: 200}},
		WithTrail(trail),
		WithKeyRing(ring),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/recent", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated trail read: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audit/recent", nil)
	req.Header.Set("Authorization", "Bearer trail-key")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated trail read: status = %d, want 200", rec.Code)
	}
}

func TestLogFromContext_Fallback(t *testing.T) {
	if logFromContext(context.Background()) == nil {
		t.Error("logFromContext must fall back to a usable logger")
	}
}

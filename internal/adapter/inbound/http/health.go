package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/danubesoft/ifn-gateway/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker reports gateway component health. The gateway is healthy as
// long as it can accept requests; an unestablished upstream session is
// reported but not failing, since sessions are established lazily.
type HealthChecker struct {
	sessionAuthenticated func() bool
	trail                *service.TrailService
	version              string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't available.
func NewHealthChecker(sessionAuthenticated func() bool, trail *service.TrailService, version string) *HealthChecker {
	return &HealthChecker{
		sessionAuthenticated: sessionAuthenticated,
		trail:                trail,
		version:              version,
	}
}

// Check performs the component checks.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)

	if h.sessionAuthenticated != nil {
		if h.sessionAuthenticated() {
			checks["upstream_session"] = "established"
		} else {
			checks["upstream_session"] = "not established"
		}
	} else {
		checks["upstream_session"] = "not configured"
	}

	if h.trail != nil {
		if drops := h.trail.DroppedRecords(); drops > 0 {
			checks["trail"] = fmt.Sprintf("%d records dropped", drops)
		} else {
			checks["trail"] = "ok"
		}
	} else {
		checks["trail"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns the /health endpoint handler.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}

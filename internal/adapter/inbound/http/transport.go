package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
	"github.com/danubesoft/ifn-gateway/internal/port/inbound"
	"github.com/danubesoft/ifn-gateway/internal/service"
)

// Transport is the inbound adapter that exposes the gateway operations over
// HTTP.
type Transport struct {
	gateway       *service.GatewayService
	trail         *service.TrailService
	server        *http.Server
	addr          string
	keyRing       *auth.KeyRing
	registry      *prometheus.Registry
	healthChecker *HealthChecker
	metrics       *Metrics
	logger        *slog.Logger
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8000".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithKeyRing enables inbound API key authentication.
func WithKeyRing(ring *auth.KeyRing) Option {
	return func(t *Transport) { t.keyRing = ring }
}

// WithTrail enables the recent-calls endpoint and trail drop metrics.
func WithTrail(trail *service.TrailService) Option {
	return func(t *Transport) { t.trail = trail }
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) { t.healthChecker = hc }
}

// WithRegistry sets the Prometheus registry shared with the outbound client
// metrics. A fresh registry is created when none is given.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(t *Transport) { t.registry = reg }
}

// NewTransport creates the HTTP transport around the gateway service.
func NewTransport(gateway *service.GatewayService, opts ...Option) *Transport {
	t := &Transport{
		gateway: gateway,
		addr:    "127.0.0.1:8000",
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins accepting HTTP requests. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
		t.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var trailDrops func() float64
	if t.trail != nil {
		trailDrops = func() float64 { return float64(t.trail.DroppedRecords()) }
	}
	t.metrics = NewMetrics(t.registry, trailDrops)

	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// buildHandler assembles the mux and the middleware chain. Order (outermost
// first): Metrics, RequestID, RealIP, APIKey, business handler.
func (t *Transport) buildHandler() http.Handler {
	handlers := newBusinessHandlers(t.gateway)

	business := http.NewServeMux()
	business.HandleFunc("POST /lista-mesaje", handlers.listaMesaje)
	business.HandleFunc("POST /stare-mesaj", handlers.stareMesaj)
	business.HandleFunc("POST /descarcare-mesaj", handlers.descarcareMesaj)
	business.HandleFunc("POST /upload-mesaj", handlers.uploadMesaj)
	if t.trail != nil {
		business.Handle("GET /audit/recent", recentCallsHandler(t.trail))
	}

	var protected http.Handler = business
	protected = APIKeyMiddleware(t.keyRing)(protected)

	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		}))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))
	mux.Handle("/", protected)

	var handler http.Handler = mux
	handler = RealIPMiddleware(handler)
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// shutdown performs graceful shutdown with a bounded deadline.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

var _ inbound.Transport = (*Transport)(nil)

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	inboundhttp "github.com/danubesoft/ifn-gateway/internal/adapter/inbound/http"
	auditstore "github.com/danubesoft/ifn-gateway/internal/adapter/outbound/audit"
	"github.com/danubesoft/ifn-gateway/internal/adapter/outbound/banci"
	celclassifier "github.com/danubesoft/ifn-gateway/internal/adapter/outbound/cel"
	"github.com/danubesoft/ifn-gateway/internal/adapter/outbound/memory"
	"github.com/danubesoft/ifn-gateway/internal/config"
	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
	"github.com/danubesoft/ifn-gateway/internal/service"
	"github.com/danubesoft/ifn-gateway/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the IFN gateway server.

The server listens for JSON business requests, wraps them in the upstream
XML envelopes, and relays them over the authenticated session. The session
is established lazily on the first call.

Examples:
  # Start with config file settings
  ifn-gateway start

  # Start with a specific config file
  ifn-gateway --config /path/to/config.yaml start`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C is a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Write PID file so "ifn-gateway stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("ifn-gateway stopped")
	return nil
}

// run wires the gateway together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "ifn-gateway",
		Version:     Version,
		Environment: cfg.Telemetry.Environment,
		Enabled:     cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()

	sessionClient, err := buildSessionClient(cfg, registry, logger)
	if err != nil {
		return err
	}

	trailStore, err := buildTrailStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create trail store: %w", err)
	}
	defer func() { _ = trailStore.Close() }()

	trail := service.NewTrailService(trailStore, logger,
		service.WithChannelSize(cfg.Trail.CacheSize),
	)
	trail.Start(ctx)
	defer trail.Stop()

	gateway := service.NewGatewayService(sessionClient, trail, logger)

	ring, err := auth.NewKeyRing(cfg.Auth.APIKeys)
	if err != nil {
		return fmt.Errorf("failed to build API key ring: %w", err)
	}
	if ring.Empty() {
		logger.Warn("no API keys configured, inbound authentication disabled")
	}

	health := inboundhttp.NewHealthChecker(sessionClient.Authenticated, trail, Version)

	server := inboundhttp.NewTransport(gateway,
		inboundhttp.WithAddr(cfg.Server.Addr),
		inboundhttp.WithLogger(logger),
		inboundhttp.WithKeyRing(ring),
		inboundhttp.WithTrail(trail),
		inboundhttp.WithHealthChecker(health),
		inboundhttp.WithRegistry(registry),
	)

	logger.Info("ifn-gateway starting",
		"addr", cfg.Server.Addr,
		"upstream", cfg.Upstream.BaseURL,
		"version", Version,
	)

	return server.Start(ctx)
}

// buildSessionClient assembles the outbound session client: mTLS transport,
// response classifier, bootstrap probe, and metrics.
func buildSessionClient(cfg *config.Config, registry *prometheus.Registry, logger *slog.Logger) (*banci.SessionClient, error) {
	tlsConf, err := banci.NewTLSConfig(banci.TLSOptions{
		CertFile:    cfg.Upstream.ClientCert,
		KeyFile:     cfg.Upstream.ClientKey,
		TrustPolicy: cfg.Upstream.TrustPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure outbound TLS: %w", err)
	}
	if cfg.Upstream.TrustPolicy == banci.TrustInsecure {
		logger.Warn("upstream certificate verification disabled")
	}

	// otelhttp spans are no-ops unless the tracer provider is installed.
	transport := otelhttp.NewTransport(banci.NewTransport(tlsConf))

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}

	client, err := banci.NewSessionClient(cfg.Upstream.BaseURL, transport,
		banci.WithLogger(logger),
		banci.WithClassifier(classifier),
		banci.WithBootstrap(cfg.Upstream.BootstrapEndpoint, service.BootstrapPayload()),
		banci.WithTimeouts(cfg.Upstream.BootstrapTimeoutDuration(), cfg.Upstream.RequestTimeoutDuration()),
		banci.WithClientID(cfg.Upstream.ClientID),
		banci.WithMetrics(banci.NewMetrics(registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session client: %w", err)
	}
	return client, nil
}

// buildClassifier returns the CEL classifier when an expression is
// configured, the status-set heuristic otherwise.
func buildClassifier(cfg *config.Config) (upstream.Classifier, error) {
	if cfg.Classifier.Expression != "" {
		cl, err := celclassifier.NewClassifier(cfg.Classifier.Expression, cfg.Classifier.BootstrapStatuses)
		if err != nil {
			return nil, fmt.Errorf("failed to compile classifier expression: %w", err)
		}
		return cl, nil
	}
	return upstream.NewHeuristicClassifier(cfg.Classifier.InvalidStatuses, cfg.Classifier.BootstrapStatuses), nil
}

// buildTrailStore returns the file-backed store when trail.dir is set, the
// stdout JSON-lines store otherwise.
func buildTrailStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	if cfg.Trail.Dir == "" {
		return memory.NewTrailStore(cfg.Trail.CacheSize), nil
	}
	return auditstore.NewFileStore(auditstore.FileStoreConfig{
		Dir:           cfg.Trail.Dir,
		RetentionDays: cfg.Trail.RetentionDays,
		MaxFileSizeMB: cfg.Trail.MaxFileSizeMB,
		CacheSize:     cfg.Trail.CacheSize,
	}, logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the location of the server PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".ifn-gateway", "server.pid")
	}
	return filepath.Join(os.TempDir(), "ifn-gateway-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// readPIDFile returns the PID stored at path, or 0 when absent or malformed.
func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danubesoft/ifn-gateway/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the upstream session once and report the result",
	Long: `Probe the upstream access layer once and report whether a session could
be established with the configured client certificate.

This performs the same bootstrap the server runs lazily on its first
business call, then exits. Useful for verifying a certificate renewal or a
connectivity change without starting the server.

Exit status is 0 when the session was established, 1 otherwise.

Examples:
  ifn-gateway check
  ifn-gateway --config /path/to/config.yaml check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	client, err := buildSessionClient(cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Upstream.BootstrapTimeoutDuration()+5*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.EnsureAuthenticated(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: session established with %s in %s\n",
		cfg.Upstream.BaseURL, time.Since(start).Round(time.Millisecond))
	return nil
}

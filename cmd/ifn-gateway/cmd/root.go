// Package cmd provides the CLI commands for the IFN gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danubesoft/ifn-gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ifn-gateway",
	Short: "IFN Gateway - ANAF BANCIWS session gateway",
	Long: `IFN Gateway relays XML business requests to the ANAF BANCIWS REST API.

The upstream sits behind an access-control layer that authenticates the
gateway's client certificate and issues a session cookie through a redirect
chain. The gateway owns that session: it bootstraps it lazily, detects when
the access layer silently invalidates it, and re-authenticates transparently
so callers never see a session error.

Quick start:
  1. Create a config file: ifn-gateway.yaml
  2. Run: ifn-gateway start

Configuration:
  Config is loaded from ifn-gateway.yaml in the current directory,
  $HOME/.ifn-gateway/, or /etc/ifn-gateway/.

  Environment variables can override config values with the IFN_GATEWAY_ prefix.
  Example: IFN_GATEWAY_SERVER_ADDR=127.0.0.1:9000

Commands:
  start       Start the gateway server
  check       Probe the upstream session once and report the result
  stop        Stop the running server
  hash-key    Hash an API key for the auth.api_keys config list
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ifn-gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

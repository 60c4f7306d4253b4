// Package cmd wires the cobra command tree for the scim-ad-bridge binary.
package cmd

import (
	"context"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	logger  kitlog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scim-ad-bridge",
	Short: "A SCIM 2.0 provisioning bridge in front of Active Directory.",
	Long: `scim-ad-bridge translates SCIM User writes from an identity provider into
Active Directory account operations, mediated through directory-management
command-line tooling and backed by a local Postgres cache.`,
}

// ExecuteContext runs the root command with ctx, exiting the process on
// failure the way scim-mediator's ExecuteContext does.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		level.Error(logger).Log("msg", "command failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	logger = kitlog.NewLogfmtLogger(os.Stderr)
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.env or yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug level logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func rootLogger() kitlog.Logger {
	if debug {
		return kitlog.With(logger, "level", "debug")
	}
	return level.NewFilter(logger, level.AllowInfo())
}

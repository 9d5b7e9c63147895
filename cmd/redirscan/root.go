package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for redirscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirscan",
		Short: "Trace and analyze HTTP redirect chains",
		Long: `redirscan follows the redirect chain of a URL one hop at a time and reports
every intermediate response, the final destination and a risk assessment.

Shortener chains, suspicious top-level domains, punycode hosts, HTTPS
downgrades and heavy tracking are flagged. With --deep the final page's
certificate and content are inspected as well.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewTraceCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns the context of cmd, or Background when cmd was not
// started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

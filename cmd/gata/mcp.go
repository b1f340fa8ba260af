package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datagata/gata/pkg/mcp"
	"github.com/datagata/gata/pkg/metrics"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve cache, approval, metrics and table tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol.
			a, err := newApp(ctx, *configPath, cmd.Flags().Changed("config"), "stderr")
			if err != nil {
				return err
			}
			defer a.Close()

			opts := mcp.Options{
				Approvals: a.approvals(),
				Tables:    a.catalog(),
				Version:   version,
				Logger:    a.log.Named("mcp"),
			}
			if c := a.cache(); c != nil {
				opts.Cache = c
			}
			// Outcomes live in the serve process.
			if u := a.cfg.Metrics.ServerURL; u != "" {
				opts.Metrics = metrics.NewClient(u, 0)
			}
			return mcp.New(opts).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}

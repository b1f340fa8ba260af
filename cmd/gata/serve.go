package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/server"
)

const purgeInterval = time.Hour

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, cmd.Flags().Changed("config"), "")
			if err != nil {
				return err
			}
			defer a.Close()
			if listen != "" {
				a.cfg.Listen = listen
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			agg, err := a.aggregator(reg)
			if err != nil {
				return err
			}
			r, err := a.router(agg)
			if err != nil {
				return err
			}

			deps := server.Deps{
				Router:    r,
				Approvals: a.approvals(),
				Catalog:   a.catalog(),
				Metrics:   agg,
				Logger:    a.log.Named("http"),
			}
			if a.cfg.Metrics.Prometheus {
				deps.Gatherer = reg
			}
			if c := a.cache(); c != nil {
				deps.Cache = c
				go c.RunPurge(ctx, purgeInterval)
			}

			a.log.Info("starting gata",
				zap.String("version", version),
				zap.String("storage", a.cfg.Storage.Backend),
				zap.Bool("cache", a.cfg.Cache.Enabled),
			)
			if err := server.New(a.cfg, deps).ListenAndServe(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}

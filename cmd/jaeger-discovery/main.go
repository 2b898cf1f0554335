// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Command jaeger-discovery runs the stateful service/operation discovery
// daemon of SPEC_FULL.md: it ingests spans from an OpenSearch/Elasticsearch
// trace store, infers the active service/operation topology, and publishes
// it to a relation-graph service once per poll period.
package main

import (
	"context"
	"errors"
	goflag "flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jaegertracing/jaeger-discovery/cmd/jaeger-discovery/app"
	"github.com/jaegertracing/jaeger-discovery/internal/healthcheck"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/errs"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/graphsink/httpsink"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/schedule"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/spansource/opensearch"
	"github.com/jaegertracing/jaeger-discovery/internal/topodiscovery/statestore/file"
)

func main() {
	v := viper.New()
	cfg := &app.Config{}

	command := &cobra.Command{
		Use:   "jaeger-discovery",
		Short: "Discovers the active service/operation topology from a trace store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.InitFromViper(v)
			return run(cmd.Context(), cfg)
		},
	}

	flags := new(goflag.FlagSet)
	cfg.AddFlags(flags)
	command.PersistentFlags().AddGoFlagSet(flags)
	v.BindPFlags(command.PersistentFlags())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	command.SetContext(ctx)

	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg *app.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	hc := healthcheck.New()

	esClient, err := opensearch.NewClient(cfg.ES, logger)
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}
	source := opensearch.NewSource(esClient, cfg.ES, logger)
	sink := httpsink.New(cfg.GraphSink, logger)

	store, err := file.Open(cfg.StateDir, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	sched := schedule.New(cfg.Discovery, source, sink, store, logger, reg)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsHTTPPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HealthHTTPPort),
		Handler: hc.Handler(),
	}
	for _, srv := range []*http.Server{metricsServer, healthServer} {
		srv := srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin server stopped", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}()
	}

	hc.Set(healthcheck.Ready)
	logger.Info("jaeger-discovery starting",
		zap.Duration("poll_period", cfg.Discovery.PollPeriod),
		zap.String("state_dir", cfg.StateDir))

	err = sched.Run(ctx)

	hc.Set(healthcheck.Unavailable)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = healthServer.Shutdown(shutdownCtx)

	return err
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("invalid log-level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// exitCode maps errors to the exit codes of spec.md §6: 0 on clean
// shutdown (ctx canceled), 1 on a fatal configuration error, 2 on
// unrecoverable state I/O at startup, 1 as a catch-all otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *errs.ConfigError
	if errors.As(err, &cfgErr) {
		return 1
	}
	var ioErr *errs.StateIOError
	if errors.As(err, &ioErr) {
		return 2
	}
	return 1
}

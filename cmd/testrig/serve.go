package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"testrig/internal/adapters/rig"
	"testrig/internal/blob"
	"testrig/internal/core"
	"testrig/internal/readings"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the training rig HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, flags *rootFlags, addr string) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	store, err := core.OpenSessionStore(ctx, cfg.StorageOptions())
	if err != nil {
		return err
	}
	artifacts, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		_ = store.Close()
		return err
	}

	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusRecorder(registry)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("register metrics: %w", err)
	}
	svc := core.NewService(cat,
		core.WithLogger(logger),
		core.WithStore(store),
		core.WithMetricsRecorder(recorder),
		core.WithReadingGenerator(readings.New(cat)),
	)
	defer func() { _ = svc.Close() }()

	worker := rig.NewWorker(svc, artifacts, rig.ZapAuditLogger{Logger: logger.Named("audit")})
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/api/", rig.NewHandler(svc, worker, logger))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", addr),
			zap.String("catalog", cat.Version()),
			zap.String("storage", string(cfg.StorageOptions().Driver)),
			zap.String("blob", string(artifacts.Driver())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

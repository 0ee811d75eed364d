package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/opencode-exporter/pkg/collector"
	"github.com/pario-ai/opencode-exporter/pkg/config"
	"github.com/pario-ai/opencode-exporter/pkg/logging"
	"github.com/pario-ai/opencode-exporter/pkg/poller"
	"github.com/pario-ai/opencode-exporter/pkg/server"
	"github.com/pario-ai/opencode-exporter/pkg/snapshot"
)

// runExporter serves metrics and polls the database until interrupted.
func runExporter(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	_, statErr := os.Stat(cfg.DBPath)
	logger.Info("starting opencode exporter",
		zap.String("version", version),
		zap.String("db_path", cfg.DBPath),
		zap.Bool("db_exists", statErr == nil),
		zap.Int("port", cfg.Port),
		zap.Duration("interval", cfg.Interval))

	ln, err := server.Listen(cfg.Addr())
	if err != nil {
		logger.Error("cannot bind metrics port", zap.String("addr", cfg.Addr()), zap.Error(err))
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	store := snapshot.NewStore()
	loop := poller.New(collector.New(cfg.DBPath), store, cfg.Interval, poller.WithLogger(logger))
	srv := server.New(store, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})

	err = g.Wait()
	logger.Info("exporter stopped")
	return err
}

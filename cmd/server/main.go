// Package main is the entry point for the design-feed HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/design-feed/internal/app"
	"github.com/fleveque/design-feed/internal/config"
	"github.com/fleveque/design-feed/internal/server"
)

func main() {
	// run() keeps deferred cleanup working; os.Exit would skip it.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv(config.ConfigPathEnv))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing components", zap.Error(err))
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := a.Cache.StartSweeper(sweepCtx, cfg.Cache.SweepInterval, cfg.Cache.Retention)
	defer func() {
		stopSweeper()
		<-sweeperDone
	}()

	srv := server.New(cfg, server.Deps{
		Feed:        a.Aggregator,
		Prefetcher:  a.Prefetcher,
		Advice:      a.Advice,
		Thumbnails:  a.Thumbnails,
		Cache:       a.Cache,
		LLMCallRepo: a.LLMCallRepo,
		LLMNames:    a.LLMNames,
		Providers:   a.Registry.Names(),
		Gatherer:    a.Gatherer,
	}, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// In-flight requests get 10 seconds; prefetches are cancelled by
	// a.Close once the listener is down.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

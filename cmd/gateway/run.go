package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nanobridge/orchestrator/internal/config"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !cfg.HasAnyProvider() {
		fmt.Println("No AI provider API key configured. Run `gateway configure` or set a provider env var, then try again.")
		os.Exit(1)
	}

	shutdownTracing, err := setupTelemetry(cfg)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTLP export", "error", err)
	}

	gw, err := newGateway(cfg, cfgPath)
	if err != nil {
		slog.Error("failed to bootstrap gateway", "error", err)
		os.Exit(1)
	}

	watcher, err := config.WatchFile(cfgPath, cfg)
	if err != nil {
		slog.Warn("config: hot-reload watcher failed to start, edits to config.json require a restart", "error", err)
	}

	tsnet, err := startTsnetListener(cfg, gw)
	if err != nil {
		slog.Warn("tsnet: admin listener disabled", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw.Start(ctx)
	slog.Info("gateway running", "config", cfgPath)

	<-ctx.Done()
	slog.Info("shutting down")

	if watcher != nil {
		_ = watcher.Stop()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	gw.Stop(stopCtx)
	tsnet.Stop(stopCtx)
	if shutdownTracing != nil {
		shutdownTracing(stopCtx)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowkit/taskgraph/internal/config"
	"github.com/flowkit/taskgraph/internal/demo"
	"github.com/flowkit/taskgraph/internal/httpapi"
	"github.com/flowkit/taskgraph/internal/runner"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/pipeline.yaml", "Path to pipeline YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Build initial graph ──────────────────────────────────────────────────
	reg := demo.DefaultRegistry()
	g, err := demo.Build(cfg, reg)
	if err != nil {
		slog.Error("failed to build graph", "err", err)
		os.Exit(1)
	}
	if err := g.Validate(); err != nil {
		slog.Error("graph validation failed", "err", err)
		os.Exit(1)
	}
	slog.Info("graph built", "nodes", g.NodeCount())

	// ── Runner ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := runner.New(g, cfg.Engine, logger)
	run.Start(ctx)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.PipelineConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		newGraph, err := demo.Build(newCfg, reg)
		if err != nil {
			slog.Warn("hot-reload skipped: graph build failed", "err", err)
			return
		}
		if err := newGraph.Validate(); err != nil {
			slog.Warn("hot-reload skipped: graph validation failed", "err", err)
			return
		}
		run.SwapGraph(newGraph)
		slog.Info("graph hot-reloaded", "nodes", newGraph.NodeCount())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := httpapi.New(run, loader, reg, logger)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	run.Shutdown()
	slog.Info("goodbye")
}

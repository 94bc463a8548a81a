// Package runner owns the live *graph.Graph a demo pipeline is built from
// and drives passes over it. There is no event queue to buffer here — a
// "pass" runs to completion synchronously — so this package's job is
// narrower: an atomic swap on hot-reload, optional periodic re-runs, and
// graceful shutdown of anything in flight.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flowkit/taskgraph/executor"
	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/internal/config"
)

// Runner holds the current graph and runs passes over it on a schedule.
type Runner struct {
	g      atomic.Pointer[graph.Graph]
	conf   config.EngineConf
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// New creates a Runner over g using conf's mode/worker settings.
func New(g *graph.Graph, conf config.EngineConf, logger *slog.Logger) *Runner {
	r := &Runner{conf: conf, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
	r.g.Store(g)
	return r
}

// Graph returns the currently active graph.
func (r *Runner) Graph() *graph.Graph { return r.g.Load() }

// SwapGraph atomically replaces the running graph, used on config hot-reload.
// It never mutates the graph currently in flight — a pass already underway
// keeps running against the graph it started with.
func (r *Runner) SwapGraph(g *graph.Graph) {
	r.g.Store(g)
}

// RunOnce runs a single pass over the current graph using the configured
// mode and returns its final Stats. It resets the graph before running so
// that repeated calls (via the periodic loop or POST /v1/run) each start
// from a clean pass instead of finding every node already executed from
// the last one.
func (r *Runner) RunOnce(ctx context.Context) (graph.Stats, error) {
	g := r.g.Load()
	g.Reset()
	exec := executor.New(g, executor.WithLogger(r.logger))

	var err error
	switch r.conf.Mode {
	case "threaded":
		err = exec.RunThreaded(ctx, r.conf.Workers)
	default:
		err = exec.RunSerial(ctx)
	}
	stats := g.Stats()
	if err != nil {
		return stats, fmt.Errorf("pass failed: %w", err)
	}
	return stats, nil
}

// Start begins running periodic passes every conf.RunEveryMs. Each call to
// RunOnce resets the graph itself before running, so passes here and passes
// driven externally via RunOnce never see stale state from a prior run. It
// is a no-op if RunEveryMs is zero — the caller is expected to drive
// one-shot passes itself via RunOnce.
func (r *Runner) Start(ctx context.Context) {
	if r.conf.RunEveryMs <= 0 {
		close(r.done)
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(time.Duration(r.conf.RunEveryMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.RunOnce(ctx); err != nil {
					r.logger.Error("scheduled pass failed", "err", err)
				}
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the periodic loop started by Start and waits for it to exit.
func (r *Runner) Shutdown() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

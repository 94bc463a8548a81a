// Package executor runs a *graph.Graph to completion, either by draining a
// FIFO ready queue on the calling goroutine (RunSerial) or by feeding a
// worker pool fed by a single mutex-guarded condition variable
// (RunThreaded): one shared sync.Mutex, one sync.Cond, a num_waiting
// counter, and a quit flag that the last worker to go idle flips for
// everyone — rather than a channel-based pool, because quiescence (every
// worker idle and the queue empty) has no race-free observation point on a
// Go channel.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/metrics"
)

// Executor drives one or more passes over a single Graph.
type Executor struct {
	g        *graph.Graph
	logger   *slog.Logger
	failFast bool
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithFailFast makes the first node failure in a pass poison the rest of
// that pass: the threaded executor stops handing out new work and the
// serial executor stops draining the queue, both returning the triggering
// error. The default is to keep running every node whose dependencies are
// unaffected by the failure, per spec.md §7's "continue" option.
func WithFailFast(on bool) Option {
	return func(e *Executor) { e.failFast = on }
}

// WithLogger overrides the executor's structured logger. Defaults to the
// graph's own logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an Executor for g.
func New(g *graph.Graph, opts ...Option) *Executor {
	e := &Executor{g: g, logger: g.Logger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSerial drains the ready queue on the calling goroutine: roots are
// scheduled, then each node that becomes ready is executed immediately,
// which may synchronously publish resources and schedule more nodes before
// the loop advances. It returns the first node error encountered (or, with
// WithFailFast, stops at the first one).
func (e *Executor) RunSerial(ctx context.Context) error {
	if err := e.g.Validate(); err != nil {
		return err
	}
	runID := uuid.New().String()
	logger := e.logger.With("run_id", runID, "mode", "serial")
	start := e.g.Clock().Now()

	var queue []*graph.ExecNode
	end := e.g.BeginPass(func(n *graph.ExecNode) {
		metrics.NodesScheduled.Inc()
		queue = append(queue, n)
	})
	defer end()

	e.g.ScheduleRoots()

	var firstErr error
	for i := 0; i < len(queue); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := queue[i]
		logger.Debug("executing node", "node", n.Name())
		if err := n.Execute(ctx); err != nil {
			metrics.NodesFailed.Inc()
			logger.Error("node failed", "node", n.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
			if e.failFast {
				break
			}
			continue
		}
		metrics.NodesExecuted.Inc()
	}

	metrics.PassDuration.Observe(e.g.Clock().Now().Sub(start).Seconds())
	logger.Info("pass complete", "duration", e.g.Clock().Now().Sub(start), "stats", e.g.Stats())
	return firstErr
}

// RunThreaded runs one pass using numWorkers goroutines drawing from a
// shared ready queue. It returns once every reachable node has executed (or
// the graph has quiesced with some nodes never reaching their full arrival
// count, which is not an error — spec.md's graphs need not use every node
// on every pass) or the first failure has poisoned the pass under
// WithFailFast.
func (e *Executor) RunThreaded(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if err := e.g.Validate(); err != nil {
		return err
	}
	runID := uuid.New().String()
	logger := e.logger.With("run_id", runID, "mode", "threaded", "workers", numWorkers)
	start := e.g.Clock().Now()

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	var queue []*graph.ExecNode
	numWaiting := 0
	quit := false
	rootsSeeded := false

	var errMu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	end := e.g.BeginPass(func(n *graph.ExecNode) {
		metrics.NodesScheduled.Inc()
		mu.Lock()
		queue = append(queue, n)
		metrics.ReadyQueueDepth.Set(float64(len(queue)))
		cond.Signal()
		mu.Unlock()
	})
	defer end()

	// A context cancellation is the one event the quiescence protocol
	// itself cannot observe: force quit and wake everyone so RunThreaded
	// still returns instead of waiting for a pass that will never finish.
	cancelDone := make(chan struct{})
	defer close(cancelDone)
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			quit = true
			cond.Broadcast()
			mu.Unlock()
		case <-cancelDone:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(id int) {
			defer wg.Done()
			for {
				mu.Lock()
				for len(queue) == 0 && !quit {
					numWaiting++
					metrics.WorkersParked.Set(float64(numWaiting))
					// Quiescence (every worker parked, queue empty) only means
					// the pass is done once the roots have actually been
					// seeded — otherwise the last worker to spawn can park
					// before ScheduleRoots runs on the main goroutine and
					// declare victory on a graph that hasn't started yet.
					if numWaiting == numWorkers && rootsSeeded {
						quit = true
						cond.Broadcast()
						numWaiting--
						mu.Unlock()
						return
					}
					cond.Wait()
					numWaiting--
				}
				if quit {
					mu.Unlock()
					return
				}
				n := queue[0]
				queue = queue[1:]
				metrics.ReadyQueueDepth.Set(float64(len(queue)))
				mu.Unlock()

				logger.Debug("worker executing node", "worker", id, "node", n.Name())
				if err := n.Execute(ctx); err != nil {
					metrics.NodesFailed.Inc()
					logger.Error("node failed", "node", n.Name(), "err", err)
					recordErr(err)
					if e.failFast {
						mu.Lock()
						quit = true
						cond.Broadcast()
						mu.Unlock()
						return
					}
				} else {
					metrics.NodesExecuted.Inc()
				}

				mu.Lock()
				cond.Broadcast()
				mu.Unlock()
			}
		}(i)
	}

	e.g.ScheduleRoots()

	mu.Lock()
	rootsSeeded = true
	cond.Broadcast()
	mu.Unlock()

	wg.Wait()

	metrics.PassDuration.Observe(e.g.Clock().Now().Sub(start).Seconds())
	logger.Info("pass complete", "duration", e.g.Clock().Now().Sub(start), "stats", e.g.Stats())

	if ctx.Err() != nil && firstErr == nil {
		return fmt.Errorf("pass cancelled: %w", ctx.Err())
	}
	return firstErr
}

// Package graph implements the task-graph executor's data model: typed
// resources, opaque execution nodes, the registry nodes use to declare their
// dependencies, and the Graph that owns all of it. Scheduling mechanics
// (the ready queue, the worker pool) live in package executor; this package
// is only responsible for arrival bookkeeping and the one-shot publish/
// trigger protocol each node and resource follows.
package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/flowkit/taskgraph/clock"
)

// Graph owns every ExecNode and resourceNode for one task graph. It is
// built up with AddNode calls and is then immutable for the lifetime of any
// number of passes — a pass only ever flips arrival/scheduled/executed bits
// and publishes resource values, never adds or removes nodes (mutating a
// graph mid-pass is out of scope; see SPEC_FULL.md §5).
type Graph struct {
	mu        sync.Mutex
	resources map[string]*resourceNode
	nodes     []*ExecNode
	roots     []*ExecNode

	clock  clock.Clock
	logger *slog.Logger

	onScheduleHook func(*ExecNode)

	// notifyReady is set by whichever Executor call (RunSerial/RunThreaded)
	// currently owns a pass, and cleared when the pass ends. It is nil
	// between passes; arrive() calls occurring outside a pass (which should
	// not happen under normal use) are simply dropped after the schedule
	// flag flips, rather than panicking.
	passMu      sync.Mutex
	notifyReady func(*ExecNode)
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithClock overrides the Graph's time source. Defaults to clock.System().
func WithClock(c clock.Clock) Option {
	return func(g *Graph) { g.clock = c }
}

// WithLogger overrides the Graph's structured logger. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// New allocates an empty Graph ready to receive AddNode calls.
func New(opts ...Option) *Graph {
	g := &Graph{
		resources: make(map[string]*resourceNode),
		clock:     clock.System(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnSchedule registers a hook invoked synchronously every time a node is
// pushed onto the ready queue, passed the node that was just scheduled. It
// is for introspection/metrics only — see package metrics and
// package visualize — and must not block or mutate the graph.
func (g *Graph) OnSchedule(fn func(*ExecNode)) {
	g.onScheduleHook = fn
}

// Nodes returns every registered node, in AddNode order.
func (g *Graph) Nodes() []*ExecNode {
	out := make([]*ExecNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Roots returns the nodes with no required resources — the set an Executor
// schedules unconditionally at the start of a pass.
func (g *Graph) Roots() []*ExecNode {
	out := make([]*ExecNode, len(g.roots))
	copy(out, g.roots)
	return out
}

// ResourceNames returns every interned resource name, sorted, for
// diagnostics (package visualize, package metrics).
func (g *Graph) ResourceNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.resources))
	for name := range g.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResourceInfo describes one interned resource for diagnostics.
type ResourceInfo struct {
	Name       string
	Available  bool
	Producers  []string
	Dependents []string
}

// Resource returns diagnostic info for a single interned resource.
func (g *Graph) Resource(name string) (ResourceInfo, error) {
	g.mu.Lock()
	cell, ok := g.resources[name]
	g.mu.Unlock()
	if !ok {
		return ResourceInfo{}, unknownResourcef(name)
	}
	_, available := cell.get()
	deps := make([]string, len(cell.dependents))
	for i, d := range cell.dependents {
		deps[i] = d.name
	}
	return ResourceInfo{
		Name:       cell.name,
		Available:  available,
		Producers:  append([]string(nil), cell.producers...),
		Dependents: deps,
	}, nil
}

// NodeCount returns the number of registered nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Stats summarizes a graph's progress through the current (or most recent)
// pass, for the Prometheus gauges in package metrics.
type Stats struct {
	Nodes     int
	Scheduled int
	Executed  int
	Failed    int
}

// Stats computes a snapshot. It is O(nodes) and safe to call concurrently
// with an in-flight pass.
func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.nodes)}
	for _, n := range g.nodes {
		if n.Scheduled() {
			s.Scheduled++
		}
		if n.Executed() {
			s.Executed++
		}
		if n.Err() != nil {
			s.Failed++
		}
	}
	return s
}

// Reset clears every node's arrival/scheduled/executed state and every
// resource's published value, so the same Graph can be run through another
// pass from scratch.
//
// Clearing arrivalCount here (see DESIGN.md) is what makes a second pass
// usable at all: resourceNode.reset() also clears available, so a node with
// one or more required resources could never reach its arrival threshold
// again after a second Reset if the counter were left at its prior value.
func (g *Graph) Reset() {
	g.mu.Lock()
	for _, r := range g.resources {
		r.reset()
	}
	g.mu.Unlock()
	for _, n := range g.nodes {
		n.reset()
	}
}

// Validate checks I1 (every required resource has at least one producer)
// before a pass starts, returning ErrUnmetDependency for the first gap
// found, and logs a warning for every resource with more than one producer
// (the duplicate-output-name policy this module settled on — see
// DESIGN.md: last-writer-wins at runtime, but surfaced loudly at build
// time rather than silently accepted).
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		for _, r := range n.required {
			if len(r.producers) == 0 {
				return unmetDependencyf(r.name, n.name)
			}
		}
	}
	for _, r := range g.resources {
		if len(r.producers) > 1 {
			g.logger.Warn("resource has more than one producer; last writer wins",
				"resource", r.name, "producers", strings.Join(r.producers, ","))
		}
	}
	return nil
}

func (g *Graph) addNode(n *ExecNode) {
	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	isRoot := len(n.required) == 0
	g.mu.Unlock()
	if isRoot {
		g.mu.Lock()
		g.roots = append(g.roots, n)
		g.mu.Unlock()
	}
}

// addDependent wires consumer as a dependent of cell, unless consumer is
// also one of cell's own producers (I2: a producer must never be
// retriggered by its own output).
func (g *Graph) addDependent(cell *resourceNode, consumer *ExecNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range cell.producers {
		if p == consumer.name {
			g.logger.Warn("node declared itself a dependent of its own output; ignoring the self-edge",
				"node", consumer.name, "resource", cell.name)
			return
		}
	}
	cell.dependents = append(cell.dependents, consumer)
}

func (g *Graph) addProducer(cell *resourceNode, producer *ExecNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, d := range cell.dependents {
		if d == producer {
			g.logger.Warn("node declared itself a dependent of its own output; ignoring the self-edge",
				"node", producer.name, "resource", cell.name)
			cell.dependents = append(cell.dependents[:i], cell.dependents[i+1:]...)
			break
		}
	}
	cell.producers = append(cell.producers, producer.name)
}

// nodeScheduled fires the introspection hook and hands the node to whatever
// executor currently owns the pass.
func (g *Graph) nodeScheduled(n *ExecNode) {
	if g.onScheduleHook != nil {
		g.onScheduleHook(n)
	}
	g.passMu.Lock()
	notify := g.notifyReady
	g.passMu.Unlock()
	if notify != nil {
		notify(n)
	}
}

// BeginPass installs the executor's ready-queue callback for the duration
// of one pass and returns a function that uninstalls it. Only package
// executor calls this; it is exported because executor cannot live inside
// package graph without creating an import cycle with package clock/metrics
// consumers that import both.
func (g *Graph) BeginPass(notify func(*ExecNode)) (end func()) {
	g.passMu.Lock()
	g.notifyReady = notify
	g.passMu.Unlock()
	return func() {
		g.passMu.Lock()
		g.notifyReady = nil
		g.passMu.Unlock()
	}
}

// Clock returns the graph's time source.
func (g *Graph) Clock() clock.Clock { return g.clock }

// Logger returns the graph's structured logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// ScheduleRoots flips every root node's scheduled bit and fires the
// introspection/ready-notification chain for each — the kickoff an Executor
// performs once at the start of every pass, since root nodes have no
// required resources and therefore never receive an arrive() call.
func (g *Graph) ScheduleRoots() {
	for _, n := range g.Roots() {
		n.trySchedule()
	}
}

// String renders a short human-readable summary, mainly useful in test
// failure messages; package visualize provides the full DOT rendering.
func (g *Graph) String() string {
	s := g.Stats()
	return fmt.Sprintf("graph{nodes=%d resources=%d scheduled=%d executed=%d failed=%d}",
		s.Nodes, len(g.resources), s.Scheduled, s.Executed, s.Failed)
}

package graph

import (
	"context"
	"sync"
	"time"
)

// Node is the contract a caller implements to add work to a Graph. D is the
// node's private data struct: RegisterResources binds input/output Resource
// handles into its fields once, at build time, and Run reads/writes through
// those same handles on every execution. Go has no template-style nested
// associated type, so the binding between a node and its data lives in the
// type parameter instead of a nested typedef.
type Node[D any] interface {
	// RegisterResources declares every resource this node reads or
	// produces by calling DeclareInput/DeclareOutput against reg, storing
	// the returned handles into data's fields.
	RegisterResources(data *D, reg *ResourceRegistry) error

	// Run executes the node's work exactly once per pass. It is only
	// invoked after every declared input has been published. Returning a
	// non-nil error marks the node Failed; the core does not interpret the
	// error beyond that.
	Run(ctx context.Context, data *D) error
}

// ExecNode is the opaque, type-erased unit of scheduling a Graph owns for
// one registered node. Callers receive *ExecNode back from AddNode and from
// the OnSchedule hook but only ever observe it through the accessors below;
// the closure that actually calls into the caller's Node[D] is private.
type ExecNode struct {
	name string
	g    *Graph

	required []*resourceNode
	produced []*resourceNode

	mu            sync.Mutex
	arrivalCount  int
	scheduled     bool
	executed      bool
	failed        error
	execStartTime time.Time

	run func(ctx context.Context) error
}

// Name returns the node's registered name.
func (n *ExecNode) Name() string { return n.name }

// Required returns the names of every resource this node declared as input.
func (n *ExecNode) Required() []string { return resourceNames(n.required) }

// Produced returns the names of every resource this node declared as output.
func (n *ExecNode) Produced() []string { return resourceNames(n.produced) }

// ArrivalCount reports how many of the node's required resources have been
// published so far in the current pass.
func (n *ExecNode) ArrivalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.arrivalCount
}

// Scheduled reports whether the node has been pushed onto the ready queue
// in the current pass (I5: implies arrival is complete).
func (n *ExecNode) Scheduled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.scheduled
}

// Executed reports whether the node's Run has returned in the current pass
// (I6: implies Scheduled).
func (n *ExecNode) Executed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.executed
}

// Err returns the error Run returned, if any, after execution.
func (n *ExecNode) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed
}

// ExecStartTime returns when Run began, using the Graph's clock. Zero value
// if the node has not started.
func (n *ExecNode) ExecStartTime() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.execStartTime
}

func resourceNames(rs []*resourceNode) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.name
	}
	return names
}

// arrive records that one of this node's required resources just became
// available. Once every required resource has arrived it schedules the
// node — I4 (arrival count never exceeds the required count) is enforced by
// resourceNode only ever notifying a dependent once, the first time it
// transitions to available (see resourceNode.makeAvailable).
func (n *ExecNode) arrive() {
	n.mu.Lock()
	n.arrivalCount++
	full := n.arrivalCount >= len(n.required)
	n.mu.Unlock()
	if !full {
		return
	}
	n.trySchedule()
}

// trySchedule flips scheduled false→true at most once per pass (I5) and,
// on the winning call, fires the OnSchedule hook and hands the node to
// whichever executor is running the current pass.
func (n *ExecNode) trySchedule() {
	n.mu.Lock()
	if n.scheduled {
		n.mu.Unlock()
		return
	}
	n.scheduled = true
	n.mu.Unlock()

	n.g.nodeScheduled(n)
}

// tryExecute flips executed false→true at most once per pass (I7). It
// returns false if the node already ran, which is how ErrDoubleExecution
// is prevented from ever surfacing to a caller: the second caller simply
// gets told there is nothing to do.
func (n *ExecNode) tryExecute() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.executed {
		return false
	}
	n.executed = true
	n.execStartTime = n.g.clock.Now()
	return true
}

func (n *ExecNode) setErr(err error) {
	n.mu.Lock()
	n.failed = err
	n.mu.Unlock()
}

func (n *ExecNode) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.arrivalCount = 0
	n.scheduled = false
	n.executed = false
	n.failed = nil
	n.execStartTime = time.Time{}
}

// AddNode registers a node's data and behavior with g under name and
// returns the ExecNode handle the Executor schedules. RegisterResources is
// called exactly once, immediately, to discover the node's required and
// produced resources before any pass runs.
func AddNode[D any](g *Graph, name string, node Node[D]) (*ExecNode, error) {
	data := new(D)
	n := &ExecNode{name: name, g: g}
	reg := &ResourceRegistry{g: g, node: n}

	if err := node.RegisterResources(data, reg); err != nil {
		return nil, &registerError{node: name, err: err}
	}

	n.required = reg.required
	n.produced = reg.produced
	n.run = func(ctx context.Context) error {
		return node.Run(ctx, data)
	}

	g.addNode(n)
	return n, nil
}

// Execute runs the node's Run method exactly once per pass (I7). It is
// called by package executor's serial loop and worker goroutines; calling
// it a second time in the same pass is a no-op that returns nil, which is
// how ErrDoubleExecution stays internal (see package doc).
func (n *ExecNode) Execute(ctx context.Context) error {
	if !n.tryExecute() {
		return nil
	}
	if err := n.run(ctx); err != nil {
		fault := &PayloadFault{Node: n.name, Err: err}
		n.setErr(fault)
		return fault
	}
	return nil
}

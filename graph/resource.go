package graph

import (
	"reflect"
	"sync"
	"time"

	"github.com/flowkit/taskgraph/metrics"
)

// resourceNode is the type-erased, one-shot value cell a Graph owns for a
// single named resource. It is the arena-owned counterpart to the typed
// Resource[T] handle that nodes actually read and write through.
//
// Type erasure uses a reflect.Type tag plus an any payload rather than a
// closed tagged-variant enum, because the set of node/resource data types is
// open-world: callers of this package define their own types outside it, so
// there is no fixed enum this package could ever enumerate in advance.
type resourceNode struct {
	name string
	typ  reflect.Type
	g    *Graph

	mu            sync.Mutex
	available     bool
	value         any
	timeAvailable time.Time

	// dependents are the nodes that require this resource. The slice is
	// populated at build time by ResourceRegistry.DeclareInput and walked
	// read-only during execution; it is a routing edge, not an ownership
	// edge — resourceNode never outlives the Graph that owns it, so no
	// weak-reference mechanism is needed to avoid a retain cycle.
	dependents []*ExecNode

	// producers records every node that has declared this name as an
	// output. Spec does not require uniqueness (see ResourceRegistry); this
	// is kept so Graph.Validate can warn about more than one producer.
	producers []string
}

func newResourceNode(name string, typ reflect.Type) *resourceNode {
	return &resourceNode{name: name, typ: typ}
}

// setValue stores v without publishing it — the write half of set/make_avail
// split apart, for a caller that wants to mutate a resource in place across
// several steps before making it visible to dependents.
func (r *resourceNode) setValue(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}

// publish flips available false→true and returns the dependents to notify.
// It is a no-op state-transition guard: once true, available never goes
// back to false for the life of the pass — callers moving false→true
// exactly once per pass is enforced by ExecNode's own scheduled/executed
// interlock, not here, since multiple producers can legitimately share an
// output name (last writer wins; see DESIGN.md).
func (r *resourceNode) publish(now time.Time) []*ExecNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.available {
		// Already published this pass (e.g. a duplicate-output producer ran
		// twice, or got re-triggered); dependents are not re-notified since
		// they already fired once.
		return nil
	}
	r.available = true
	r.timeAvailable = now
	metrics.ResourcesPublished.WithLabelValues(r.name).Inc()
	return r.dependents
}

// makeAvailable stores v and publishes it in one step — the common case
// where a node produces a brand new value rather than mutating one in place.
func (r *resourceNode) makeAvailable(v any, now time.Time) []*ExecNode {
	r.setValue(v)
	return r.publish(now)
}

func (r *resourceNode) get() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.available
}

func (r *resourceNode) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = false
	r.value = nil
	r.timeAvailable = time.Time{}
}

// Resource is the typed handle a node's RegisterResources/Run methods use to
// read or publish a single named value. It never exposes the underlying
// resourceNode directly, so a node cannot reach another node's unrelated
// resources or bypass the availability guard.
type Resource[T any] struct {
	cell *resourceNode
}

// Get returns the published value and whether it has been published yet.
// Calling Get before the value is available returns the zero value and
// false; it never blocks.
func (r Resource[T]) Get() (T, bool) {
	v, ok := r.cell.get()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Name returns the resource's registered name.
func (r Resource[T]) Name() string { return r.cell.name }

// Available reports whether the resource has been published yet.
func (r Resource[T]) Available() bool {
	_, ok := r.cell.get()
	return ok
}

// Set publishes v as this resource's value for the current pass and
// synchronously notifies every dependent node that this was its last
// outstanding required resource. It is a no-op, save for overwriting the
// stored value, if called again after the resource is already available —
// dependents only ever fire on the false→true transition. Set is
// setValue+MakeAvailable combined, for the common case of producing a new
// value in one step.
func (r Resource[T]) Set(v T) {
	r.SetValue(v)
	r.MakeAvailable()
}

// SetValue stores v without publishing it. Use this together with
// MakeAvailable when a node mutates a resource in place — e.g. appending to
// a slice or filling fields of a struct across more than one step — and
// wants to defer notifying dependents until the mutation is complete,
// instead of copying a finished value into Set at the end.
func (r Resource[T]) SetValue(v T) {
	r.cell.setValue(v)
}

// MakeAvailable publishes whatever value is currently stored (from Set or
// SetValue) and synchronously notifies every dependent node that this was
// its last outstanding required resource. Calling it again after the
// resource is already available is a no-op — dependents only ever fire on
// the false→true transition.
func (r Resource[T]) MakeAvailable() {
	deps := r.cell.publish(r.cell.g.clock.Now())
	for _, dep := range deps {
		dep.arrive()
	}
}

package graph

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. All are wrapped with context via fmt.Errorf("%w", …)
// and remain errors.Is-comparable against these values.
var (
	// ErrTypeMismatch is returned at build time when a resource name is
	// declared with two different Go types.
	ErrTypeMismatch = errors.New("taskgraph: resource type mismatch")

	// ErrUnknownResource is returned when a lookup names a resource that was
	// never declared by any node.
	ErrUnknownResource = errors.New("taskgraph: unknown resource")

	// ErrUnmetDependency is returned by Validate (and surfaced before a pass
	// starts) when a required resource has no producer anywhere in the graph.
	ErrUnmetDependency = errors.New("taskgraph: unmet dependency")

	// ErrDoubleExecution guards a node against running twice in one pass. It
	// is internal: the scheduled/executed interlock in ExecNode.trySchedule
	// and tryExecute prevents it from ever escaping to a caller.
	ErrDoubleExecution = errors.New("taskgraph: double execution")
)

// PayloadFault wraps an error returned by a node's Run method. The core does
// not interpret the wrapped error beyond marking the node failed.
type PayloadFault struct {
	Node string
	Err  error
}

func (f *PayloadFault) Error() string {
	return fmt.Sprintf("taskgraph: node %q failed: %v", f.Node, f.Err)
}

func (f *PayloadFault) Unwrap() error { return f.Err }

func typeMismatchf(name string, want, got any) error {
	return fmt.Errorf("%w: resource %q declared as %T, redeclared as %T", ErrTypeMismatch, name, want, got)
}

func unknownResourcef(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

func unmetDependencyf(resource string, consumer string) error {
	return fmt.Errorf("%w: resource %q required by node %q has no producer", ErrUnmetDependency, resource, consumer)
}

// registerError wraps a failure from a node's RegisterResources, naming the
// node so a build-time failure is traceable without walking a stack trace
// through a generic AddNode instantiation.
type registerError struct {
	node string
	err  error
}

func (e *registerError) Error() string {
	return fmt.Sprintf("taskgraph: node %q: %v", e.node, e.err)
}

func (e *registerError) Unwrap() error { return e.err }

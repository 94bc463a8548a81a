package graph

import (
	"reflect"
)

// ResourceRegistry is the construction-time builder a node's
// RegisterResources method uses to declare every resource it reads or
// produces. It is single-use: a fresh one is created per AddNode call and
// discarded once RegisterResources returns.
type ResourceRegistry struct {
	g    *Graph
	node *ExecNode

	required []*resourceNode
	produced []*resourceNode
}

// DeclareInput declares that the node being registered requires a resource
// named name of type T, interning it in the owning Graph by name. Calling
// DeclareInput for a name already declared with a different T returns
// ErrTypeMismatch. DeclareInput is a free function, not a method, because
// Go methods cannot carry their own type parameters.
func DeclareInput[T any](reg *ResourceRegistry, name string) (Resource[T], error) {
	cell, err := internResource[T](reg.g, name)
	if err != nil {
		return Resource[T]{}, err
	}
	reg.g.addDependent(cell, reg.node)
	reg.required = append(reg.required, cell)
	return Resource[T]{cell: cell}, nil
}

// DeclareOutput declares that the node being registered produces a
// resource named name of type T, interning it the same way DeclareInput
// does. The core does not enforce that only one node produces a given
// name — see Graph.Validate for the duplicate-producer warning this module
// adds on top of the original design.
func DeclareOutput[T any](reg *ResourceRegistry, name string) (Resource[T], error) {
	cell, err := internResource[T](reg.g, name)
	if err != nil {
		return Resource[T]{}, err
	}
	reg.g.addProducer(cell, reg.node)
	reg.produced = append(reg.produced, cell)
	return Resource[T]{cell: cell}, nil
}

// GetResource looks up an already-declared resource by name without
// declaring a new dependency edge — for out-of-band reads, e.g. from the
// demo HTTP handlers or tests, after a pass has run. It never interns a
// resource that does not already exist; ErrUnknownResource otherwise.
func GetResource[T any](g *Graph, name string) (Resource[T], error) {
	g.mu.Lock()
	cell, ok := g.resources[name]
	g.mu.Unlock()
	if !ok {
		return Resource[T]{}, unknownResourcef(name)
	}
	want := reflect.TypeOf((*T)(nil)).Elem()
	if cell.typ != want {
		return Resource[T]{}, typeMismatchf(name, reflect.Zero(cell.typ).Interface(), *new(T))
	}
	return Resource[T]{cell: cell}, nil
}

// internResource returns the resourceNode for name, creating it on first
// use with type T, or returns ErrTypeMismatch if name was already interned
// with a different type.
func internResource[T any](g *Graph, name string) (*resourceNode, error) {
	want := reflect.TypeOf((*T)(nil)).Elem()

	g.mu.Lock()
	defer g.mu.Unlock()

	cell, ok := g.resources[name]
	if !ok {
		cell = newResourceNode(name, want)
		cell.g = g
		g.resources[name] = cell
		return cell, nil
	}
	if cell.typ != want {
		return nil, typeMismatchf(name, reflect.Zero(cell.typ).Interface(), *new(T))
	}
	return cell, nil
}

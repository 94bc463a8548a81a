// Package demo provides a small built-in library of graph.Node
// implementations (const, sum, product, sleep, formula, gate) and the
// registry + config.PipelineConfig builder that wires them into a
// graph.Graph by name.
package demo

import (
	"fmt"
	"sync"

	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/internal/config"
)

// Factory builds one graph.ExecNode from a config.NodeDef. Implementations
// wrap a call to graph.AddNode with whatever concrete Node[D] type their
// type string names; Go's inability to infer a node's data type from a
// NodeDef map means each Factory must instantiate the concrete type itself.
type Factory interface {
	// Type returns the string key this factory is registered under, e.g. "sum".
	Type() string
	// Build adds one node to g per def and returns its ExecNode handle.
	Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error)
}

// Registry maps node type strings to their factories. Safe for concurrent
// reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Panics on duplicate type, to surface a
// misconfigured registry at startup rather than silently shadowing one type.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[f.Type()]; exists {
		panic(fmt.Sprintf("demo registry: duplicate type %q", f.Type()))
	}
	r.factories[f.Type()] = f
}

// Get returns the factory for typ.
func (r *Registry) Get(typ string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typ]
	if !ok {
		return nil, fmt.Errorf("no factory registered for node type %q", typ)
	}
	return f, nil
}

// Types returns every registered type string.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a Registry with every built-in node type
// registered: const, sum, product, sleep, formula, gate.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(constFactory{})
	r.Register(sumFactory{})
	r.Register(productFactory{})
	r.Register(sleepFactory{})
	r.Register(formulaFactory{})
	r.Register(gateFactory{})
	return r
}

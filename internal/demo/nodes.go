package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/internal/config"
)

// ---------------------------------------------------------------- const ----

// constData holds the single output a "const" node publishes.
type constData struct {
	out graph.Resource[float64]
}

// constNode publishes a fixed numeric value with no required resources —
// the usual root of a demo pipeline.
type constNode struct {
	outName string
	value   float64
}

func (n *constNode) RegisterResources(d *constData, reg *graph.ResourceRegistry) error {
	out, err := graph.DeclareOutput[float64](reg, n.outName)
	if err != nil {
		return err
	}
	d.out = out
	return nil
}

func (n *constNode) Run(ctx context.Context, d *constData) error {
	d.out.Set(n.value)
	return nil
}

type constFactory struct{}

func (constFactory) Type() string { return "const" }

func (constFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	out, ok := def.Outputs["out"]
	if !ok {
		return nil, fmt.Errorf("const node %q: outputs.out is required", def.Name)
	}
	value, err := floatParam(def, "value")
	if err != nil {
		return nil, fmt.Errorf("const node %q: %w", def.Name, err)
	}
	return graph.AddNode[constData](g, def.Name, &constNode{outName: out, value: value})
}

// ------------------------------------------------------------------ sum ----

type sumData struct {
	a, b, out graph.Resource[float64]
}

type sumNode struct {
	aName, bName, outName string
}

func (n *sumNode) RegisterResources(d *sumData, reg *graph.ResourceRegistry) error {
	var err error
	if d.a, err = graph.DeclareInput[float64](reg, n.aName); err != nil {
		return err
	}
	if d.b, err = graph.DeclareInput[float64](reg, n.bName); err != nil {
		return err
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.outName); err != nil {
		return err
	}
	return nil
}

func (n *sumNode) Run(ctx context.Context, d *sumData) error {
	a, _ := d.a.Get()
	b, _ := d.b.Get()
	d.out.Set(a + b)
	return nil
}

type sumFactory struct{}

func (sumFactory) Type() string { return "sum" }

func (sumFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	a, b, out, err := binaryInOut(def)
	if err != nil {
		return nil, err
	}
	return graph.AddNode[sumData](g, def.Name, &sumNode{aName: a, bName: b, outName: out})
}

// -------------------------------------------------------------- product ----

type productData struct {
	a, b, out graph.Resource[float64]
}

type productNode struct {
	aName, bName, outName string
}

func (n *productNode) RegisterResources(d *productData, reg *graph.ResourceRegistry) error {
	var err error
	if d.a, err = graph.DeclareInput[float64](reg, n.aName); err != nil {
		return err
	}
	if d.b, err = graph.DeclareInput[float64](reg, n.bName); err != nil {
		return err
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.outName); err != nil {
		return err
	}
	return nil
}

func (n *productNode) Run(ctx context.Context, d *productData) error {
	a, _ := d.a.Get()
	b, _ := d.b.Get()
	d.out.Set(a * b)
	return nil
}

type productFactory struct{}

func (productFactory) Type() string { return "product" }

func (productFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	a, b, out, err := binaryInOut(def)
	if err != nil {
		return nil, err
	}
	return graph.AddNode[productData](g, def.Name, &productNode{aName: a, bName: b, outName: out})
}

// ---------------------------------------------------------------- sleep ----

type sleepData struct {
	in, out graph.Resource[float64]
}

// sleepNode passes its input through to its output after a fixed delay,
// observing ctx cancellation cooperatively rather than blocking through it —
// the one built-in node type that exercises Run's context argument.
type sleepNode struct {
	inName, outName string
	duration        time.Duration
}

func (n *sleepNode) RegisterResources(d *sleepData, reg *graph.ResourceRegistry) error {
	var err error
	if d.in, err = graph.DeclareInput[float64](reg, n.inName); err != nil {
		return err
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.outName); err != nil {
		return err
	}
	return nil
}

func (n *sleepNode) Run(ctx context.Context, d *sleepData) error {
	select {
	case <-time.After(n.duration):
	case <-ctx.Done():
		return ctx.Err()
	}
	v, _ := d.in.Get()
	d.out.Set(v)
	return nil
}

type sleepFactory struct{}

func (sleepFactory) Type() string { return "sleep" }

func (sleepFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	in, ok := def.Inputs["in"]
	if !ok {
		return nil, fmt.Errorf("sleep node %q: inputs.in is required", def.Name)
	}
	out, ok := def.Outputs["out"]
	if !ok {
		return nil, fmt.Errorf("sleep node %q: outputs.out is required", def.Name)
	}
	ms, err := floatParam(def, "duration_ms")
	if err != nil {
		return nil, fmt.Errorf("sleep node %q: %w", def.Name, err)
	}
	n := &sleepNode{inName: in, outName: out, duration: time.Duration(ms) * time.Millisecond}
	return graph.AddNode[sleepData](g, def.Name, n)
}

// ---------------------------------------------------------------- utils ----

func binaryInOut(def config.NodeDef) (a, b, out string, err error) {
	a, ok := def.Inputs["a"]
	if !ok {
		return "", "", "", fmt.Errorf("node %q: inputs.a is required", def.Name)
	}
	b, ok = def.Inputs["b"]
	if !ok {
		return "", "", "", fmt.Errorf("node %q: inputs.b is required", def.Name)
	}
	out, ok = def.Outputs["out"]
	if !ok {
		return "", "", "", fmt.Errorf("node %q: outputs.out is required", def.Name)
	}
	return a, b, out, nil
}

func floatParam(def config.NodeDef, key string) (float64, error) {
	raw, ok := def.Params[key]
	if !ok {
		return 0, fmt.Errorf("params.%s is required", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("params.%s must be numeric, got %T", key, raw)
	}
}

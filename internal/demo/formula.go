package demo

import (
	"context"
	"fmt"

	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/internal/config"
	"github.com/flowkit/taskgraph/internal/expr"
)

// resolverFromResources adapts a map of bound Resource[float64] handles to
// expr.Resolver, reading through Get() rather than a plain map since the
// values are not known until Run executes.
type resolverFromResources map[string]graph.Resource[float64]

func (r resolverFromResources) Resolve(name string) (float64, bool) {
	res, ok := r[name]
	if !ok {
		return 0, false
	}
	return res.Get()
}

// --------------------------------------------------------------- formula ----

// formulaData holds one Resource[float64] per declared input role plus the
// single output. Role names are arbitrary and only need to match the
// variable names used in the node's expression.
type formulaData struct {
	ins map[string]graph.Resource[float64]
	out graph.Resource[float64]
}

// formulaNode evaluates a numeric expr.Expr over its inputs and publishes
// the result.
type formulaNode struct {
	name       string
	inputs     map[string]string // role -> resource name
	outputName string
	ast        expr.Expr
}

func (n *formulaNode) RegisterResources(d *formulaData, reg *graph.ResourceRegistry) error {
	d.ins = make(map[string]graph.Resource[float64], len(n.inputs))
	for role, resourceName := range n.inputs {
		r, err := graph.DeclareInput[float64](reg, resourceName)
		if err != nil {
			return err
		}
		d.ins[role] = r
	}
	out, err := graph.DeclareOutput[float64](reg, n.outputName)
	if err != nil {
		return err
	}
	d.out = out
	return nil
}

func (n *formulaNode) Run(ctx context.Context, d *formulaData) error {
	v, err := expr.EvalFloat(n.ast, resolverFromResources(d.ins))
	if err != nil {
		return fmt.Errorf("formula %q: %w", n.name, err)
	}
	d.out.Set(v)
	return nil
}

type formulaFactory struct{}

func (formulaFactory) Type() string { return "formula" }

func (formulaFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	exprStr, _ := def.Params["expression"].(string)
	if exprStr == "" {
		return nil, fmt.Errorf("formula node %q: params.expression is required", def.Name)
	}
	ast, err := expr.Parse(exprStr)
	if err != nil {
		return nil, fmt.Errorf("formula node %q: parse expression: %w", def.Name, err)
	}
	out, ok := def.Outputs["out"]
	if !ok {
		return nil, fmt.Errorf("formula node %q: outputs.out is required", def.Name)
	}
	n := &formulaNode{name: def.Name, inputs: def.Inputs, outputName: out, ast: ast}
	return graph.AddNode[formulaData](g, def.Name, n)
}

// ------------------------------------------------------------------ gate ----

// gateData holds the single gated value plus whatever other inputs the
// gate's boolean expression references.
type gateData struct {
	value graph.Resource[float64]
	ins   map[string]graph.Resource[float64]
	out   graph.Resource[float64]
}

// gateNode republishes its "value" input unchanged only if its boolean
// expression evaluates true; otherwise it runs without ever calling Set,
// leaving the output permanently unpublished for this pass. This is a
// legitimate, spec-sanctioned outcome (Graph.Validate only requires a
// producer to exist, not that it always fire) and is how conditional
// branches are expressed in a dependency-driven graph with no native
// if/else construct.
type gateNode struct {
	name       string
	valueName  string
	inputs     map[string]string
	outputName string
	ast        expr.Expr
}

func (n *gateNode) RegisterResources(d *gateData, reg *graph.ResourceRegistry) error {
	var err error
	if d.value, err = graph.DeclareInput[float64](reg, n.valueName); err != nil {
		return err
	}
	d.ins = make(map[string]graph.Resource[float64], len(n.inputs))
	for role, resourceName := range n.inputs {
		r, err := graph.DeclareInput[float64](reg, resourceName)
		if err != nil {
			return err
		}
		d.ins[role] = r
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.outputName); err != nil {
		return err
	}
	return nil
}

func (n *gateNode) Run(ctx context.Context, d *gateData) error {
	ok, err := expr.EvalBool(n.ast, resolverFromResources(d.ins))
	if err != nil {
		return fmt.Errorf("gate %q: %w", n.name, err)
	}
	if !ok {
		return nil
	}
	v, _ := d.value.Get()
	d.out.Set(v)
	return nil
}

type gateFactory struct{}

func (gateFactory) Type() string { return "gate" }

func (gateFactory) Build(g *graph.Graph, def config.NodeDef) (*graph.ExecNode, error) {
	exprStr, _ := def.Params["expression"].(string)
	if exprStr == "" {
		return nil, fmt.Errorf("gate node %q: params.expression is required", def.Name)
	}
	ast, err := expr.Parse(exprStr)
	if err != nil {
		return nil, fmt.Errorf("gate node %q: parse expression: %w", def.Name, err)
	}
	value, ok := def.Inputs["value"]
	if !ok {
		return nil, fmt.Errorf("gate node %q: inputs.value is required", def.Name)
	}
	out, ok := def.Outputs["out"]
	if !ok {
		return nil, fmt.Errorf("gate node %q: outputs.out is required", def.Name)
	}
	conditionInputs := make(map[string]string, len(def.Inputs))
	for role, name := range def.Inputs {
		if role == "value" {
			continue
		}
		conditionInputs[role] = name
	}
	n := &gateNode{name: def.Name, valueName: value, inputs: conditionInputs, outputName: out, ast: ast}
	return graph.AddNode[gateData](g, def.Name, n)
}

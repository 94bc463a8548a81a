package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flowkit/taskgraph/graph"
)

// constNode publishes a fixed value with no required resources.
type constNode[T any] struct {
	out string
	val T
}

type constData[T any] struct {
	out graph.Resource[T]
}

func (n *constNode[T]) RegisterResources(d *constData[T], reg *graph.ResourceRegistry) error {
	out, err := graph.DeclareOutput[T](reg, n.out)
	if err != nil {
		return err
	}
	d.out = out
	return nil
}

func (n *constNode[T]) Run(ctx context.Context, d *constData[T]) error {
	d.out.Set(n.val)
	return nil
}

// sumNode adds two float64 inputs into one float64 output.
type sumData struct {
	a, b graph.Resource[float64]
	sum  graph.Resource[float64]
}

type sumNode struct {
	a, b, out string
}

func (n *sumNode) RegisterResources(d *sumData, reg *graph.ResourceRegistry) error {
	var err error
	if d.a, err = graph.DeclareInput[float64](reg, n.a); err != nil {
		return err
	}
	if d.b, err = graph.DeclareInput[float64](reg, n.b); err != nil {
		return err
	}
	if d.sum, err = graph.DeclareOutput[float64](reg, n.out); err != nil {
		return err
	}
	return nil
}

func (n *sumNode) Run(ctx context.Context, d *sumData) error {
	a, _ := d.a.Get()
	b, _ := d.b.Get()
	d.sum.Set(a + b)
	return nil
}

// failingNode always returns an error, to exercise PayloadFault.
type failingData struct{ in graph.Resource[float64] }
type failingNode struct{ in string }

func (n *failingNode) RegisterResources(d *failingData, reg *graph.ResourceRegistry) error {
	var err error
	d.in, err = graph.DeclareInput[float64](reg, n.in)
	return err
}

func (n *failingNode) Run(ctx context.Context, d *failingData) error {
	return errors.New("boom")
}

func TestDeclareInputOutput_TypeMismatch(t *testing.T) {
	g := graph.New()
	if _, err := graph.AddNode[constData[float64]](g, "a", &constNode[float64]{out: "x"}); err != nil {
		t.Fatalf("AddNode a: %v", err)
	}
	_, err := graph.AddNode[constData[string]](g, "b", &constNode[string]{out: "x"})
	if !errors.Is(err, graph.ErrTypeMismatch) {
		t.Fatalf("want ErrTypeMismatch, got %v", err)
	}
}

func TestGetResource_Unknown(t *testing.T) {
	g := graph.New()
	_, err := graph.GetResource[float64](g, "missing")
	if !errors.Is(err, graph.ErrUnknownResource) {
		t.Fatalf("want ErrUnknownResource, got %v", err)
	}
}

func TestValidate_UnmetDependency(t *testing.T) {
	g := graph.New()
	if _, err := graph.AddNode[sumData](g, "consumer", &sumNode{a: "a", b: "b", out: "sum"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	err := g.Validate()
	if !errors.Is(err, graph.ErrUnmetDependency) {
		t.Fatalf("want ErrUnmetDependency, got %v", err)
	}
}

func TestArrivalCount_BoundedByRequiredCount(t *testing.T) {
	g := graph.New()
	aNode, err := graph.AddNode[constData[float64]](g, "const_a", &constNode[float64]{out: "a", val: 1})
	if err != nil {
		t.Fatal(err)
	}
	bNode, err := graph.AddNode[constData[float64]](g, "const_b", &constNode[float64]{out: "b", val: 2})
	if err != nil {
		t.Fatal(err)
	}
	sNode, err := graph.AddNode[sumData](g, "sum", &sumNode{a: "a", b: "b", out: "sum"})
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	g.ScheduleRoots()

	// Roots are const_a and const_b; sum has two required resources so it
	// must not be scheduled until both have run.
	if sNode.Scheduled() {
		t.Fatalf("sum scheduled before any root executed")
	}
	if err := aNode.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sNode.Scheduled() {
		t.Fatalf("sum scheduled after only one of two required resources arrived")
	}
	if got := sNode.ArrivalCount(); got != 1 {
		t.Fatalf("arrival count = %d, want 1", got)
	}
	if err := bNode.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !sNode.Scheduled() {
		t.Fatalf("sum not scheduled after both required resources arrived")
	}
	if got := sNode.ArrivalCount(); got != 2 {
		t.Fatalf("arrival count = %d, want 2", got)
	}
}

func TestExecute_DoubleExecutionIsANoOp(t *testing.T) {
	g := graph.New()
	n, err := graph.AddNode[constData[float64]](g, "const", &constNode[float64]{out: "x", val: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := n.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if err := n.Execute(ctx); err != nil {
		t.Fatalf("second Execute returned an error instead of a silent no-op: %v", err)
	}
	x, err := graph.GetResource[float64](g, "x")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := x.Get()
	if !ok || v != 1 {
		t.Fatalf("x = %v, %v; want 1, true", v, ok)
	}
}

func TestExecute_PayloadFault(t *testing.T) {
	g := graph.New()
	c, err := graph.AddNode[constData[float64]](g, "const", &constNode[float64]{out: "in", val: 1})
	if err != nil {
		t.Fatal(err)
	}
	f, err := graph.AddNode[failingData](g, "fail", &failingNode{in: "in"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Execute(ctx); err != nil {
		t.Fatal(err)
	}
	if !f.Scheduled() {
		t.Fatalf("fail node not scheduled after its input arrived")
	}
	err = f.Execute(ctx)
	var fault *graph.PayloadFault
	if !errors.As(err, &fault) {
		t.Fatalf("want *graph.PayloadFault, got %v", err)
	}
	if fault.Node != "fail" {
		t.Fatalf("fault.Node = %q, want %q", fault.Node, "fail")
	}
	if f.Err() == nil {
		t.Fatalf("ExecNode.Err() is nil after a failing Run")
	}
}

func TestReset_ClearsArrivalCountScheduledAndExecuted(t *testing.T) {
	g := graph.New()
	a, _ := graph.AddNode[constData[float64]](g, "const_a", &constNode[float64]{out: "a", val: 1})
	b, _ := graph.AddNode[constData[float64]](g, "const_b", &constNode[float64]{out: "b", val: 2})
	s, _ := graph.AddNode[sumData](g, "sum", &sumNode{a: "a", b: "b", out: "sum"})

	ctx := context.Background()
	run := func() float64 {
		g.ScheduleRoots()
		if err := a.Execute(ctx); err != nil {
			t.Fatal(err)
		}
		if err := b.Execute(ctx); err != nil {
			t.Fatal(err)
		}
		if err := s.Execute(ctx); err != nil {
			t.Fatal(err)
		}
		res, _ := graph.GetResource[float64](g, "sum")
		v, _ := res.Get()
		return v
	}

	if got := run(); got != 3 {
		t.Fatalf("first run sum = %v, want 3", got)
	}

	g.Reset()

	if a.ArrivalCount() != 0 || s.ArrivalCount() != 0 {
		t.Fatalf("Reset did not clear arrival counts: a=%d s=%d", a.ArrivalCount(), s.ArrivalCount())
	}
	if a.Scheduled() || s.Scheduled() || s.Executed() {
		t.Fatalf("Reset did not clear scheduled/executed flags")
	}

	// A second pass from scratch must behave identically. If arrivalCount
	// were left untouched by Reset, this would hang: sum would need two more
	// arrivals on top of an already-full counter.
	if got := run(); got != 3 {
		t.Fatalf("second run after Reset sum = %v, want 3", got)
	}
}

func TestDuplicateOutputName_LastWriterWinsWithWarning(t *testing.T) {
	g := graph.New()
	if _, err := graph.AddNode[constData[float64]](g, "producer1", &constNode[float64]{out: "shared", val: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := graph.AddNode[constData[float64]](g, "producer2", &constNode[float64]{out: "shared", val: 2}); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate should warn, not fail, on duplicate producers: %v", err)
	}
	info, err := g.Resource("shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Producers) != 2 {
		t.Fatalf("want 2 producers recorded, got %d", len(info.Producers))
	}
}

func TestSelfTriggerGuard_ProducerNotInOwnDependentList(t *testing.T) {
	g := graph.New()
	n, err := graph.AddNode[selfNodeData](g, "self", selfNodeWrapper{})
	if err != nil {
		t.Fatal(err)
	}
	info, err := g.Resource("self_res")
	if err != nil {
		t.Fatal(err)
	}
	for _, dep := range info.Dependents {
		if dep == n.Name() {
			t.Fatalf("node appears in its own resource's dependent list")
		}
	}
}

// selfNodeWrapper declares "self_res" as both an input and an output of the
// same node, which I2 forbids from ever retriggering itself.
type selfNodeWrapper struct{}
type selfNodeData struct {
	in  graph.Resource[float64]
	out graph.Resource[float64]
}

func (selfNodeWrapper) RegisterResources(d *selfNodeData, reg *graph.ResourceRegistry) error {
	var err error
	if d.out, err = graph.DeclareOutput[float64](reg, "self_res"); err != nil {
		return err
	}
	if d.in, err = graph.DeclareInput[float64](reg, "self_res"); err != nil {
		return err
	}
	return nil
}

func (selfNodeWrapper) Run(ctx context.Context, d *selfNodeData) error {
	d.out.Set(1)
	return nil
}

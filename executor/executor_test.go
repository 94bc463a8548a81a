package executor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowkit/taskgraph/executor"
	"github.com/flowkit/taskgraph/graph"
)

type constData[T any] struct {
	out graph.Resource[T]
}
type constNode[T any] struct {
	name string
	val  T
}

func (n *constNode[T]) RegisterResources(d *constData[T], reg *graph.ResourceRegistry) error {
	out, err := graph.DeclareOutput[T](reg, n.name)
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

type passData struct {
	in, out graph.Resource[float64]
}
type passNode struct {
	in, out string
	add     float64
}

func (n *passNode) RegisterResources(d *passData, reg *graph.ResourceRegistry) error {
	var err error
	if d.in, err = graph.DeclareInput[float64](reg, n.in); err != nil {
		return err
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.out); err != nil {
		return err
	}
	return nil
}
func (n *passNode) Run(ctx context.Context, d *passData) error {
	v, _ := d.in.Get()
	d.out.Set(v + n.add)
	return nil
}

type joinData struct {
	a, b graph.Resource[float64]
	out  graph.Resource[float64]
}
type joinNode struct {
	a, b, out string
}

func (n *joinNode) RegisterResources(d *joinData, reg *graph.ResourceRegistry) error {
	var err error
	if d.a, err = graph.DeclareInput[float64](reg, n.a); err != nil {
		return err
	}
	if d.b, err = graph.DeclareInput[float64](reg, n.b); err != nil {
		return err
	}
	if d.out, err = graph.DeclareOutput[float64](reg, n.out); err != nil {
		return err
	}
	return nil
}
func (n *joinNode) Run(ctx context.Context, d *joinData) error {
	a, _ := d.a.Get()
	b, _ := d.b.Get()
	d.out.Set(a + b)
	return nil
}

// countingNode increments a shared counter every time it runs, to detect a
// dependent firing more than once from a racing double-producer.
type countingData struct {
	in graph.Resource[float64]
}
type countingNode struct {
	in      string
	counter *atomic.Int64
}

func (n *countingNode) RegisterResources(d *countingData, reg *graph.ResourceRegistry) error {
	var err error
	d.in, err = graph.DeclareInput[float64](reg, n.in)
	return err
}
func (n *countingNode) Run(ctx context.Context, d *countingData) error {
	n.counter.Add(1)
	return nil
}

// Scenario 1: linear pipeline A -> B -> C, serial executor.
func TestRunSerial_LinearPipeline(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "a", &constNode[float64]{name: "a", val: 1})
	mustAdd[passData](t, g, "b", &passNode{in: "a", out: "b", add: 10})
	mustAdd[passData](t, g, "c", &passNode{in: "b", out: "c", add: 100})

	if err := executor.New(g).RunSerial(context.Background()); err != nil {
		t.Fatalf("RunSerial: %v", err)
	}
	c, err := graph.GetResource[float64](g, "c")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := c.Get()
	if !ok || v != 111 {
		t.Fatalf("c = %v, %v; want 111, true", v, ok)
	}
}

// Scenario 2: diamond dependency — a feeds both b and c, d joins b and c.
func TestRunSerial_Diamond(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "a", &constNode[float64]{name: "a", val: 2})
	mustAdd[passData](t, g, "b", &passNode{in: "a", out: "b", add: 1})
	mustAdd[passData](t, g, "c", &passNode{in: "a", out: "c", add: 2})
	mustAdd[joinData](t, g, "d", &joinNode{a: "b", b: "c", out: "d"})

	if err := executor.New(g).RunSerial(context.Background()); err != nil {
		t.Fatalf("RunSerial: %v", err)
	}
	d, err := graph.GetResource[float64](g, "d")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := d.Get()
	// a=2, b=a+1=3, c=a+2=4, d=b+c=7
	if !ok || v != 7 {
		t.Fatalf("d = %v, %v; want 7, true", v, ok)
	}
}

// Scenario 3: 8-way fan-out executed on a 4-worker threaded pool.
func TestRunThreaded_FanOut(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "source", &constNode[float64]{name: "source", val: 1})
	const fanOut = 8
	for i := 0; i < fanOut; i++ {
		mustAdd[passData](t, g, namef("fan", i), &passNode{in: "source", out: namef("fan", i), add: float64(i)})
	}

	if err := executor.New(g).RunThreaded(context.Background(), 4); err != nil {
		t.Fatalf("RunThreaded: %v", err)
	}
	for i := 0; i < fanOut; i++ {
		r, err := graph.GetResource[float64](g, namef("fan", i))
		if err != nil {
			t.Fatal(err)
		}
		v, ok := r.Get()
		if !ok || v != 1+float64(i) {
			t.Fatalf("fan[%d] = %v, %v; want %v, true", i, v, ok, 1+float64(i))
		}
	}
}

// Scenario 4: two nodes race to publish the same output; the single
// dependent on that resource must execute exactly once, never twice.
func TestRunThreaded_DoubleTriggerSafety(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "producer1", &constNode[float64]{name: "shared", val: 1})
	mustAdd[constData[float64]](t, g, "producer2", &constNode[float64]{name: "shared", val: 2})
	var counter atomic.Int64
	mustAdd[countingData](t, g, "consumer", &countingNode{in: "shared", counter: &counter})

	if err := executor.New(g).RunThreaded(context.Background(), 4); err != nil {
		t.Fatalf("RunThreaded: %v", err)
	}
	if got := counter.Load(); got != 1 {
		t.Fatalf("consumer ran %d times, want exactly 1", got)
	}
}

// Scenario 5: reset and rerun gives the same result deterministically.
func TestRunSerial_ResetAndRerun(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "a", &constNode[float64]{name: "a", val: 5})
	mustAdd[passData](t, g, "b", &passNode{in: "a", out: "b", add: 7})

	for i := 0; i < 3; i++ {
		if err := executor.New(g).RunSerial(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		b, err := graph.GetResource[float64](g, "b")
		if err != nil {
			t.Fatal(err)
		}
		v, ok := b.Get()
		if !ok || v != 12 {
			t.Fatalf("run %d: b = %v, %v; want 12, true", i, v, ok)
		}
		g.Reset()
	}
}

// Scenario 6: 8 workers draining only 3 no-dependency nodes must reach
// quiescence and return promptly instead of hanging.
func TestRunThreaded_ShutdownDuringIdle(t *testing.T) {
	g := graph.New()
	for i := 0; i < 3; i++ {
		mustAdd[constData[float64]](t, g, namef("root", i), &constNode[float64]{name: namef("root", i), val: float64(i)})
	}

	done := make(chan error, 1)
	go func() {
		done <- executor.New(g).RunThreaded(context.Background(), 8)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunThreaded: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunThreaded did not reach quiescence and shut down in time")
	}

	for i := 0; i < 3; i++ {
		r, err := graph.GetResource[float64](g, namef("root", i))
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := r.Get(); !ok {
			t.Fatalf("root %d never published", i)
		}
	}
}

func TestRunSerial_FailFastStopsAfterFirstFailure(t *testing.T) {
	g := graph.New()
	mustAdd[constData[float64]](t, g, "a", &constNode[float64]{name: "a", val: 1})
	mustAdd[failData](t, g, "fail", &failNode{in: "a"})

	err := executor.New(g, executor.WithFailFast(true)).RunSerial(context.Background())
	if err == nil {
		t.Fatalf("want an error from the failing node")
	}
}

type failData struct{ in graph.Resource[float64] }
type failNode struct{ in string }

func (n *failNode) RegisterResources(d *failData, reg *graph.ResourceRegistry) error {
	var err error
	d.in, err = graph.DeclareInput[float64](reg, n.in)
	return err
}
func (n *failNode) Run(ctx context.Context, d *failData) error {
	return errBoom
}

var errBoom = errors.New("boom")

func namef(prefix string, i int) string {
	return prefix + "_" + string(rune('0'+i))
}

func mustAdd[D any](t *testing.T, g *graph.Graph, name string, n graph.Node[D]) {
	t.Helper()
	if _, err := graph.AddNode[D](g, name, n); err != nil {
		t.Fatalf("AddNode %s: %v", name, err)
	}
}

// Package visualize renders a *graph.Graph as Graphviz DOT for inspecting
// node/resource wiring and per-node pass state.
package visualize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowkit/taskgraph/graph"
)

// DOT renders g as a Graphviz digraph: nodes as boxes, resources as
// ellipses, an edge from a resource to every node that requires it and from
// a node to every resource it produces. Executed nodes and available
// resources are filled, to make a rendered pass easy to eyeball.
func DOT(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("digraph taskgraph {\n")
	b.WriteString("  rankdir=LR;\n")

	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
	for _, n := range nodes {
		fill := "white"
		if n.Executed() {
			fill = "lightgreen"
		}
		if n.Err() != nil {
			fill = "lightcoral"
		}
		fmt.Fprintf(&b, "  %q [shape=box style=filled fillcolor=%q];\n", n.Name(), fill)
	}

	for _, name := range g.ResourceNames() {
		info, err := g.Resource(name)
		if err != nil {
			continue
		}
		fill := "white"
		if info.Available {
			fill = "lightyellow"
		}
		fmt.Fprintf(&b, "  %q [shape=ellipse style=filled fillcolor=%q];\n", "res:"+name, fill)
		for _, producer := range info.Producers {
			fmt.Fprintf(&b, "  %q -> %q;\n", producer, "res:"+name)
		}
		for _, dependent := range info.Dependents {
			fmt.Fprintf(&b, "  %q -> %q;\n", "res:"+name, dependent)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

package demo

import (
	"fmt"

	"github.com/flowkit/taskgraph/graph"
	"github.com/flowkit/taskgraph/internal/config"
)

// Build constructs a *graph.Graph from a validated PipelineConfig: one
// AddNode call per config.NodeDef, routed through reg by node type.
// Resource-level checks (every required resource has a producer) are left to
// the caller's graph.Graph.Validate() once every node has been added.
func Build(cfg *config.PipelineConfig, reg *Registry) (*graph.Graph, error) {
	g := graph.New()
	for _, def := range cfg.Nodes {
		f, err := reg.Get(def.Type)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", def.Name, err)
		}
		if _, err := f.Build(g, def); err != nil {
			return nil, fmt.Errorf("node %s: %w", def.Name, err)
		}
	}
	return g, nil
}

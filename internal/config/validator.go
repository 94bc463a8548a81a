package config

import (
	"fmt"
	"strings"
)

// Validate checks structural requirements on cfg that a YAML parse alone
// cannot catch: required fields and duplicate node names. Resource-level
// checks (every required resource has a producer) are the task graph's own
// job — see graph.Graph.Validate — since that needs the built graph, not
// just the YAML tree.
func Validate(cfg *PipelineConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	if cfg.Engine.Mode != "" && cfg.Engine.Mode != "serial" && cfg.Engine.Mode != "threaded" {
		return fmt.Errorf("config: engine.mode must be 'serial' or 'threaded', got %q", cfg.Engine.Mode)
	}

	names := make(map[string]bool)
	var errs []string
	for i, n := range cfg.Nodes {
		if n.Name == "" {
			errs = append(errs, fmt.Sprintf("nodes[%d]: name is required", i))
			continue
		}
		if names[n.Name] {
			errs = append(errs, fmt.Sprintf("duplicate node name %q", n.Name))
			continue
		}
		names[n.Name] = true
		if n.Type == "" {
			errs = append(errs, fmt.Sprintf("node %s: type is required", n.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

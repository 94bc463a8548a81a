package config

// PipelineConfig is the top-level YAML structure describing one demo
// task graph: its engine tuning and the nodes to build it from.
type PipelineConfig struct {
	Version string     `yaml:"version"`
	Engine  EngineConf `yaml:"engine"`
	Nodes   []NodeDef  `yaml:"nodes"`
}

// EngineConf holds the executor's tunable concurrency settings.
type EngineConf struct {
	Mode       string `yaml:"mode"` // "serial" | "threaded"
	Workers    int    `yaml:"workers"`
	RunEveryMs int    `yaml:"run_every_ms"` // 0 = run once
}

// NodeDef describes one node to add to the graph: which built-in type to
// instantiate, which resource names to bind to its input/output roles, and
// any type-specific parameters.
//
// Inputs and Outputs map a node type's role name (e.g. "a", "b" for the
// "sum" type) to the actual resource name used to wire it to the rest of
// the graph, letting multiple nodes agree on a resource by name alone.
type NodeDef struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Inputs  map[string]string      `yaml:"inputs"`
	Outputs map[string]string      `yaml:"outputs"`
	Params  map[string]interface{} `yaml:"params"`
}

package sim

// Node is one model in a configuration tree. Groups carry their children,
// exported ports and connections. The sim/config package reads and writes
// these trees as YAML or TOML.
type Node struct {
	Type       string            `yaml:"type" toml:"type"`
	Name       string            `yaml:"name,omitempty" toml:"name,omitempty"`
	Frequency  int               `yaml:"frequency,omitempty" toml:"frequency,omitempty"`
	NumInputs  int               `yaml:"numinputs,omitempty" toml:"numinputs,omitempty"`
	NumOutputs int               `yaml:"numoutputs,omitempty" toml:"numoutputs,omitempty"`
	Params     map[string]any    `yaml:"params,omitempty" toml:"params,omitempty"`
	Units      map[string]string `yaml:"units,omitempty" toml:"units,omitempty"` // parameter name -> unit of the value in Params
	Children   []Node            `yaml:"children,omitempty" toml:"children,omitempty"`
	Ports      []PortRef         `yaml:"ports,omitempty" toml:"ports,omitempty"`
	Connect    []Connection      `yaml:"connect,omitempty" toml:"connect,omitempty"`
}

// PortRef exports the descendant port at Ref ("model.port") under Name.
type PortRef struct {
	Name string `yaml:"name" toml:"name"`
	Ref  string `yaml:"ref" toml:"ref"`
}

// Connection links two ports given as "model.port" paths. First is
// connected to Second, so an input forwarding another input is listed first.
type Connection struct {
	First  string `yaml:"first" toml:"first"`
	Second string `yaml:"second" toml:"second"`
}

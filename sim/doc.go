// Package sim provides the block-diagram simulation kernel of simblox.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - port.go: typed connection points and their linking rules
//   - model.go: the Model interface and Base, with port/parameter registries
//     and dependency queries
//   - group.go: composition, ownership and exported ports
//   - visitor.go: the traversal skeleton and the configure/init/update/display
//     visitors, including the multi-rate schedule
//   - simulation.go: the fixed-step loop with real-time pacing
//
// # Architecture
//
// The sim package defines the kernel and its extension points; implementations
// live in sub-packages:
//   - sim/taskpool/: worker pool used by visitors in parallel mode
//   - sim/units/: unit conversion, installed as DefaultConverter from init()
//   - sim/models/: the built-in model library, registered into a Factory
//   - sim/plugins/: built-in plugins, registered into a PluginHost
//   - sim/config/: YAML and TOML documents describing a simulation
//
// Nothing is global except DefaultConverter: factories, plugin hosts and
// worker pools are created by the caller and handed to whatever needs them.
//
// # Key Interfaces
//   - Model: lifecycle hooks (Configure, Init, Update, Display) plus parse/write
//   - Port: connect/disconnect/query; values are read with the typed Get/Set of
//     InPort, OutPort, InUnitPort and OutUnitPort
//   - Visitor: Apply/ApplyGroup over a tree, driven by Visit
//   - Plugin: hooks around the visitor runs of each step
package sim

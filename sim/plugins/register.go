package plugins

import "github.com/simblox/simblox/sim"

// Register makes every built-in plugin loadable from h by name.
func Register(h *sim.PluginHost) {
	h.Provide(ProgressName, func() sim.Plugin { return NewProgress(DefaultProgressInterval) })
}

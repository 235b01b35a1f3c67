package sim

import (
	"sort"
	"sync"
)

// Plugin hooks into the simulation loop around the visitor runs.
type Plugin interface {
	Name() string
	Description() string
	Author() string
	Version() string

	PreInitialize() error
	PostInitialize() error
	PreUpdate(dt float64) error
	PostUpdate(dt float64) error
	PauseUpdate(dt float64) error
}

// BasePlugin implements every hook as a no-op. Plugins embed it and
// override what they need.
type BasePlugin struct {
	PluginName        string
	PluginDescription string
	PluginAuthor      string
	PluginVersion     string
}

func (p *BasePlugin) Name() string                 { return p.PluginName }
func (p *BasePlugin) Description() string          { return p.PluginDescription }
func (p *BasePlugin) Author() string               { return p.PluginAuthor }
func (p *BasePlugin) Version() string              { return p.PluginVersion }
func (p *BasePlugin) PreInitialize() error         { return nil }
func (p *BasePlugin) PostInitialize() error        { return nil }
func (p *BasePlugin) PreUpdate(dt float64) error   { return nil }
func (p *BasePlugin) PostUpdate(dt float64) error  { return nil }
func (p *BasePlugin) PauseUpdate(dt float64) error { return nil }

// PluginHost keeps the active plugins in load order and the constructors
// plugins can be loaded from by name.
type PluginHost struct {
	mu       sync.Mutex
	builders map[string]func() Plugin
	active   []Plugin
}

func NewPluginHost() *PluginHost {
	return &PluginHost{builders: make(map[string]func() Plugin)}
}

// Provide makes a plugin loadable by name.
func (h *PluginHost) Provide(name string, build func() Plugin) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.builders[name] = build
}

// Available lists loadable plugin names, sorted.
func (h *PluginHost) Available() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.builders))
	for name := range h.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load activates the plugin called name. Loading an active plugin returns
// the existing instance.
func (h *PluginHost) Load(name string) (Plugin, error) {
	if p := h.Plugin(name); p != nil {
		return p, nil
	}
	h.mu.Lock()
	build, ok := h.builders[name]
	h.mu.Unlock()
	if !ok {
		return nil, &ModelError{Err: ErrUnknownPlugin, Detail: name}
	}
	p := build()
	h.Register(p)
	return p, nil
}

// Register activates an already constructed plugin.
func (h *PluginHost) Register(p Plugin) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = append(h.active, p)
}

// Plugin returns the active plugin called name, or nil.
func (h *PluginHost) Plugin(name string) Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.active {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Plugins returns the active plugins in load order.
func (h *PluginHost) Plugins() []Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Plugin(nil), h.active...)
}

func (h *PluginHost) each(fn func(Plugin) error) error {
	if h == nil {
		return nil
	}
	for _, p := range h.Plugins() {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (h *PluginHost) PreInitialize() error {
	return h.each(func(p Plugin) error { return p.PreInitialize() })
}

func (h *PluginHost) PostInitialize() error {
	return h.each(func(p Plugin) error { return p.PostInitialize() })
}

func (h *PluginHost) PreUpdate(dt float64) error {
	return h.each(func(p Plugin) error { return p.PreUpdate(dt) })
}

func (h *PluginHost) PostUpdate(dt float64) error {
	return h.each(func(p Plugin) error { return p.PostUpdate(dt) })
}

func (h *PluginHost) PauseUpdate(dt float64) error {
	return h.each(func(p Plugin) error { return p.PauseUpdate(dt) })
}

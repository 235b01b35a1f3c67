package sim

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DisplayMode selects what a Display call is for.
type DisplayMode int

const (
	DisplayInitial DisplayMode = iota
	DisplayContinuous
	DisplayFinal
	DisplayUser
)

func (m DisplayMode) String() string {
	switch m {
	case DisplayInitial:
		return "initial"
	case DisplayContinuous:
		return "continuous"
	case DisplayFinal:
		return "final"
	case DisplayUser:
		return "user"
	}
	return fmt.Sprintf("DisplayMode(%d)", int(m))
}

// Model is a node of the simulation graph. Implementations embed Base, call
// Base.Setup from their constructor and override the lifecycle hooks they need.
type Model interface {
	Name() string
	SetName(name string) error
	Class() string
	Description() string

	Configure() error
	Init() error
	Update(dt float64) error
	Display(mode DisplayMode) error

	// MinimumUpdateFrequency is the lowest rate, in Hz, the model can run at.
	// Zero means no floor.
	MinimumUpdateFrequency() int
	// IsEndPoint reports that the model has an observable effect of its own
	// and must never be pruned from a dependent traversal.
	IsEndPoint() bool

	Parse(n *Node, f *Factory) error
	Write(n *Node) error

	AsGroup() *Group
	base() *Base
}

// DynamicInputs is implemented by models whose inputs can be added at runtime.
type DynamicInputs interface {
	AddInput() Port
	RemoveInput()
}

// DynamicOutputs is implemented by models whose outputs can be added at runtime.
type DynamicOutputs interface {
	AddOutput() Port
	RemoveOutput()
}

type portEntry struct {
	name     string
	desc     string
	port     Port
	exported bool // owned by a descendant, see Group.ExportPort
}

// Base carries the state every Model shares: its name and class, the port and
// parameter registries, the parent link, the update frequency and the
// error/warning flags. It also provides no-op lifecycle hooks.
type Base struct {
	self Model
	h    *handle

	name        string
	class       string
	description string

	parent *Group

	ports     []portEntry
	portIndex map[string]int

	params     []*Parameter
	paramIndex map[string]int

	frequency int

	errFlag  bool
	errMsg   string
	warnFlag bool
	warnMsg  string

	providers    []Model
	dependants   []Model
	providersOK  bool
	dependantsOK bool
}

// Setup binds the base to the model embedding it. class has the form
// "library::Name"; an empty name defaults to the Name part of class.
func (b *Base) Setup(self Model, name, class, description string) {
	if name == "" {
		name = className(class)
	}
	b.self = self
	b.h = &handle{m: self}
	b.name = name
	b.class = class
	b.description = description
}

func className(class string) string {
	if i := strings.LastIndex(class, "::"); i >= 0 {
		return class[i+2:]
	}
	return class
}

func (b *Base) base() *Base { return b }

// BaseOf returns the Base embedded by m.
func BaseOf(m Model) *Base { return m.base() }

// PortPath names p as "path.port", with the owner's path relative to
// relative (absolute when nil). Unregistered ports render as "<port>".
func PortPath(p Port, relative *Group) string {
	if isNilPort(p) || p.Owner() == nil {
		return "<port>"
	}
	b := p.Owner().base()
	name, err := b.PortName(p)
	if err != nil {
		return b.Path(relative) + ".<port>"
	}
	return b.Path(relative) + "." + name
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Class() string       { return b.class }
func (b *Base) Description() string { return b.description }

// Library is the part of the class before "::".
func (b *Base) Library() string {
	if i := strings.Index(b.class, "::"); i >= 0 {
		return b.class[:i]
	}
	return ""
}

// SetName renames the model. Siblings in the parent group must keep
// distinct names.
func (b *Base) SetName(name string) error {
	if name == "" || strings.ContainsAny(name, "/.") {
		return modelErr(b.self, ErrInvalidName, "%q", name)
	}
	if b.parent != nil {
		for _, c := range b.parent.children {
			if c != b.self && c.Name() == name {
				return modelErr(b.self, ErrDuplicateName, "%q in group %q", name, b.parent.name)
			}
		}
	}
	b.name = name
	return nil
}

func (b *Base) Configure() error          { return nil }
func (b *Base) Init() error               { return nil }
func (b *Base) Update(float64) error      { return nil }
func (b *Base) Display(DisplayMode) error { return nil }
func (b *Base) MinimumUpdateFrequency() int {
	return 0
}
func (b *Base) IsEndPoint() bool { return false }
func (b *Base) AsGroup() *Group  { return nil }

// Parent returns the owning group, nil for a root or detached model.
func (b *Base) Parent() *Group { return b.parent }

// Root returns the topmost ancestor, or the model itself when it has no parent.
func (b *Base) Root() Model {
	var m Model = b.self
	for p := b.parent; p != nil; p = p.parent {
		m = p
	}
	return m
}

// Path returns the model's location. With relative nil the path is absolute,
// "/a/b", and excludes the root's own name. Otherwise the names below
// relative are joined, "a/b".
func (b *Base) Path(relative *Group) string {
	var parts []string
	cur := b
	for cur.parent != nil && cur.parent != relative {
		parts = append(parts, cur.name)
		cur = &cur.parent.Base
	}
	if relative != nil {
		if cur.parent == relative {
			parts = append(parts, cur.name)
		}
		slices.Reverse(parts)
		return strings.Join(parts, "/")
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}

// UpdateFrequency is the requested rate in Hz. Zero inherits the simulation rate.
func (b *Base) UpdateFrequency() int { return b.frequency }

func (b *Base) SetUpdateFrequency(freq int) error {
	if freq < 0 {
		return modelErr(b.self, ErrFrequencyTooLow, "%d Hz", freq)
	}
	if freq != 0 && freq < b.self.MinimumUpdateFrequency() {
		return modelErr(b.self, ErrFrequencyTooLow, "%d Hz < %d Hz", freq, b.self.MinimumUpdateFrequency())
	}
	b.frequency = freq
	return nil
}

func (b *Base) SetError(msg string) {
	b.errFlag = true
	b.errMsg = msg
}

func (b *Base) SetWarning(msg string) {
	b.warnFlag = true
	b.warnMsg = msg
}

func (b *Base) ClearError() {
	b.errFlag = false
	b.errMsg = ""
}

func (b *Base) ClearWarning() {
	b.warnFlag = false
	b.warnMsg = ""
}

func (b *Base) ErrorFlag() bool        { return b.errFlag }
func (b *Base) ErrorMessage() string   { return b.errMsg }
func (b *Base) WarningFlag() bool      { return b.warnFlag }
func (b *Base) WarningMessage() string { return b.warnMsg }

// RegisterPort adds p under name and makes this model its owner.
func (b *Base) RegisterPort(p Port, name, desc string) error {
	if isNilPort(p) {
		return modelErr(b.self, ErrUnknownPort, "nil port %q", name)
	}
	if err := b.addPortEntry(portEntry{name: name, desc: desc, port: p}); err != nil {
		return err
	}
	p.core().owner = b.h
	return nil
}

// MustRegisterPort is RegisterPort for constructors with a fixed port set.
// It panics on error.
func (b *Base) MustRegisterPort(p Port, name, desc string) {
	if err := b.RegisterPort(p, name, desc); err != nil {
		panic(err)
	}
}

func (b *Base) addPortEntry(e portEntry) error {
	if e.name == "" || strings.ContainsAny(e.name, "/.") {
		return modelErr(b.self, ErrInvalidName, "port %q", e.name)
	}
	if _, dup := b.portIndex[e.name]; dup {
		return modelErr(b.self, ErrDuplicateName, "port %q", e.name)
	}
	if b.portIndex == nil {
		b.portIndex = make(map[string]int)
	}
	b.portIndex[e.name] = len(b.ports)
	b.ports = append(b.ports, e)
	b.invalidateDependencies()
	return nil
}

func (b *Base) removePortEntry(i int) {
	delete(b.portIndex, b.ports[i].name)
	b.ports = slices.Delete(b.ports, i, i+1)
	for j := i; j < len(b.ports); j++ {
		b.portIndex[b.ports[j].name] = j
	}
	b.invalidateDependencies()
}

// UnregisterPort disconnects p and removes it from the registry.
func (b *Base) UnregisterPort(p Port) error {
	i, err := b.PortIndex(p)
	if err != nil {
		return err
	}
	if !b.ports[i].exported {
		p.DisconnectAll()
		p.core().owner = nil
	}
	b.removePortEntry(i)
	return nil
}

// Port looks a port up by name.
func (b *Base) Port(name string) (Port, error) {
	i, ok := b.portIndex[name]
	if !ok {
		return nil, modelErr(b.self, ErrUnknownPort, "%q", name)
	}
	return b.ports[i].port, nil
}

// PortAt returns the i-th registered port, nil when out of range.
func (b *Base) PortAt(i int) Port {
	if i < 0 || i >= len(b.ports) {
		return nil
	}
	return b.ports[i].port
}

func (b *Base) NumPorts() int { return len(b.ports) }

// Ports returns the registered ports in registration order.
func (b *Base) Ports() []Port {
	out := make([]Port, len(b.ports))
	for i, e := range b.ports {
		out[i] = e.port
	}
	return out
}

func (b *Base) NumInputs() int {
	n := 0
	for _, e := range b.ports {
		if e.port.IsInput() {
			n++
		}
	}
	return n
}

func (b *Base) NumOutputs() int { return len(b.ports) - b.NumInputs() }

func (b *Base) PortIndex(p Port) (int, error) {
	for i, e := range b.ports {
		if e.port == p {
			return i, nil
		}
	}
	return -1, modelErr(b.self, ErrUnknownPort, "port not registered")
}

func (b *Base) PortName(p Port) (string, error) {
	i, err := b.PortIndex(p)
	if err != nil {
		return "", err
	}
	return b.ports[i].name, nil
}

func (b *Base) PortDescription(p Port) (string, error) {
	i, err := b.PortIndex(p)
	if err != nil {
		return "", err
	}
	return b.ports[i].desc, nil
}

// OwnsPort reports whether p was registered by this model, as opposed to
// exported into it.
func (b *Base) OwnsPort(p Port) bool {
	return !isNilPort(p) && p.core().owner == b.h && b.h != nil
}

func (b *Base) invalidateDependencies() {
	b.providersOK = false
	b.dependantsOK = false
	b.providers = nil
	b.dependants = nil
}

// DataProviders returns the distinct owners of ports feeding this model's
// inputs, in input registration order. The result is cached until a port
// of this model is connected or disconnected and must not be modified.
func (b *Base) DataProviders() []Model {
	if !b.providersOK {
		var ps []Model
		for _, e := range b.ports {
			if e.exported || !e.port.IsInput() {
				continue
			}
			other := e.port.OtherEnd(0)
			if other == nil {
				continue
			}
			if o := other.Owner(); o != nil && !slices.Contains(ps, o) {
				ps = append(ps, o)
			}
		}
		b.providers = ps
		b.providersOK = true
	}
	return b.providers
}

// DataDependants returns the distinct owners of inputs connected to this
// model's outputs. Cached like DataProviders.
func (b *Base) DataDependants() []Model {
	if !b.dependantsOK {
		var ds []Model
		for _, e := range b.ports {
			if e.exported || e.port.IsInput() {
				continue
			}
			for i := 0; i < e.port.NumConnections(); i++ {
				if o := e.port.OtherEnd(i).Owner(); o != nil && !slices.Contains(ds, o) {
					ds = append(ds, o)
				}
			}
		}
		b.dependants = ds
		b.dependantsOK = true
	}
	return b.dependants
}

func (b *Base) HasDataProviders() bool  { return len(b.DataProviders()) > 0 }
func (b *Base) HasDataDependants() bool { return len(b.DataDependants()) > 0 }

// linksFrom counts the inputs fed by m, split into strong and loose links.
func (b *Base) linksFrom(m Model) (strong, loose int) {
	for _, e := range b.ports {
		if e.exported || !e.port.IsInput() {
			continue
		}
		other := e.port.OtherEnd(0)
		if other == nil || other.Owner() != m {
			continue
		}
		if in, ok := e.port.(InputPort); ok && in.IsLoose() {
			loose++
		} else {
			strong++
		}
	}
	return strong, loose
}

// DependsOn reports whether any input of this model is fed by m.
func (b *Base) DependsOn(m Model) bool {
	s, l := b.linksFrom(m)
	return s+l > 0
}

// DependsStronglyOn reports whether a non-loose input is fed by m.
func (b *Base) DependsStronglyOn(m Model) bool {
	s, _ := b.linksFrom(m)
	return s > 0
}

// DependsLooselyOn reports whether m feeds this model through loose inputs only.
func (b *Base) DependsLooselyOn(m Model) bool {
	s, l := b.linksFrom(m)
	return s == 0 && l > 0
}

// ProvidesFor reports whether m depends on this model.
func (b *Base) ProvidesFor(m Model) bool {
	return m != nil && m.base().DependsOn(b.self)
}

// HasEndPointDependants reports whether an endpoint is reachable through
// the dependants graph.
func (b *Base) HasEndPointDependants() bool {
	return endpointReachable(b.self, make(map[Model]bool))
}

func endpointReachable(m Model, seen map[Model]bool) bool {
	seen[m] = true
	for _, d := range m.base().DataDependants() {
		if d.IsEndPoint() {
			return true
		}
		if !seen[d] && endpointReachable(d, seen) {
			return true
		}
	}
	return false
}

// Parse applies the name, frequency, dynamic port counts and parameters of n.
// Unknown parameters raise the warning flag and are otherwise ignored.
func (b *Base) Parse(n *Node, _ *Factory) error {
	if n.Name != "" && n.Name != b.name {
		if err := b.SetName(n.Name); err != nil {
			return err
		}
	}
	if n.Frequency != 0 {
		if err := b.SetUpdateFrequency(n.Frequency); err != nil {
			return err
		}
	}
	if err := b.resizeDynamic(n.NumInputs, n.NumOutputs); err != nil {
		return err
	}

	names := make([]string, 0, len(n.Params))
	for name := range n.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := b.Parameter(name); err != nil {
			b.SetWarning(fmt.Sprintf("unknown parameter %q", name))
			logrus.Warnf("%s: ignoring unknown parameter %q", b.name, name)
			continue
		}
		if err := b.SetParameterText(name, formatValue(n.Params[name]), n.Units[name]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Base) resizeDynamic(inputs, outputs int) error {
	if inputs > 0 {
		dyn, ok := b.self.(DynamicInputs)
		if !ok {
			return modelErr(b.self, ErrUnsupportedPorting, "inputs")
		}
		for b.NumInputs() < inputs {
			dyn.AddInput()
		}
		for n := b.NumInputs(); n > inputs; n = b.NumInputs() {
			if dyn.RemoveInput(); b.NumInputs() == n {
				break
			}
		}
	}
	if outputs > 0 {
		dyn, ok := b.self.(DynamicOutputs)
		if !ok {
			return modelErr(b.self, ErrUnsupportedPorting, "outputs")
		}
		for b.NumOutputs() < outputs {
			dyn.AddOutput()
		}
		for n := b.NumOutputs(); n > outputs; n = b.NumOutputs() {
			if dyn.RemoveOutput(); b.NumOutputs() == n {
				break
			}
		}
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// Write records the model's class, name, frequency, dynamic port counts and
// parameters into n.
func (b *Base) Write(n *Node) error {
	n.Type = b.class
	n.Name = b.name
	n.Frequency = b.frequency
	if _, ok := b.self.(DynamicInputs); ok {
		n.NumInputs = b.NumInputs()
	}
	if _, ok := b.self.(DynamicOutputs); ok {
		n.NumOutputs = b.NumOutputs()
	}
	if len(b.params) == 0 {
		return nil
	}
	n.Params = make(map[string]any, len(b.params))
	for _, p := range b.params {
		switch v := p.ptr.(type) {
		case *bool:
			n.Params[p.Name] = *v
		case *int:
			n.Params[p.Name] = int64(*v)
		case *uint:
			n.Params[p.Name] = uint64(*v)
		case *float32:
			n.Params[p.Name] = float64(*v)
		case *float64:
			n.Params[p.Name] = *v
		case *string:
			n.Params[p.Name] = *v
		}
		if p.Unit != "" {
			if n.Units == nil {
				n.Units = make(map[string]string)
			}
			n.Units[p.Name] = p.Unit
		}
	}
	return nil
}

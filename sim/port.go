package sim

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotUnitAware is returned when a unit is assigned to a plain port.
var ErrNotUnitAware = errors.New("port does not carry units")

// Port is a typed connection point owned by a Model.
//
// There are four concrete variants: InPort, OutPort, InUnitPort and
// OutUnitPort, each generic over the payload type. An input holds at most one
// link, to an output or to another input of the same payload type. An output
// holds any number of links, all to inputs.
type Port interface {
	Connect(other Port) error
	CanConnect(other Port) bool
	Disconnect(other Port)
	DisconnectAll()
	IsConnected() bool
	IsConnectedTo(other Port) bool
	NumConnections() int
	OtherEnd(index int) Port
	IsValid() bool

	Owner() Model
	Unit() string
	SetUnit(unit string) error
	UnitAware() bool
	IsInput() bool
	IsOutput() bool
	TypeName() string

	core() *portCore
}

// InputPort is implemented by every input variant.
type InputPort interface {
	Port
	SetLoose(loose bool)
	IsLoose() bool
	Scale() float64
}

// PortObserver may be implemented by models that want to react to links being
// made or broken on their ports.
type PortObserver interface {
	OnPortConnect(port, other Port)
	OnPortDisconnect(port, other Port)
}

// UnitConverter converts a value between two unit expressions.
type UnitConverter interface {
	Convert(value float64, from, to string) (float64, error)
}

// DefaultConverter is used by unit ports that have no converter of their own.
// The sim/units package replaces it from init().
var DefaultConverter UnitConverter = identityConverter{}

type identityConverter struct{}

func (identityConverter) Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	return 0, fmt.Errorf("no unit converter registered for %q -> %q", from, to)
}

// Numeric lists the payload types unit ports can scale.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// handle is the non-owning reference from ports to their model. Release
// empties it so stale ports observe a nil owner.
type handle struct {
	m Model
}

func (h *handle) get() Model {
	if h == nil {
		return nil
	}
	return h.m
}

type portCore struct {
	self      Port
	owner     *handle
	unit      string
	input     bool
	unitAware bool
}

func (c *portCore) core() *portCore { return c }

func (c *portCore) Owner() Model    { return c.owner.get() }
func (c *portCore) Unit() string    { return c.unit }
func (c *portCore) UnitAware() bool { return c.unitAware }
func (c *portCore) IsInput() bool   { return c.input }
func (c *portCore) IsOutput() bool  { return !c.input }

// SetUnit changes the declared unit. A scale factor computed on connection
// is kept until the port is reconnected.
func (c *portCore) SetUnit(unit string) error {
	if !c.unitAware && unit != "" {
		return &PortError{Err: ErrNotUnitAware, Port: c.self}
	}
	c.unit = unit
	return nil
}

type outSide[T any] interface {
	outPort() *OutPort[T]
}

type inSide[T any] interface {
	inPort() *InPort[T]
}

// InPort is a read-only input of type T.
type InPort[T any] struct {
	portCore

	out *OutPort[T]
	in  *InPort[T] // forwarded input, used as a pass-through alias

	loose      bool
	hasDefault bool
	def        T

	scale   float64
	scaleFn func(T, float64) T
	conv    UnitConverter
}

// NewInPort returns an unconnected input without units.
func NewInPort[T any]() *InPort[T] {
	p := &InPort[T]{scale: 1}
	p.self = p
	p.input = true
	return p
}

// NewInPortWithDefault returns an input that yields def while unconnected.
func NewInPortWithDefault[T any](def T) *InPort[T] {
	p := NewInPort[T]()
	p.SetDefault(def)
	return p
}

func (p *InPort[T]) inPort() *InPort[T] { return p }

func (p *InPort[T]) TypeName() string { return reflect.TypeOf((*T)(nil)).Elem().String() }

// SetDefault installs a value returned by Get while the port is unconnected.
func (p *InPort[T]) SetDefault(v T) {
	p.def = v
	p.hasDefault = true
}

// ClearDefault removes the default value.
func (p *InPort[T]) ClearDefault() {
	var zero T
	p.def = zero
	p.hasDefault = false
}

// Default returns the default value and whether one is set.
func (p *InPort[T]) Default() (T, bool) { return p.def, p.hasDefault }

func (p *InPort[T]) SetLoose(loose bool) { p.loose = loose }
func (p *InPort[T]) IsLoose() bool       { return p.loose }

// Scale is the unit factor applied to values read through this port.
func (p *InPort[T]) Scale() float64 { return p.scale }

func (p *InPort[T]) CanConnect(other Port) bool {
	if isNilPort(other) || other == p.self {
		return false
	}
	if _, ok := other.(outSide[T]); ok {
		return true
	}
	_, ok := other.(inSide[T])
	return ok
}

// Connect links the input to an output, or forwards it to another input.
// An existing link is replaced.
func (p *InPort[T]) Connect(other Port) error {
	if isNilPort(other) {
		return &PortError{Err: ErrNullTarget, Port: p.self}
	}
	if other == p.self {
		return &PortError{Err: ErrSelfConnection, Port: p.self}
	}
	if p.IsConnectedTo(other) {
		return nil
	}

	if o, ok := other.(outSide[T]); ok {
		out := o.outPort()
		scale, err := p.scaleFrom(&out.portCore)
		if err != nil {
			return &PortError{Err: err, Port: p.self, Other: other}
		}
		p.DisconnectAll()
		p.out = out
		p.scale = scale
		out.conns = append(out.conns, p)
		notifyLink(p.self, other, true)
		return nil
	}

	if o, ok := other.(inSide[T]); ok {
		src := o.inPort()
		for q := src; q != nil; q = q.in {
			if q == p {
				return &PortError{Err: fmt.Errorf("%w: forwarding loop", ErrSelfConnection), Port: p.self, Other: other}
			}
		}
		scale, err := p.scaleFrom(&src.portCore)
		if err != nil {
			return &PortError{Err: err, Port: p.self, Other: other}
		}
		p.DisconnectAll()
		p.in = src
		p.scale = scale
		notifyLink(p.self, other, true)
		return nil
	}

	return &PortError{Err: ErrIncompatibleTypes, Port: p.self, Other: other}
}

func (p *InPort[T]) scaleFrom(src *portCore) (float64, error) {
	if !p.unitAware || !src.unitAware || p.unit == "" || src.unit == "" {
		return 1, nil
	}
	conv := p.conv
	if conv == nil {
		conv = DefaultConverter
	}
	return conv.Convert(1, src.unit, p.unit)
}

func (p *InPort[T]) Disconnect(other Port) {
	switch {
	case isNilPort(other):
	case p.out != nil && p.out.self == other:
		p.unlinkOut()
	case p.in != nil && p.in.self == other:
		p.unlinkIn()
	}
}

func (p *InPort[T]) DisconnectAll() {
	if p.out != nil {
		p.unlinkOut()
	}
	if p.in != nil {
		p.unlinkIn()
	}
}

func (p *InPort[T]) unlinkOut() {
	out := p.out
	out.conns = slices.DeleteFunc(out.conns, func(q *InPort[T]) bool { return q == p })
	p.out = nil
	p.scale = 1
	notifyLink(p.self, out.self, false)
}

func (p *InPort[T]) unlinkIn() {
	in := p.in
	p.in = nil
	p.scale = 1
	notifyLink(p.self, in.self, false)
}

func (p *InPort[T]) IsConnected() bool { return p.out != nil || p.in != nil }

func (p *InPort[T]) IsConnectedTo(other Port) bool {
	if isNilPort(other) {
		return false
	}
	return (p.out != nil && p.out.self == other) || (p.in != nil && p.in.self == other)
}

func (p *InPort[T]) NumConnections() int {
	if p.IsConnected() {
		return 1
	}
	return 0
}

func (p *InPort[T]) OtherEnd(index int) Port {
	if index != 0 {
		return nil
	}
	switch {
	case p.out != nil:
		return p.out.self
	case p.in != nil:
		return p.in.self
	}
	return nil
}

// IsValid reports whether Get would succeed.
func (p *InPort[T]) IsValid() bool {
	switch {
	case p.out != nil:
		return true
	case p.in != nil:
		return p.in.IsValid()
	}
	return p.hasDefault
}

// Get pulls the current value through the link, scaled by the unit factor.
func (p *InPort[T]) Get() (T, error) {
	var v T
	switch {
	case p.out != nil:
		v = p.out.Get()
	case p.in != nil:
		var err error
		if v, err = p.in.Get(); err != nil {
			return v, err
		}
	case p.hasDefault:
		return p.def, nil
	default:
		return v, &PortError{Err: ErrAccessUnconnected, Port: p.self}
	}
	if p.scaleFn != nil && p.scale != 1 {
		v = p.scaleFn(v, p.scale)
	}
	return v, nil
}

// Set always fails: values are produced at outputs only.
func (p *InPort[T]) Set(T) error {
	return &PortError{Err: ErrReadOnlyInput, Port: p.self}
}

// InUnitPort is an input that converts values from the connected port's unit.
type InUnitPort[T Numeric] struct {
	InPort[T]
}

func NewInUnitPort[T Numeric](unit string) *InUnitPort[T] {
	p := &InUnitPort[T]{}
	p.scale = 1
	p.self = p
	p.input = true
	p.unitAware = true
	p.unit = unit
	p.scaleFn = scaleNumeric[T]
	return p
}

// SetConverter overrides DefaultConverter for subsequent connections.
func (p *InUnitPort[T]) SetConverter(c UnitConverter) { p.conv = c }

func scaleNumeric[T Numeric](v T, scale float64) T {
	return T(float64(v) * scale)
}

// OutPort holds the value read by every connected input. Get and Set are
// safe for concurrent use.
type OutPort[T any] struct {
	portCore

	mu    sync.Mutex
	value T
	ptr   *T

	conns []*InPort[T]
}

// NewOutPort returns an output backed by its own value.
func NewOutPort[T any]() *OutPort[T] {
	p := &OutPort[T]{}
	p.self = p
	return p
}

// NewOutPortFor returns an output backed by the variable ptr points to.
func NewOutPortFor[T any](ptr *T) *OutPort[T] {
	p := NewOutPort[T]()
	p.ptr = ptr
	return p
}

func (p *OutPort[T]) outPort() *OutPort[T] { return p }

func (p *OutPort[T]) TypeName() string { return reflect.TypeOf((*T)(nil)).Elem().String() }

func (p *OutPort[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ptr != nil {
		return *p.ptr
	}
	return p.value
}

func (p *OutPort[T]) Set(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ptr != nil {
		*p.ptr = v
		return
	}
	p.value = v
}

// SetPtr rebinds the backing storage. A nil pointer reverts to the port's own value.
func (p *OutPort[T]) SetPtr(ptr *T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ptr = ptr
}

func (p *OutPort[T]) CanConnect(other Port) bool {
	if isNilPort(other) || other == p.self {
		return false
	}
	_, ok := other.(inSide[T])
	return ok
}

func (p *OutPort[T]) Connect(other Port) error {
	if isNilPort(other) {
		return &PortError{Err: ErrNullTarget, Port: p.self}
	}
	if other == p.self {
		return &PortError{Err: ErrSelfConnection, Port: p.self}
	}
	o, ok := other.(inSide[T])
	if !ok {
		return &PortError{Err: ErrIncompatibleTypes, Port: p.self, Other: other}
	}
	return o.inPort().Connect(p.self)
}

func (p *OutPort[T]) Disconnect(other Port) {
	if isNilPort(other) {
		return
	}
	if o, ok := other.(inSide[T]); ok {
		if in := o.inPort(); in.out == p {
			in.unlinkOut()
		}
	}
}

func (p *OutPort[T]) DisconnectAll() {
	for len(p.conns) > 0 {
		p.conns[len(p.conns)-1].unlinkOut()
	}
}

func (p *OutPort[T]) IsConnected() bool   { return len(p.conns) > 0 }
func (p *OutPort[T]) NumConnections() int { return len(p.conns) }

func (p *OutPort[T]) IsConnectedTo(other Port) bool {
	for _, in := range p.conns {
		if in.self == other {
			return true
		}
	}
	return false
}

func (p *OutPort[T]) OtherEnd(index int) Port {
	if index < 0 || index >= len(p.conns) {
		return nil
	}
	return p.conns[index].self
}

// IsValid is always true: an output has either its own value or a pointer.
func (p *OutPort[T]) IsValid() bool { return true }

// OutUnitPort is an output that declares the unit of the values it holds.
type OutUnitPort[T Numeric] struct {
	OutPort[T]
}

func NewOutUnitPort[T Numeric](unit string) *OutUnitPort[T] {
	p := &OutUnitPort[T]{}
	p.self = p
	p.unitAware = true
	p.unit = unit
	return p
}

func isNilPort(p Port) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func notifyLink(a, b Port, connected bool) {
	notifyOwner(a, b, connected)
	notifyOwner(b, a, connected)
	if connected {
		logrus.Debugf("connected %s to %s", portLabel(a), portLabel(b))
	} else {
		logrus.Debugf("disconnected %s from %s", portLabel(a), portLabel(b))
	}
}

func notifyOwner(p, other Port, connected bool) {
	m := p.Owner()
	if m == nil {
		return
	}
	m.base().invalidateDependencies()
	for g := m.base().Parent(); g != nil; g = g.Parent() {
		g.invalidateDependencies()
	}
	if obs, ok := m.(PortObserver); ok {
		if connected {
			obs.OnPortConnect(p, other)
		} else {
			obs.OnPortDisconnect(p, other)
		}
	}
}

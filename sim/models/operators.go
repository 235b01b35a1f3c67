package models

import (
	"github.com/simblox/simblox/sim"
)

// Constant writes its value parameter to "out".
type Constant struct {
	sim.Base
	value float64
	out   *sim.OutPort[float64]
}

func NewConstant(name string) *Constant {
	m := &Constant{out: sim.NewOutPort[float64]()}
	m.Setup(m, name, ConstantClass, "Constant output value")
	m.MustRegisterParameter(&m.value, "value", "", "output value")
	m.MustRegisterPort(m.out, "out", "the constant value")
	return m
}

// Out is the output port.
func (m *Constant) Out() *sim.OutPort[float64] { return m.out }

// SetValue changes the value written on the next Init or Update.
func (m *Constant) SetValue(v float64) { m.value = v }

func (m *Constant) Init() error {
	m.out.Set(m.value)
	return nil
}

func (m *Constant) Update(float64) error {
	m.out.Set(m.value)
	return nil
}

// Operator combines inputs "a" and "b" into output "c".
type Operator struct {
	sim.Base
	a, b *sim.InPort[float64]
	c    *sim.OutPort[float64]
	fn   func(a, b float64) float64
}

func newOperator(name, class, desc string, fn func(a, b float64) float64) *Operator {
	m := &Operator{
		a:  sim.NewInPort[float64](),
		b:  sim.NewInPort[float64](),
		c:  sim.NewOutPort[float64](),
		fn: fn,
	}
	m.Setup(m, name, class, desc)
	m.MustRegisterPort(m.a, "a", "first operand")
	m.MustRegisterPort(m.b, "b", "second operand")
	m.MustRegisterPort(m.c, "c", "result")
	return m
}

func NewAdd(name string) *Operator {
	return newOperator(name, AddClass, "c = a + b", func(a, b float64) float64 { return a + b })
}

func NewSubtract(name string) *Operator {
	return newOperator(name, SubtractClass, "c = a - b", func(a, b float64) float64 { return a - b })
}

func NewMultiply(name string) *Operator {
	return newOperator(name, MultiplyClass, "c = a * b", func(a, b float64) float64 { return a * b })
}

func NewDivide(name string) *Operator {
	return newOperator(name, DivideClass, "c = a / b", func(a, b float64) float64 { return a / b })
}

func (m *Operator) A() *sim.InPort[float64]  { return m.a }
func (m *Operator) B() *sim.InPort[float64]  { return m.b }
func (m *Operator) C() *sim.OutPort[float64] { return m.c }

func (m *Operator) Update(float64) error {
	a, err := m.a.Get()
	if err != nil {
		return err
	}
	b, err := m.b.Get()
	if err != nil {
		return err
	}
	m.c.Set(m.fn(a, b))
	return nil
}

// Sum adds any number of inputs.
type Sum struct {
	sim.Base
	inputs sim.InputList[float64]
	out    *sim.OutPort[float64]
}

func NewSum(name string) *Sum {
	m := &Sum{out: sim.NewOutPort[float64]()}
	m.Setup(m, name, SumClass, "Sum of all inputs")
	m.MustRegisterPort(m.out, "out", "sum")
	m.AddInput()
	return m
}

func (m *Sum) AddInput() sim.Port         { return m.inputs.Add(&m.Base, "summand") }
func (m *Sum) RemoveInput()               { m.inputs.RemoveUnconnected(&m.Base) }
func (m *Sum) Out() *sim.OutPort[float64] { return m.out }

// Update skips unconnected inputs.
func (m *Sum) Update(float64) error {
	total := 0.0
	for _, in := range m.inputs.Ports() {
		if !in.IsValid() {
			continue
		}
		v, err := in.Get()
		if err != nil {
			return err
		}
		total += v
	}
	m.out.Set(total)
	return nil
}

// Broadcast copies input "in" to every one of its outputs.
type Broadcast struct {
	sim.Base
	in      *sim.InPort[float64]
	outputs sim.OutputList[float64]
}

func NewBroadcast(name string) *Broadcast {
	m := &Broadcast{in: sim.NewInPort[float64]()}
	m.Setup(m, name, BroadcastClass, "Copies its input to every output")
	m.MustRegisterPort(m.in, "in", "value to copy")
	m.AddOutput()
	return m
}

func (m *Broadcast) AddOutput() sim.Port      { return m.outputs.Add(&m.Base, "copy of in") }
func (m *Broadcast) RemoveOutput()            { m.outputs.RemoveUnconnected(&m.Base) }
func (m *Broadcast) In() *sim.InPort[float64] { return m.in }

func (m *Broadcast) Update(float64) error {
	v, err := m.in.Get()
	if err != nil {
		return err
	}
	for _, out := range m.outputs.Ports() {
		out.Set(v)
	}
	return nil
}

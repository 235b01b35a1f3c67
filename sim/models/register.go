// Package models is the built-in model library: arithmetic operators,
// signal sources and a port dumper. Register adds them to a sim.Factory.
package models

import "github.com/simblox/simblox/sim"

const (
	ConstantClass        = "op::Constant"
	AddClass             = "op::Add"
	SubtractClass        = "op::Subtract"
	MultiplyClass        = "op::Multiply"
	DivideClass          = "op::Divide"
	SumClass             = "op::Sum"
	BroadcastClass       = "op::Broadcast"
	SignalGeneratorClass = "sbx::SignalGenerator"
	TimerClass           = "sbx::Timer"
	PortDumperClass      = "sbx::PortDumper"
)

// Register adds every built-in model to f. Classes already present are kept.
func Register(f *sim.Factory) {
	f.Register(ConstantClass, func() sim.Model { return NewConstant("") })
	f.Register(AddClass, func() sim.Model { return NewAdd("") })
	f.Register(SubtractClass, func() sim.Model { return NewSubtract("") })
	f.Register(MultiplyClass, func() sim.Model { return NewMultiply("") })
	f.Register(DivideClass, func() sim.Model { return NewDivide("") })
	f.Register(SumClass, func() sim.Model { return NewSum("") })
	f.Register(BroadcastClass, func() sim.Model { return NewBroadcast("") })
	f.Register(SignalGeneratorClass, func() sim.Model { return NewSignalGenerator("") })
	f.Register(TimerClass, func() sim.Model { return NewTimer("") })
	f.Register(PortDumperClass, func() sim.Model { return NewPortDumper("") })
}

// NewFactory returns a factory holding the group class and every built-in model.
func NewFactory() *sim.Factory {
	f := sim.NewFactory()
	Register(f)
	return f
}

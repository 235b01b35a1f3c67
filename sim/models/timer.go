package models

import "github.com/simblox/simblox/sim"

// Timer outputs the simulated time elapsed since Init, in seconds.
type Timer struct {
	sim.Base
	t   float64
	out *sim.OutUnitPort[float64]
}

func NewTimer(name string) *Timer {
	m := &Timer{out: sim.NewOutUnitPort[float64]("second")}
	m.Setup(m, name, TimerClass, "Elapsed simulated time")
	m.MustRegisterPort(m.out, "t", "time since init")
	return m
}

func (m *Timer) Out() *sim.OutUnitPort[float64] { return m.out }

func (m *Timer) Init() error {
	m.t = 0
	m.out.Set(0)
	return nil
}

func (m *Timer) Update(dt float64) error {
	m.t += dt
	m.out.Set(m.t)
	return nil
}

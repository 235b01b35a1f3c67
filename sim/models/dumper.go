package models

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/simblox/simblox/sim"
)

// PortDumper prints the values of its inputs as tab separated rows. The
// header lists the port each input is connected to.
type PortDumper struct {
	sim.Base

	interval float64 // seconds between rows, 0 prints every display
	inputs   sim.InputList[float64]
	w        io.Writer

	t       float64
	lastRow float64
	printed bool
}

func NewPortDumper(name string) *PortDumper {
	m := &PortDumper{w: os.Stdout}
	m.Setup(m, name, PortDumperClass, "Prints input values")
	m.MustRegisterParameter(&m.interval, "interval", "second", "time between rows")
	m.AddInput()
	return m
}

// SetWriter redirects the output, os.Stdout by default.
func (m *PortDumper) SetWriter(w io.Writer) { m.w = w }

func (m *PortDumper) AddInput() sim.Port { return m.inputs.Add(&m.Base, "value to print") }
func (m *PortDumper) RemoveInput()       { m.inputs.RemoveUnconnected(&m.Base) }
func (m *PortDumper) IsEndPoint() bool   { return true }

func (m *PortDumper) Init() error {
	m.t = 0
	m.printed = false
	return nil
}

func (m *PortDumper) Update(dt float64) error {
	m.t += dt
	return nil
}

func (m *PortDumper) Display(mode sim.DisplayMode) error {
	switch mode {
	case sim.DisplayInitial:
		return m.header()
	case sim.DisplayContinuous:
		if m.printed && m.t-m.lastRow < m.interval-1e-9 {
			return nil
		}
		m.printed = true
		m.lastRow = m.t
		return m.row()
	}
	return nil
}

func (m *PortDumper) header() error {
	cols := []string{"time"}
	for i, in := range m.inputs.Ports() {
		label := "in" + strconv.Itoa(i+1)
		if other := in.OtherEnd(0); other != nil && other.Owner() != nil {
			label = sim.PortPath(other, nil)
		}
		cols = append(cols, label)
	}
	_, err := fmt.Fprintln(m.w, strings.Join(cols, "\t"))
	return err
}

func (m *PortDumper) row() error {
	cols := []string{strconv.FormatFloat(m.t, 'g', 6, 64)}
	for _, in := range m.inputs.Ports() {
		if !in.IsValid() {
			cols = append(cols, "-")
			continue
		}
		v, err := in.Get()
		if err != nil {
			return err
		}
		cols = append(cols, strconv.FormatFloat(v, 'g', 6, 64))
	}
	_, err := fmt.Fprintln(m.w, strings.Join(cols, "\t"))
	return err
}

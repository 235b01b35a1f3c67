package models

import (
	"errors"
	"math"
	"strings"

	"github.com/simblox/simblox/sim"
)

// ErrUnknownWaveform is returned by Configure for an unsupported waveform.
var ErrUnknownWaveform = errors.New("unknown waveform")

// Waveform is the shape produced by a SignalGenerator.
type Waveform int

const (
	WaveConstant Waveform = iota
	WaveSine
	WaveCosine
)

var waveforms = map[string]Waveform{
	"constant": WaveConstant,
	"sine":     WaveSine,
	"cosine":   WaveCosine,
}

// SignalGenerator produces bias + amplitude * wave(frequency*t + phase).
type SignalGenerator struct {
	sim.Base

	waveformName string
	amplitude    float64
	frequency    float64 // rad/s
	phase        float64 // rad
	bias         float64

	waveform Waveform
	t        float64
	out      *sim.OutPort[float64]
}

func NewSignalGenerator(name string) *SignalGenerator {
	m := &SignalGenerator{
		waveformName: "sine",
		amplitude:    1,
		frequency:    1,
		waveform:     WaveSine,
		out:          sim.NewOutPort[float64](),
	}
	m.Setup(m, name, SignalGeneratorClass, "Periodic signal source")
	m.MustRegisterParameter(&m.waveformName, "waveform", "", "constant, sine or cosine")
	m.MustRegisterParameter(&m.amplitude, "amplitude", "", "peak amplitude")
	m.MustRegisterParameter(&m.frequency, "frequency", "radian/sec", "angular frequency")
	m.MustRegisterParameter(&m.phase, "phase", "radian", "phase offset")
	m.MustRegisterParameter(&m.bias, "bias", "", "constant offset")
	m.MustRegisterPort(m.out, "out", "signal value")
	return m
}

func (m *SignalGenerator) Out() *sim.OutPort[float64] { return m.out }

func (m *SignalGenerator) Configure() error {
	w, ok := waveforms[strings.ToLower(m.waveformName)]
	if !ok {
		return &sim.ModelError{Err: ErrUnknownWaveform, Model: m.Name(), Detail: m.waveformName}
	}
	m.waveform = w
	return nil
}

func (m *SignalGenerator) Init() error {
	m.t = 0
	m.out.Set(m.Value(0))
	return nil
}

func (m *SignalGenerator) Update(dt float64) error {
	m.t += dt
	m.out.Set(m.Value(m.t))
	return nil
}

// Value evaluates the signal at time t in seconds.
func (m *SignalGenerator) Value(t float64) float64 {
	switch m.waveform {
	case WaveSine:
		return m.bias + m.amplitude*math.Sin(m.frequency*t+m.phase)
	case WaveCosine:
		return m.bias + m.amplitude*math.Cos(m.frequency*t+m.phase)
	}
	return m.bias + m.amplitude
}

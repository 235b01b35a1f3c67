package sim

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// callLog records hook calls across models, safe for parallel visits.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// relay is a test model with input "in" and output "out". Update writes
// in+1 when connected, otherwise the number of updates so far.
type relay struct {
	Base
	in  *InPort[float64]
	out *OutPort[float64]

	log      *callLog
	endpoint bool
	minFreq  int
	failWith error

	configures, inits, updates int
	displays                   []DisplayMode
	dts                        []float64
	seen                       []float64
}

func newRelay(name string, log *callLog) *relay {
	m := &relay{in: NewInPort[float64](), out: NewOutPort[float64](), log: log}
	m.Setup(m, name, "test::Relay", "test model")
	m.MustRegisterPort(m.in, "in", "input")
	m.MustRegisterPort(m.out, "out", "output")
	return m
}

func newEndpoint(name string, log *callLog) *relay {
	m := newRelay(name, log)
	m.endpoint = true
	return m
}

func (m *relay) IsEndPoint() bool            { return m.endpoint }
func (m *relay) MinimumUpdateFrequency() int { return m.minFreq }

func (m *relay) Configure() error {
	m.configures++
	m.log.add("configure " + m.Name())
	return nil
}

func (m *relay) Init() error {
	m.inits++
	m.log.add("init " + m.Name())
	return m.failWith
}

func (m *relay) Update(dt float64) error {
	m.updates++
	m.dts = append(m.dts, dt)
	m.log.add("update " + m.Name())
	if m.failWith != nil {
		return m.failWith
	}
	if m.in.IsValid() {
		v, err := m.in.Get()
		if err != nil {
			return err
		}
		m.seen = append(m.seen, v)
		m.out.Set(v + 1)
		return nil
	}
	m.out.Set(float64(m.updates))
	return nil
}

func (m *relay) Display(mode DisplayMode) error {
	m.displays = append(m.displays, mode)
	m.log.add(fmt.Sprintf("display %s %s", mode, m.Name()))
	return nil
}

// chain connects each relay's input to the previous relay's output.
func chain(t *testing.T, ms ...*relay) {
	t.Helper()
	for i := 1; i < len(ms); i++ {
		require.NoError(t, ms[i].in.Connect(ms[i-1].out))
	}
}

// groupOf builds a group holding children in order.
func groupOf(t *testing.T, name string, children ...Model) *Group {
	t.Helper()
	g := NewGroup(name)
	for _, c := range children {
		require.NoError(t, g.AddChild(c))
	}
	return g
}

// fakeConverter converts between the unit pairs it lists.
type fakeConverter map[[2]string]float64

func (c fakeConverter) Convert(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	if f, ok := c[[2]string{from, to}]; ok {
		return value * f, nil
	}
	return 0, fmt.Errorf("cannot convert %q to %q", from, to)
}

// withConverter installs c as DefaultConverter for the duration of the test.
func withConverter(t *testing.T, c UnitConverter) {
	t.Helper()
	old := DefaultConverter
	DefaultConverter = c
	t.Cleanup(func() { DefaultConverter = old })
}

var metric = fakeConverter{
	{"km", "m"}:       1000,
	{"m", "km"}:       0.001,
	{"deg", "radian"}: 0.017453292519943295,
	{"radian", "deg"}: 57.29577951308232,
}

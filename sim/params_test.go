package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tunable carries one parameter of every supported kind.
type tunable struct {
	Base
	on    bool
	count int
	size  uint
	gain  float32
	angle float64
	label string
}

func newTunable() *tunable {
	m := &tunable{angle: 1, label: "x"}
	m.Setup(m, "tune", "test::Tunable", "")
	m.MustRegisterParameter(&m.on, "on", "", "switch")
	m.MustRegisterParameter(&m.count, "count", "", "counter")
	m.MustRegisterParameter(&m.size, "size", "", "size")
	m.MustRegisterParameter(&m.gain, "gain", "", "gain")
	m.MustRegisterParameter(&m.angle, "angle", "radian", "angle")
	m.MustRegisterParameter(&m.label, "label", "", "label")
	return m
}

func TestParameters_KindsAndText(t *testing.T) {
	m := newTunable()

	kinds := map[string]ParamKind{}
	for _, p := range m.Parameters() {
		kinds[p.Name] = p.Kind()
	}
	assert.Equal(t, map[string]ParamKind{
		"on": ParamBool, "count": ParamInt, "size": ParamUint,
		"gain": ParamFloat32, "angle": ParamFloat64, "label": ParamString,
	}, kinds)

	require.NoError(t, m.SetParameterText("on", "true", ""))
	require.NoError(t, m.SetParameterText("count", "41.6", ""))
	require.NoError(t, m.SetParameterText("size", "-3", ""))
	require.NoError(t, m.SetParameterText("label", "hello world", ""))
	assert.True(t, m.on)
	assert.Equal(t, 42, m.count)
	assert.Equal(t, uint(0), m.size)
	assert.Equal(t, "hello world", m.label)

	p, err := m.Parameter("count")
	require.NoError(t, err)
	assert.Equal(t, "42", p.Text())
}

func TestParameters_TypedGetters(t *testing.T) {
	m := newTunable()
	m.count = 3
	m.size = 4

	n, err := m.GetInt("count", "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	u, err := m.GetUint("size", "")
	require.NoError(t, err)
	assert.Equal(t, uint(4), u)
	s, err := m.GetString("label")
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	b, err := m.GetBool("on")
	require.NoError(t, err)
	assert.False(t, b)

	_, err = m.GetString("angle")
	assert.True(t, errors.Is(err, ErrParameterType))
	_, err = m.GetFloat64("label", "")
	assert.True(t, errors.Is(err, ErrParameterType))
	_, err = m.GetInt("size", "")
	assert.True(t, errors.Is(err, ErrParameterType))
	_, err = m.GetBool("missing")
	assert.True(t, errors.Is(err, ErrUnknownParameter))
}

func TestParameters_UnitConversion(t *testing.T) {
	// GIVEN an angle parameter stored in radians
	withConverter(t, metric)
	m := newTunable()

	// WHEN it is set in degrees
	require.NoError(t, m.SetParameter("angle", 180, "deg"))

	// THEN it is stored in radians and can be read back in degrees
	assert.InDelta(t, 3.141592653589793, m.angle, 1e-12)
	deg, err := m.GetFloat64("angle", "deg")
	require.NoError(t, err)
	assert.InDelta(t, 180, deg, 1e-9)

	// AND numeric text honours the unit too
	require.NoError(t, m.SetParameterText("angle", "90", "deg"))
	assert.InDelta(t, 1.5707963267948966, m.angle, 1e-12)

	// AND an unconvertible unit is a type mismatch
	err = m.SetParameter("angle", 1, "km")
	assert.True(t, errors.Is(err, ErrParameterType))
}

func TestParameters_SetRejections(t *testing.T) {
	m := newTunable()
	assert.True(t, errors.Is(m.SetParameter("label", 1, ""), ErrParameterType))
	assert.True(t, errors.Is(m.SetParameter("nope", 1, ""), ErrUnknownParameter))
	assert.True(t, errors.Is(m.SetParameterText("on", "maybe", ""), ErrParameterType))
}

func TestRegisterParameter_Rejections(t *testing.T) {
	m := newTunable()
	var x float64
	var bad int8
	assert.True(t, errors.Is(m.RegisterParameter(&x, "angle", "", ""), ErrDuplicateName))
	assert.True(t, errors.Is(m.RegisterParameter(&bad, "bad", "", ""), ErrParameterType))
	assert.Panics(t, func() { m.MustRegisterParameter(&x, "count", "", "") })
}

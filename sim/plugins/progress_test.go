package plugins

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simblox/simblox/sim"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func TestProgress_ReportsEveryInterval(t *testing.T) {
	// GIVEN a progress plugin reporting every 0.5 simulated seconds
	p := NewProgress(0.5)
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }
	require.NoError(t, p.PostInitialize())

	// WHEN 20 steps of 0.1 s are reported
	for i := 0; i < 20; i++ {
		clock = clock.Add(50 * time.Millisecond)
		require.NoError(t, p.PostUpdate(0.1))
	}

	// THEN four reports were logged and two simulated seconds accumulated
	assert.Equal(t, 4, p.Reports())
	assert.InDelta(t, 2.0, p.SimulatedTime(), 1e-9)
}

func TestProgress_NonPositiveIntervalUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultProgressInterval, NewProgress(0).Interval)
}

func TestRegister_LoadsByName(t *testing.T) {
	// GIVEN a host with the built-ins registered
	h := sim.NewPluginHost()
	Register(h)

	// WHEN progress is loaded twice
	p1, err := h.Load(ProgressName)
	require.NoError(t, err)
	p2, err := h.Load(ProgressName)
	require.NoError(t, err)

	// THEN the same instance is active once
	assert.Same(t, p1, p2)
	assert.Len(t, h.Plugins(), 1)
	assert.Contains(t, h.Available(), ProgressName)
}

func TestProgress_DrivenBySimulation(t *testing.T) {
	// GIVEN an empty simulation of 3 s at 10 Hz with progress loaded
	s := sim.NewSimulation(sim.NewGroup("root"))
	s.SetRealTime(false)
	s.SetEndTime(3)
	require.NoError(t, s.SetFrequency(10))
	Register(s.Plugins())
	pl, err := s.Plugins().Load(ProgressName)
	require.NoError(t, err)

	// WHEN it runs to completion
	_, err = s.Update(3)
	require.NoError(t, err)

	// THEN one report per simulated second was made
	assert.Equal(t, 3, pl.(*Progress).Reports())
}

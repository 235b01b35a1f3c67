package config

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simblox/simblox/sim"
	"github.com/simblox/simblox/sim/internal/testutil"
	"github.com/simblox/simblox/sim/models"
	"github.com/simblox/simblox/sim/plugins"
	_ "github.com/simblox/simblox/sim/units"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func newEnv() (*sim.Factory, *sim.PluginHost) {
	f := models.NewFactory()
	testutil.RegisterRecorder(f)
	h := sim.NewPluginHost()
	plugins.Register(h)
	return f, h
}

func quiet(t *testing.T, s *sim.Simulation) {
	t.Helper()
	dump, ok := sim.FindModel(s.Root(), "dump").(*models.PortDumper)
	require.True(t, ok, "dump model")
	dump.SetWriter(io.Discard)
}

func TestLoad_BothFormatsBuildTheSameTree(t *testing.T) {
	for _, name := range []string{"sine.yaml", "sine.toml"} {
		t.Run(name, func(t *testing.T) {
			// GIVEN the sine document
			doc, err := Load(testutil.TestdataPath(t, name))
			require.NoError(t, err)

			// WHEN it is built
			f, h := newEnv()
			s, err := Build(doc, f, h)
			require.NoError(t, err)
			defer s.Close()

			// THEN the settings and the tree match the document
			assert.False(t, s.RealTime())
			assert.Equal(t, 1.0, s.EndTime())
			assert.Equal(t, 20, s.Frequency())
			assert.Equal(t, sim.TraversalDependent, s.TraversalMode())
			assert.NotNil(t, s.Plugins().Plugin(plugins.ProgressName))
			assert.Equal(t, 4, s.Root().NumChildren())

			gain := sim.FindModel(s.Root(), "stage/gain")
			require.NotNil(t, gain)
			a, err := sim.BaseOf(gain).Port("a")
			require.NoError(t, err)
			assert.True(t, a.IsConnected())
			assert.Equal(t, "/sig.out", sim.PortPath(a.OtherEnd(0), nil))

			sig := sim.FindModel(s.Root(), "sig")
			freq, err := sim.BaseOf(sig).GetFloat64("frequency", "radian/sec")
			require.NoError(t, err)
			assert.InDelta(t, 1.5707963267948966, freq, 1e-12)
		})
	}
}

func TestBuild_RunsToEndTime(t *testing.T) {
	// GIVEN the sine document with a recorder on the gain output
	doc, err := Load(testutil.TestdataPath(t, "sine.yaml"))
	require.NoError(t, err)
	doc.Models.Children = append(doc.Models.Children, sim.Node{Type: testutil.RecorderClass, Name: "rec"})
	doc.Models.Connect = append(doc.Models.Connect, sim.Connection{First: "rec.in", Second: "stage.c"})
	f, h := newEnv()
	s, err := Build(doc, f, h)
	require.NoError(t, err)
	defer s.Close()
	quiet(t, s)

	// WHEN it reaches its end time
	_, err = s.Update(1)
	require.NoError(t, err)

	// THEN 20 steps ran and the last value is 2*sin(pi/2)
	rec := sim.FindModel(s.Root(), "rec").(*testutil.Recorder)
	assert.True(t, s.IsDone())
	require.Len(t, rec.Values, 20)
	assert.InDelta(t, 2.0, rec.Last(), 1e-9)
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"yaml", FormatYAML, "simulation:\n  realtme: true\n"},
		{"toml", FormatTOML, "[simulation]\nrealtme = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownExtension(t *testing.T) {
	path := testutil.WriteTempDoc(t, "sim.json", "{}")
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestApply_StepAndFrequencyConflict(t *testing.T) {
	s := sim.NewSimulation(sim.NewGroup("root"))
	err := Apply(&SimulationNode{Step: 0.1, Frequency: 10}, s)
	assert.True(t, errors.Is(err, sim.ErrConflictingRates))
}

func TestApply_UnknownPlugin(t *testing.T) {
	s := sim.NewSimulation(sim.NewGroup("root"))
	err := Apply(&SimulationNode{Plugins: []string{"nope"}}, s)
	assert.True(t, errors.Is(err, sim.ErrUnknownPlugin))
}

func TestBuild_ReportsEveryBadChild(t *testing.T) {
	// GIVEN two children of unknown types and one good child
	doc, err := Decode([]byte(`
models:
  children:
    - {type: op::Nope, name: x}
    - {type: op::Constant, name: ok}
    - {type: op::Missing, name: y}
`), FormatYAML)
	require.NoError(t, err)

	// WHEN built
	f, h := newEnv()
	_, err = Build(doc, f, h)

	// THEN both failures are reported
	require.Error(t, err)
	assert.True(t, errors.Is(err, sim.ErrUnknownModelType))
	assert.Contains(t, err.Error(), "op::Nope")
	assert.Contains(t, err.Error(), "op::Missing")
}

func TestBuild_RejectsNonGroupRoot(t *testing.T) {
	doc := &Document{Models: sim.Node{Type: models.ConstantClass}}
	f, h := newEnv()
	_, err := Build(doc, f, h)
	assert.Error(t, err)
}

func TestWrite_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			// GIVEN a simulation built from the sine document
			doc, err := Load(testutil.TestdataPath(t, "sine.yaml"))
			require.NoError(t, err)
			f, h := newEnv()
			s, err := Build(doc, f, h)
			require.NoError(t, err)
			defer s.Close()

			// WHEN written, encoded, decoded and built again
			out, err := Write(s)
			require.NoError(t, err)
			data, err := Encode(out, format)
			require.NoError(t, err)
			back, err := Decode(data, format)
			require.NoError(t, err)
			f2, h2 := newEnv()
			s2, err := Build(back, f2, h2)
			require.NoError(t, err)
			defer s2.Close()

			// THEN the rebuilt simulation writes the same document
			again, err := Write(s2)
			require.NoError(t, err)
			assert.Equal(t, out.Simulation, again.Simulation)
			assert.Len(t, again.Models.Children, 4)
			assert.ElementsMatch(t, out.Models.Connect, again.Models.Connect)
			assert.Equal(t, out.Models.Children[2].Ports, again.Models.Children[2].Ports)
		})
	}
}

func TestSave_WritesLoadableFile(t *testing.T) {
	doc := &Document{
		Simulation: SimulationNode{EndTime: 2, Step: 0.5},
		Models: sim.Node{Type: sim.GroupClass, Name: "root", Children: []sim.Node{
			{Type: models.ConstantClass, Name: "c", Params: map[string]any{"value": 3.0}},
		}},
	}
	path := testutil.WriteTempDoc(t, "out.toml", "")
	require.NoError(t, Save(doc, path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, back.Simulation.Step)
	require.Len(t, back.Models.Children, 1)
	assert.Equal(t, 3.0, back.Models.Children[0].Params["value"])
}

func TestEncode_TOMLKeepsFalseFlags(t *testing.T) {
	// GIVEN settings that turn real time and continuous display off
	off := false
	doc := &Document{Simulation: SimulationNode{RealTime: &off, ContinuousDisplay: &off}}

	// WHEN encoded as TOML and decoded again
	data, err := Encode(doc, FormatTOML)
	require.NoError(t, err)
	back, err := Decode(data, FormatTOML)
	require.NoError(t, err)

	// THEN both flags come back as an explicit false
	assert.Contains(t, string(data), "realtime = false")
	require.NotNil(t, back.Simulation.RealTime)
	require.NotNil(t, back.Simulation.ContinuousDisplay)
	assert.False(t, *back.Simulation.RealTime)
	assert.False(t, *back.Simulation.ContinuousDisplay)
}

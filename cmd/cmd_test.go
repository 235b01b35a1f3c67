package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simblox/simblox/sim"
	"github.com/simblox/simblox/sim/config"
	"github.com/simblox/simblox/sim/models"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

const sineDoc = "../testdata/sine.yaml"

func TestWriteModelList_ShowsPortsAndParams(t *testing.T) {
	// GIVEN the built-in factory
	f, _ := newEnvironment()
	var buf bytes.Buffer

	// WHEN the catalogue is written
	require.NoError(t, writeModelList(&buf, f))

	// THEN every class appears with its ports, units and parameters
	out := buf.String()
	for _, id := range f.Identifiers() {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "radian/sec")
	assert.Contains(t, out, "waveform")
	assert.Contains(t, out, "float64")
	assert.Contains(t, out, "Description")
}

func TestWritePluginList(t *testing.T) {
	_, host := newEnvironment()
	var buf bytes.Buffer
	writePluginList(&buf, host)
	assert.Equal(t, "plugin: progress\n", buf.String())
}

func TestWriteTree_DrawsNestedGroups(t *testing.T) {
	// GIVEN the sine document
	s, err := buildSimulation(sineDoc, runOptions{})
	require.NoError(t, err)
	defer s.Close()

	// WHEN the tree is drawn
	var buf bytes.Buffer
	writeTree(&buf, s.Root())

	// THEN nested models appear with their classes
	out := buf.String()
	assert.Contains(t, out, "root (sbx::Group)")
	assert.Contains(t, out, "stage (sbx::Group)")
	assert.Contains(t, out, "gain (op::Multiply)")
	assert.Contains(t, out, "dump (sbx::PortDumper)")
}

func TestBuildSimulation_FlagsOverrideDocument(t *testing.T) {
	// GIVEN overrides for every flag
	on := true
	end := 0.5
	opts := runOptions{realtime: &on, endTime: &end, traversal: "sequential", frequency: 50}

	// WHEN the document is built
	s, err := buildSimulation(sineDoc, opts)
	require.NoError(t, err)
	defer s.Close()

	// THEN the flags win over the document
	assert.True(t, s.RealTime())
	assert.Equal(t, 0.5, s.EndTime())
	assert.Equal(t, sim.TraversalSequential, s.TraversalMode())
	assert.Equal(t, 50, s.Frequency())
}

func TestRunDocument_StatsAndSave(t *testing.T) {
	// GIVEN a faster-than-real-time run with statistics and a save path
	off := false
	save := filepath.Join(t.TempDir(), "out.toml")
	opts := runOptions{realtime: &off, stats: true, save: save}
	var buf bytes.Buffer

	// WHEN the document runs
	require.NoError(t, runDocument(context.Background(), sineDoc, opts, &buf))

	// THEN the timing table lists every model
	out := buf.String()
	assert.Contains(t, out, "Update (ms)")
	assert.Contains(t, out, "  gain")
	assert.Contains(t, out, "steps: 20")

	// AND the saved document builds the same tree
	doc, err := config.Load(save)
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Simulation.EndTime)
	require.Len(t, doc.Models.Children, 4)
	assert.Equal(t, models.PortDumperClass, doc.Models.Children[3].Type)
}

func TestRunDocument_MissingFile(t *testing.T) {
	err := runDocument(context.Background(), "does-not-exist.yaml", runOptions{}, &bytes.Buffer{})
	assert.Error(t, err)
}

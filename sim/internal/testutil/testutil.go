// Package testutil provides shared test infrastructure for the sim packages:
// access to the documents under testdata/, temporary document files and a
// recording model.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/simblox/simblox/sim"
)

// TestdataPath resolves name inside the repository testdata/ directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func TestdataPath(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
}

// WriteTempDoc writes content to a file called name in a fresh temp dir.
func WriteTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// RecorderClass is the factory id of Recorder.
const RecorderClass = "test::Recorder"

// Recorder is an endpoint that keeps every value read from its input "in"
// during Update.
type Recorder struct {
	sim.Base
	in     *sim.InPort[float64]
	Values []float64
	Inits  int
}

func NewRecorder(name string) *Recorder {
	m := &Recorder{in: sim.NewInPort[float64]()}
	m.Setup(m, name, RecorderClass, "Records its input")
	m.MustRegisterPort(m.in, "in", "recorded value")
	return m
}

func (m *Recorder) In() *sim.InPort[float64] { return m.in }
func (m *Recorder) IsEndPoint() bool         { return true }

func (m *Recorder) Init() error {
	m.Values = nil
	m.Inits++
	return nil
}

func (m *Recorder) Update(float64) error {
	v, err := m.in.Get()
	if err != nil {
		return err
	}
	m.Values = append(m.Values, v)
	return nil
}

// Last is the most recent value, or NaN before the first update.
func (m *Recorder) Last() float64 {
	if len(m.Values) == 0 {
		return math.NaN()
	}
	return m.Values[len(m.Values)-1]
}

// RegisterRecorder adds Recorder to f.
func RegisterRecorder(f *sim.Factory) {
	f.Register(RecorderClass, func() sim.Model { return NewRecorder("") })
}

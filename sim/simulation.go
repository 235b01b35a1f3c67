// sim/simulation.go
//
// The fixed-step simulation loop: configure, init, step, update and run.

package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/simblox/simblox/sim/taskpool"
)

// State is the lifecycle stage of a Simulation.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateInitialized
	StateRunning
	StatePaused
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Simulation drives a model tree with a fixed timestep.
type Simulation struct {
	root *Group

	configureVisitor *ConfigureVisitor
	initVisitor      *InitVisitor
	updateVisitor    *UpdateVisitor
	displayVisitor   *DisplayVisitor

	plugins *PluginHost
	pool    *taskpool.Pool
	ownPool bool

	time         float64 // simulated time in seconds
	carry        float64 // time passed to Update not yet consumed by a step
	timeStep     float64 // fixed step in seconds
	explicitStep bool    // timestep chosen by the caller rather than the models
	maxTimeStep  float64 // 1 / highest model minimum frequency, 0 if unbounded
	endTime      float64 // stop once reached; 0 runs forever

	configured        bool
	initialized       bool
	running           bool
	done              bool
	paused            bool
	realtime          bool
	continuousDisplay bool

	startWall   time.Time
	ratio       float64 // timestep / wall time of the last step
	ratioSum    float64
	ratioAvg    float64
	ratioCount  uint64
	ratioWindow uint64 // steps per averaging window, 0 for a cumulative average

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSimulation returns a real-time simulation of root with continuous
// display and the default timestep.
func NewSimulation(root *Group) *Simulation {
	return &Simulation{
		root:              root,
		configureVisitor:  NewConfigureVisitor(),
		initVisitor:       NewInitVisitor(),
		updateVisitor:     NewUpdateVisitor(),
		displayVisitor:    NewDisplayVisitor(),
		plugins:           NewPluginHost(),
		timeStep:          1.0 / DefaultFrequency,
		realtime:          true,
		continuousDisplay: true,
		now:               time.Now,
		sleep:             time.Sleep,
	}
}

func (s *Simulation) Root() *Group { return s.root }

// SetRoot replaces the model tree; the next step configures and initializes it.
func (s *Simulation) SetRoot(root *Group) {
	s.root = root
	s.configured = false
	s.initialized = false
	s.done = false
}

func (s *Simulation) Plugins() *PluginHost { return s.plugins }

func (s *Simulation) SetPlugins(h *PluginHost) { s.plugins = h }

func (s *Simulation) ConfigureVisitor() *ConfigureVisitor { return s.configureVisitor }
func (s *Simulation) InitVisitor() *InitVisitor           { return s.initVisitor }
func (s *Simulation) UpdateVisitor() *UpdateVisitor       { return s.updateVisitor }
func (s *Simulation) DisplayVisitor() *DisplayVisitor     { return s.displayVisitor }

// SetClock replaces the wall clock used for pacing and statistics.
func (s *Simulation) SetClock(now func() time.Time, sleep func(time.Duration)) {
	s.now = now
	s.sleep = sleep
}

// SetTraversalMode applies mode to the init and update visitors. Parallel
// mode shares one pool between them, started on demand.
func (s *Simulation) SetTraversalMode(mode TraversalMode) {
	if mode == TraversalParallel && s.pool == nil {
		s.SetPool(taskpool.New(DefaultPoolSize))
		s.pool.Start()
		s.ownPool = true
	}
	s.initVisitor.SetMode(mode)
	s.updateVisitor.SetMode(mode)
}

func (s *Simulation) TraversalMode() TraversalMode { return s.updateVisitor.Mode() }

// SetPool hands a caller-owned pool to the visitors.
func (s *Simulation) SetPool(p *taskpool.Pool) {
	s.closePool()
	s.pool = p
	s.initVisitor.SetPool(p)
	s.updateVisitor.SetPool(p)
	s.displayVisitor.SetPool(p)
}

func (s *Simulation) closePool() {
	if s.pool != nil && s.ownPool {
		s.pool.SetDone()
		s.pool.WaitDone()
	}
	s.pool = nil
	s.ownPool = false
}

// Close stops worker pools started by the simulation or its visitors.
func (s *Simulation) Close() {
	s.configureVisitor.Close()
	s.initVisitor.Close()
	s.updateVisitor.Close()
	s.displayVisitor.Close()
	s.closePool()
}

// SetStatistics enables per-model timing in the init and update visitors.
func (s *Simulation) SetStatistics(on bool) {
	s.initVisitor.SetStatistics(on)
	s.updateVisitor.SetStatistics(on)
}

func (s *Simulation) State() State {
	switch {
	case s.done:
		return StateDone
	case s.paused:
		return StatePaused
	case s.running:
		return StateRunning
	case s.initialized:
		return StateInitialized
	case s.configured:
		return StateConfigured
	}
	return StateUnconfigured
}

func (s *Simulation) Time() float64            { return s.time }
func (s *Simulation) TimeStep() float64        { return s.timeStep }
func (s *Simulation) MaximumTimeStep() float64 { return s.maxTimeStep }
func (s *Simulation) Frequency() int           { return s.updateVisitor.Frequency() }
func (s *Simulation) EndTime() float64         { return s.endTime }
func (s *Simulation) SetEndTime(t float64)     { s.endTime = t }
func (s *Simulation) RealTime() bool           { return s.realtime }
func (s *Simulation) SetRealTime(on bool)      { s.realtime = on }
func (s *Simulation) IsPaused() bool           { return s.paused }
func (s *Simulation) SetPaused(on bool)        { s.paused = on }
func (s *Simulation) IsDone() bool             { return s.done }
func (s *Simulation) SetDone(on bool)          { s.done = on }
func (s *Simulation) IsConfigured() bool       { return s.configured }
func (s *Simulation) IsInitialized() bool      { return s.initialized }
func (s *Simulation) ContinuousDisplay() bool  { return s.continuousDisplay }

func (s *Simulation) SetContinuousDisplay(on bool) { s.continuousDisplay = on }

// SetTimeStep fixes the step length in seconds. The models' requested
// frequency no longer applies. After Init the step is clamped to what the
// models can tolerate.
func (s *Simulation) SetTimeStep(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTimestep, dt)
	}
	s.explicitStep = true
	if !s.initialized {
		// clamped to the models' minimum frequency in Init
		s.updateVisitor.SetTimeStep(dt)
		s.displayVisitor.SetTimeStep(dt)
		s.timeStep = s.updateVisitor.TimeStep()
		return nil
	}
	s.applyTimeStep(dt)
	return nil
}

// SetFrequency is SetTimeStep(1/freq).
func (s *Simulation) SetFrequency(freq int) error {
	if freq <= 0 {
		return fmt.Errorf("%w: frequency %d", ErrInvalidTimestep, freq)
	}
	return s.SetTimeStep(1 / float64(freq))
}

func (s *Simulation) applyTimeStep(dt float64) {
	if s.maxTimeStep > 0 && dt > s.maxTimeStep {
		logrus.Warnf("timestep %.4g s is too long for the models, using %.4g s", dt, s.maxTimeStep)
		dt = s.maxTimeStep
	}
	s.updateVisitor.SetTimeStep(dt)
	s.displayVisitor.SetTimeStep(dt)
	s.timeStep = s.updateVisitor.TimeStep()
}

// Configure runs the configure visitor over the tree.
func (s *Simulation) Configure() error {
	if s.root != nil {
		if err := s.configureVisitor.Visit(s.root); err != nil {
			return err
		}
	}
	s.configured = true
	logrus.Infof("configured %d models", countModels(s.root))
	return nil
}

func countModels(g *Group) int {
	if g == nil {
		return 0
	}
	n := 0
	g.eachDescendant(func(Model) { n++ })
	return n
}

// Init resets time, initializes every model and picks the timestep: the
// caller's, else the highest frequency requested by a model, else
// DefaultFrequency.
func (s *Simulation) Init() error {
	s.configureVisitor.Reset()
	s.initVisitor.Reset()
	s.updateVisitor.Reset()
	s.displayVisitor.Reset()

	if !s.configured {
		if err := s.Configure(); err != nil {
			return err
		}
	}

	s.time = 0
	s.carry = 0
	s.done = false
	s.startWall = time.Time{}
	s.ClearAverageRealTimeRatio()

	if err := s.plugins.PreInitialize(); err != nil {
		return fmt.Errorf("plugin pre-initialize: %w", err)
	}
	if s.root != nil {
		if err := s.initVisitor.Visit(s.root); err != nil {
			return err
		}
	}

	s.maxTimeStep = 0
	if mf := s.initVisitor.MinimumFrequency(); mf > 0 {
		s.maxTimeStep = 1 / float64(mf)
	}
	dt := s.timeStep
	if !s.explicitStep {
		dt = 1.0 / DefaultFrequency
		if rf := s.initVisitor.RequestedFrequency(); rf > 0 {
			dt = 1 / float64(rf)
		}
	}
	s.applyTimeStep(dt)
	s.initialized = true
	logrus.Infof("initialized: timestep %.4g s (%d Hz)", s.timeStep, s.Frequency())

	if err := s.plugins.PostInitialize(); err != nil {
		return fmt.Errorf("plugin post-initialize: %w", err)
	}
	return s.Display(DisplayInitial)
}

// Display runs the display visitor in mode.
func (s *Simulation) Display(mode DisplayMode) error {
	if s.root == nil {
		return nil
	}
	return s.displayVisitor.VisitMode(s.root, mode)
}

// Step advances the simulation by one timestep and returns the wall time
// it took. A paused simulation only calls the plugins' pause hook.
func (s *Simulation) Step() (time.Duration, error) {
	if s.done {
		return 0, nil
	}
	if !s.initialized {
		if err := s.Init(); err != nil {
			return 0, err
		}
	}

	start := s.now()
	if s.startWall.IsZero() {
		s.startWall = start
	}
	dt := s.timeStep

	if s.paused {
		err := s.plugins.PauseUpdate(dt)
		return s.now().Sub(start), err
	}

	if err := s.plugins.PreUpdate(dt); err != nil {
		return 0, fmt.Errorf("plugin pre-update: %w", err)
	}
	if s.root != nil {
		if err := s.updateVisitor.Visit(s.root); err != nil {
			return 0, err
		}
		if s.continuousDisplay {
			if err := s.Display(DisplayContinuous); err != nil {
				return 0, err
			}
		}
	}
	if err := s.plugins.PostUpdate(dt); err != nil {
		return 0, fmt.Errorf("plugin post-update: %w", err)
	}

	s.time += dt
	if s.endReached() {
		if err := s.Display(DisplayFinal); err != nil {
			return 0, err
		}
		s.done = true
		logrus.Infof("finished at t=%.4g s after %s wall time", s.time, s.RealTimeSinceStart())
	}

	elapsed := s.now().Sub(start)
	s.recordRatio(dt, elapsed)
	return elapsed, nil
}

// endReached reports whether time is within half a step of a set end time.
func (s *Simulation) endReached() bool {
	return s.endTime > 0 && s.time+s.timeStep/2 >= s.endTime
}

// Update consumes dt seconds in whole timesteps and keeps the remainder
// for the next call.
func (s *Simulation) Update(dt float64) (time.Duration, error) {
	if !s.initialized {
		if err := s.Init(); err != nil {
			return 0, err
		}
	}
	if s.paused {
		return s.Step()
	}
	s.carry += dt
	var total time.Duration
	// tolerate the rounding of summed float steps
	for !s.done && s.carry+s.timeStep*1e-9 >= s.timeStep {
		d, err := s.Step()
		total += d
		if err != nil {
			return total, err
		}
		s.carry -= s.timeStep
	}
	return total, nil
}

// Run steps until done or ctx ends. A finished simulation whose end time
// was moved later resumes from its current time. In real-time mode every
// step is padded to the timestep; overruns are remembered and taken out of
// later steps.
func (s *Simulation) Run(ctx context.Context) error {
	if !s.initialized {
		if err := s.Init(); err != nil {
			return err
		}
	}
	if s.done && !s.endReached() {
		s.done = false
	}
	s.running = true
	defer func() { s.running = false }()

	var makeup time.Duration
	for !s.done {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := time.Duration(s.timeStep * float64(time.Second))
		start := s.now()
		if _, err := s.Update(s.timeStep); err != nil {
			return err
		}
		if !s.realtime {
			continue
		}
		elapsed := s.now().Sub(start)
		if wait := step - makeup - elapsed; wait > 0 {
			s.sleep(wait)
			elapsed = s.now().Sub(start)
		}
		makeup += elapsed - step
	}
	return nil
}

// RealTimeSinceStart is the wall time since the first step after Init.
func (s *Simulation) RealTimeSinceStart() time.Duration {
	if s.startWall.IsZero() {
		return 0
	}
	return s.now().Sub(s.startWall)
}

func (s *Simulation) recordRatio(dt float64, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	s.ratio = dt / elapsed.Seconds()
	s.ratioSum += s.ratio
	s.ratioCount++
	s.ratioAvg = s.ratioSum / float64(s.ratioCount)
	if s.ratioWindow > 0 && s.ratioCount >= s.ratioWindow {
		s.ratioSum = 0
		s.ratioCount = 0
	}
}

// RealTimeRatio is simulated over wall time for the last step. Below one
// the simulation is slower than real time.
func (s *Simulation) RealTimeRatio() float64 { return s.ratio }

// AverageRealTimeRatio averages RealTimeRatio over the current window.
func (s *Simulation) AverageRealTimeRatio() float64 { return s.ratioAvg }

// SetAverageRealTimeRatioSteps sets the averaging window; 0 averages over
// all steps.
func (s *Simulation) SetAverageRealTimeRatioSteps(n uint64) {
	s.ratioWindow = n
	s.ClearAverageRealTimeRatio()
}

func (s *Simulation) AverageRealTimeRatioSteps() uint64 { return s.ratioWindow }

func (s *Simulation) ClearAverageRealTimeRatio() {
	s.ratio = 0
	s.ratioSum = 0
	s.ratioAvg = 0
	s.ratioCount = 0
}

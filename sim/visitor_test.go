package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simblox/simblox/sim/taskpool"
)

func TestParseTraversalMode(t *testing.T) {
	mode, err := ParseTraversalMode(" Parallel ")
	require.NoError(t, err)
	assert.Equal(t, TraversalParallel, mode)
	assert.Equal(t, "dependent", TraversalDependent.String())

	_, err = ParseTraversalMode("random")
	assert.Error(t, err)
}

// a -> b -> c with c the only endpoint, listed in reverse order.
func reversedChain(log *callLog) (*Group, *relay, *relay, *relay) {
	a, b, c := newRelay("a", log), newRelay("b", log), newEndpoint("c", log)
	_ = b.in.Connect(a.out)
	_ = c.in.Connect(b.out)
	g := NewGroup("root")
	_ = g.AddChild(c)
	_ = g.AddChild(b)
	_ = g.AddChild(a)
	return g, a, b, c
}

func TestUpdateVisitor_SequentialFollowsContainerOrder(t *testing.T) {
	log := &callLog{}
	root, _, _, c := reversedChain(log)
	v := NewUpdateVisitor()
	v.SetMode(TraversalSequential)

	require.NoError(t, v.Visit(root))

	assert.Equal(t, []string{"update c", "update b", "update a"}, log.list())
	assert.Equal(t, []float64{0}, c.seen)
}

func TestUpdateVisitor_DependentUpdatesProvidersFirst(t *testing.T) {
	// GIVEN a chain listed against its data flow
	log := &callLog{}
	root, _, b, c := reversedChain(log)
	v := NewUpdateVisitor()

	// WHEN visited in dependent mode
	require.NoError(t, v.Visit(root))

	// THEN values flow through in a single step
	assert.Equal(t, []string{"update a", "update b", "update c"}, log.list())
	assert.Equal(t, []float64{1}, b.seen)
	assert.Equal(t, []float64{2}, c.seen)
	assert.Equal(t, uint64(1), v.VisitCount())
}

func TestUpdateVisitor_DependentPrunesModelsWithoutEndpoint(t *testing.T) {
	log := &callLog{}
	a, b := newRelay("a", log), newRelay("b", log)
	chain(t, a, b)
	lone := newEndpoint("lone", log)
	root := groupOf(t, "root", a, b, lone)
	v := NewUpdateVisitor()

	require.NoError(t, v.Visit(root))

	assert.Equal(t, []string{"update lone"}, log.list())
	assert.False(t, v.IsVisited(a))
	assert.True(t, v.IsVisited(root))
}

func TestUpdateVisitor_StrongCycleFails(t *testing.T) {
	a, b := newEndpoint("a", nil), newEndpoint("b", nil)
	chain(t, a, b)
	require.NoError(t, a.in.Connect(b.out))
	root := groupOf(t, "root", a, b)

	err := NewUpdateVisitor().Visit(root)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyCycle))
	var se *SchedulingError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Model, "/a")
}

func TestUpdateVisitor_LooseInputBreaksCycle(t *testing.T) {
	// GIVEN a <-> b where a reads b through a loose input
	log := &callLog{}
	a, b := newEndpoint("a", log), newEndpoint("b", log)
	chain(t, a, b)
	require.NoError(t, a.in.Connect(b.out))
	a.in.SetLoose(true)
	root := groupOf(t, "root", b, a)

	// WHEN visited
	require.NoError(t, NewUpdateVisitor().Visit(root))

	// THEN a goes first and sees b's previous output
	assert.Equal(t, []string{"update a", "update b"}, log.list())
	assert.Equal(t, []float64{0}, a.seen)
}

func TestUpdateVisitor_SelfLoopIsNotACycle(t *testing.T) {
	m := newEndpoint("m", nil)
	require.NoError(t, m.in.Connect(m.out))
	root := groupOf(t, "root", m)
	v := NewUpdateVisitor()

	require.NoError(t, v.Visit(root))
	require.NoError(t, v.Visit(root))

	assert.Equal(t, []float64{0, 1}, m.seen)
}

func TestUpdateVisitor_SlowModelRunsEveryNthVisit(t *testing.T) {
	// GIVEN a 10 Hz model in a 20 Hz visitor
	m := newEndpoint("slow", nil)
	require.NoError(t, m.SetUpdateFrequency(10))
	root := groupOf(t, "root", m)
	v := NewUpdateVisitor()
	v.SetFrequency(20)

	// WHEN visited four times
	for i := 0; i < 4; i++ {
		require.NoError(t, v.Visit(root))
	}

	// THEN it was updated twice with its own timestep
	assert.Equal(t, 2, m.updates)
	assert.InDeltaSlice(t, []float64{0.1, 0.1}, m.dts, 1e-12)
}

func TestUpdateVisitor_FastModelSubSteps(t *testing.T) {
	m := newEndpoint("fast", nil)
	require.NoError(t, m.SetUpdateFrequency(20))
	root := groupOf(t, "root", m)
	v := NewUpdateVisitor()
	v.SetFrequency(10)

	require.NoError(t, v.Visit(root))

	assert.InDeltaSlice(t, []float64{0.05, 0.05}, m.dts, 1e-12)
}

func TestUpdateVisitor_UnevenFrequencyFails(t *testing.T) {
	m := newEndpoint("odd", nil)
	require.NoError(t, m.SetUpdateFrequency(25))
	root := groupOf(t, "root", m)
	v := NewUpdateVisitor()
	v.SetFrequency(10)

	err := v.Visit(root)

	var se *SchedulingError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, ErrUnevenFrequency))
	assert.Equal(t, 25, se.Frequency)
	assert.Equal(t, 10, se.Base)
	assert.Equal(t, 0, m.updates)
	assert.Equal(t, uint64(0), v.VisitCount())
}

func TestUpdateVisitor_TimeStepRoundsToFrequency(t *testing.T) {
	v := NewUpdateVisitor()
	assert.Equal(t, DefaultFrequency, v.Frequency())

	v.SetTimeStep(0.0333)
	assert.Equal(t, 30, v.Frequency())
	v.SetTimeStep(-1)
	v.SetFrequency(0)
	assert.Equal(t, 30, v.Frequency())
}

func TestUpdateVisitor_ParallelUpdatesEveryModel(t *testing.T) {
	// GIVEN three endpoints and a shared two-worker pool
	ms := []*relay{newEndpoint("a", nil), newEndpoint("b", nil), newEndpoint("c", nil)}
	root := groupOf(t, "root", ms[0], ms[1], ms[2])
	pool := taskpool.New(2)
	pool.Start()
	defer func() {
		pool.SetDone()
		pool.WaitDone()
	}()
	v := NewUpdateVisitor()
	v.SetMode(TraversalParallel)
	v.SetPool(pool)

	// WHEN visited
	require.NoError(t, v.Visit(root))

	// THEN every hook ran on the pool before Visit returned
	for _, m := range ms {
		assert.Equal(t, 1, m.updates, m.Name())
	}
	assert.Equal(t, uint64(4), pool.TaskCount())
	assert.Equal(t, 0, pool.NumScheduled())

	// AND closing the visitor leaves a shared pool running
	v.Close()
	assert.False(t, pool.IsDone())
}

func TestUpdateVisitor_ParallelCollectsErrors(t *testing.T) {
	errA, errB := errors.New("a broke"), errors.New("b broke")
	a, b, c := newEndpoint("a", nil), newEndpoint("b", nil), newEndpoint("c", nil)
	a.failWith, b.failWith = errA, errB
	root := groupOf(t, "root", a, b, c)
	v := NewUpdateVisitor()
	v.SetMode(TraversalParallel)
	defer v.Close()

	err := v.Visit(root)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errB))
	assert.Equal(t, 1, c.updates)
	assert.NotNil(t, v.Pool())

	b.failWith = nil
	err = v.Visit(root)
	assert.Equal(t, errA, err)
}

func TestTraverser_Statistics(t *testing.T) {
	root := groupOf(t, "root", newEndpoint("a", nil), newEndpoint("b", nil))
	v := NewUpdateVisitor()
	v.SetStatistics(true)

	require.NoError(t, v.Visit(root))

	assert.Len(t, v.Statistics(), 3)
	assert.GreaterOrEqual(t, v.TotalTime().Nanoseconds(), int64(0))
	v.Reset()
	assert.Empty(t, v.Statistics())
	assert.Equal(t, uint64(0), v.VisitCount())
}

func TestInitVisitor_CollectsFrequencies(t *testing.T) {
	a, b := newEndpoint("a", nil), newEndpoint("b", nil)
	a.minFreq = 5
	require.NoError(t, a.SetUpdateFrequency(40))
	require.NoError(t, b.SetUpdateFrequency(10))
	pruned := newRelay("pruned", nil)
	require.NoError(t, pruned.SetUpdateFrequency(100))
	root := groupOf(t, "root", a, b, pruned)
	v := NewInitVisitor()

	require.NoError(t, v.Visit(root))

	assert.Equal(t, 5, v.MinimumFrequency())
	assert.Equal(t, 40, v.RequestedFrequency())
	assert.Equal(t, 1, a.inits)
	assert.Equal(t, 0, pruned.inits)

	v.Reset()
	assert.Equal(t, -1, v.MinimumFrequency())
	assert.Equal(t, -1, v.RequestedFrequency())
}

func TestInitVisitor_WrapsModelError(t *testing.T) {
	boom := errors.New("boom")
	m := newEndpoint("m", nil)
	m.failWith = boom

	err := NewInitVisitor().Visit(groupOf(t, "root", m))

	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "initializing m")
}

func TestConfigureVisitor_ConfiguresEveryModelOnce(t *testing.T) {
	log := &callLog{}
	a, b := newRelay("a", log), newRelay("b", log)
	inner := groupOf(t, "inner", b)
	root := groupOf(t, "root", a, inner)

	require.NoError(t, NewConfigureVisitor().Visit(root))

	assert.Equal(t, []string{"configure a", "configure b"}, log.list())
}

func TestDisplayVisitor_Modes(t *testing.T) {
	// GIVEN a 10 Hz endpoint, a pruned relay and a 20 Hz display visitor
	m := newEndpoint("m", nil)
	require.NoError(t, m.SetUpdateFrequency(10))
	idle := newRelay("idle", nil)
	root := groupOf(t, "root", m, idle)
	v := NewDisplayVisitor()
	v.SetMode(TraversalDependent)
	v.SetFrequency(20)

	// WHEN displayed initially, continuously four times, then finally
	require.NoError(t, v.VisitMode(root, DisplayInitial))
	for i := 0; i < 4; i++ {
		require.NoError(t, v.VisitMode(root, DisplayContinuous))
	}
	require.NoError(t, v.VisitMode(root, DisplayFinal))

	// THEN initial and final reach everything, continuous follows the schedule
	assert.Equal(t, []DisplayMode{DisplayInitial, DisplayContinuous, DisplayContinuous, DisplayFinal}, m.displays)
	assert.Equal(t, []DisplayMode{DisplayInitial, DisplayFinal}, idle.displays)
	assert.Equal(t, DisplayFinal, v.CurrentMode())
}

func TestCallbackVisitor_Order(t *testing.T) {
	a, b := newRelay("a", nil), newRelay("b", nil)
	inner := groupOf(t, "inner", b)
	root := groupOf(t, "root", a, inner)
	var calls []string
	cb := CallbackFuncs{
		OnEnter: func(g *Group) error { calls = append(calls, "enter "+g.Name()); return nil },
		OnModel: func(m Model) error { calls = append(calls, m.Name()); return nil },
		OnGroup: func(g *Group) error { calls = append(calls, "leave "+g.Name()); return nil },
	}

	require.NoError(t, NewCallbackVisitor(cb).Visit(root))

	assert.Equal(t, []string{"enter root", "a", "enter inner", "b", "leave inner", "leave root"}, calls)
}

func TestCallbackVisitor_StopsOnError(t *testing.T) {
	root := groupOf(t, "root", newRelay("a", nil), newRelay("b", nil))
	stop := errors.New("stop")
	var seen []string
	cb := CallbackFuncs{OnModel: func(m Model) error {
		seen = append(seen, m.Name())
		return stop
	}}

	err := NewCallbackVisitor(cb).Visit(root)

	assert.Equal(t, stop, err)
	assert.Equal(t, []string{"a"}, seen)
}

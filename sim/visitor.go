package sim

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/simblox/simblox/sim/taskpool"
)

// TraversalMode selects how a visitor walks the model tree.
type TraversalMode int

const (
	// TraversalSequential visits children in container order.
	TraversalSequential TraversalMode = iota
	// TraversalDependent visits providers before their dependants and skips
	// models that cannot reach an endpoint.
	TraversalDependent
	// TraversalParallel runs the hooks of one visit on a worker pool and
	// waits for all of them before returning.
	TraversalParallel
)

// DefaultPoolSize is the number of workers a visitor starts when it needs a
// pool and none was provided.
const DefaultPoolSize = 4

var traversalNames = map[string]TraversalMode{
	"sequential": TraversalSequential,
	"dependent":  TraversalDependent,
	"parallel":   TraversalParallel,
}

func (m TraversalMode) String() string {
	for name, mode := range traversalNames {
		if mode == m {
			return name
		}
	}
	return fmt.Sprintf("TraversalMode(%d)", int(m))
}

// ParseTraversalMode accepts "sequential", "dependent" or "parallel".
func ParseTraversalMode(s string) (TraversalMode, error) {
	mode, ok := traversalNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown traversal mode %q", s)
	}
	return mode, nil
}

// Visitor is an algorithm applied over a model tree. The visitors of this
// package embed Traverser, which implements the walk itself.
type Visitor interface {
	Apply(m Model) error
	ApplyGroup(g *Group) error
	traverser() *Traverser
}

// Traverser holds the per-visit state shared by all visitors: the visited
// set, the traversal mode, the visit counter, the optional worker pool and
// the optional timing statistics.
type Traverser struct {
	mode TraversalMode

	visited map[Model]bool
	active  map[Model]bool // providers being resolved, for cycle detection
	reach   map[Model]bool // endpoint reachability, memoised per visit
	noPrune bool
	visits  uint64

	pool    *taskpool.Pool
	ownPool bool
	errMu   sync.Mutex
	waveErr *multierror.Error

	stats   bool
	statsMu sync.Mutex
	times   map[Model]time.Duration
	total   time.Duration
}

func (t *Traverser) traverser() *Traverser { return t }

func (t *Traverser) Mode() TraversalMode        { return t.mode }
func (t *Traverser) SetMode(mode TraversalMode) { t.mode = mode }

// VisitCount is the number of completed visits since the last Reset.
func (t *Traverser) VisitCount() uint64 { return t.visits }

// IsVisited reports whether m was applied during the current or last visit.
func (t *Traverser) IsVisited(m Model) bool { return t.visited[m] }

// Reset zeroes the visit counter and the statistics.
func (t *Traverser) Reset() {
	t.visits = 0
	t.statsMu.Lock()
	t.times = nil
	t.total = 0
	t.statsMu.Unlock()
}

// SetPool shares a worker pool with the visitor. Without one, the first
// parallel visit starts a private pool of DefaultPoolSize workers.
func (t *Traverser) SetPool(p *taskpool.Pool) {
	t.Close()
	t.pool = p
	t.ownPool = false
}

func (t *Traverser) Pool() *taskpool.Pool { return t.pool }

// Close stops a pool the visitor started itself.
func (t *Traverser) Close() {
	if t.pool != nil && t.ownPool {
		t.pool.SetDone()
		t.pool.WaitDone()
		t.pool = nil
		t.ownPool = false
	}
}

func (t *Traverser) ensurePool() *taskpool.Pool {
	if t.pool == nil {
		t.pool = taskpool.New(DefaultPoolSize)
		t.pool.Start()
		t.ownPool = true
	}
	return t.pool
}

// SetStatistics enables per-model timing of hook calls.
func (t *Traverser) SetStatistics(on bool) { t.stats = on }

func (t *Traverser) StatisticsEnabled() bool { return t.stats }

// Statistics returns the accumulated hook time per model.
func (t *Traverser) Statistics() map[Model]time.Duration {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return maps.Clone(t.times)
}

// TotalTime is the time spent in hooks across all models.
func (t *Traverser) TotalTime() time.Duration {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.total
}

func (t *Traverser) record(m Model, d time.Duration) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	if t.times == nil {
		t.times = make(map[Model]time.Duration)
	}
	t.times[m] += d
	t.total += d
}

func (t *Traverser) timed(m Model, fn func() error) error {
	if !t.stats {
		return fn()
	}
	start := time.Now()
	err := fn()
	t.record(m, time.Since(start))
	return err
}

// run calls fn for m now, or queues it on the pool in parallel mode.
func (t *Traverser) run(m Model, fn func() error) error {
	if t.mode != TraversalParallel {
		return t.timed(m, fn)
	}
	t.pool.Schedule(func() {
		if err := t.timed(m, fn); err != nil {
			t.errMu.Lock()
			t.waveErr = multierror.Append(t.waveErr, err)
			t.errMu.Unlock()
		}
	})
	return nil
}

// reachesEndpoint memoises HasEndPointDependants for the current visit.
func (t *Traverser) reachesEndpoint(m Model) bool {
	if r, ok := t.reach[m]; ok {
		return r
	}
	r := endpointReachable(m, make(map[Model]bool))
	t.reach[m] = r
	return r
}

// Visit walks root with v. In parallel mode the hooks of the whole wave are
// queued while the pool is inhibited, then released and awaited.
func Visit(v Visitor, root Model) error {
	t := v.traverser()
	t.visited = make(map[Model]bool)
	t.active = make(map[Model]bool)
	t.reach = make(map[Model]bool)

	if t.mode == TraversalParallel {
		t.ensurePool().SetInhibit(true)
		t.waveErr = nil
	}

	err := accept(v, root)

	if t.mode == TraversalParallel {
		t.pool.SetInhibit(false)
		t.pool.Wait()
		t.errMu.Lock()
		if t.waveErr != nil {
			if err == nil && len(t.waveErr.Errors) == 1 {
				err = t.waveErr.Errors[0]
			} else {
				err = multierror.Append(err, t.waveErr.Errors...)
			}
			t.waveErr = nil
		}
		t.errMu.Unlock()
	}
	if err != nil {
		return err
	}
	t.visits++
	return nil
}

func accept(v Visitor, m Model) error {
	if g := m.AsGroup(); g != nil {
		return v.ApplyGroup(g)
	}
	t := v.traverser()
	if t.mode != TraversalDependent || t.noPrune || m.IsEndPoint() || t.reachesEndpoint(m) {
		return v.Apply(m)
	}
	logrus.Tracef("pruned %s: no endpoint downstream", m.Name())
	return nil
}

// traverseProviders applies v to every strong provider of m first.
func traverseProviders(v Visitor, m Model) error {
	t := v.traverser()
	if t.mode != TraversalDependent {
		return nil
	}
	t.active[m] = true
	defer delete(t.active, m)
	for _, p := range m.base().DataProviders() {
		if p == m || m.base().DependsLooselyOn(p) {
			continue
		}
		if t.active[p] {
			return &SchedulingError{Err: ErrDependencyCycle, Model: m.base().Path(nil) + " <- " + p.base().Path(nil)}
		}
		if err := accept(v, p); err != nil {
			return err
		}
	}
	return nil
}

func traverseChildren(v Visitor, g *Group) error {
	for _, c := range g.children {
		if err := accept(v, c); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureVisitor calls Configure once per model, sequentially.
type ConfigureVisitor struct {
	Traverser
}

func NewConfigureVisitor() *ConfigureVisitor {
	v := &ConfigureVisitor{}
	v.mode = TraversalSequential
	return v
}

func (v *ConfigureVisitor) Visit(root Model) error { return Visit(v, root) }

func (v *ConfigureVisitor) Apply(m Model) error {
	if v.visited[m] {
		return nil
	}
	if err := traverseProviders(v, m); err != nil {
		return err
	}
	if err := v.run(m, m.Configure); err != nil {
		return fmt.Errorf("configuring %s: %w", m.Name(), err)
	}
	v.visited[m] = true
	return nil
}

func (v *ConfigureVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	return v.Apply(g)
}

// InitVisitor calls Init once per model and collects the highest minimum
// and requested update frequencies of the tree.
type InitVisitor struct {
	Traverser
	minFreq int
	reqFreq int
}

func NewInitVisitor() *InitVisitor {
	v := &InitVisitor{minFreq: -1, reqFreq: -1}
	v.mode = TraversalDependent
	return v
}

func (v *InitVisitor) Visit(root Model) error { return Visit(v, root) }

// Reset also forgets the collected frequencies.
func (v *InitVisitor) Reset() {
	v.Traverser.Reset()
	v.minFreq = -1
	v.reqFreq = -1
}

// MinimumFrequency is the highest MinimumUpdateFrequency seen, -1 if none.
func (v *InitVisitor) MinimumFrequency() int { return v.minFreq }

// RequestedFrequency is the highest UpdateFrequency seen, -1 if none.
func (v *InitVisitor) RequestedFrequency() int { return v.reqFreq }

func (v *InitVisitor) Apply(m Model) error {
	if v.visited[m] {
		return nil
	}
	if err := traverseProviders(v, m); err != nil {
		return err
	}
	v.minFreq = max(v.minFreq, m.MinimumUpdateFrequency())
	v.reqFreq = max(v.reqFreq, m.base().UpdateFrequency())
	logrus.Debugf("init %s", m.base().Path(nil))
	if err := v.run(m, m.Init); err != nil {
		return fmt.Errorf("initializing %s: %w", m.Name(), err)
	}
	v.visited[m] = true
	return nil
}

func (v *InitVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	return v.Apply(g)
}

// DefaultFrequency is the base rate used when neither the caller nor any
// model asks for one.
const DefaultFrequency = 30

// rated is the multi-rate schedule shared by the update and display visitors.
type rated struct {
	frequency int
}

func (r *rated) Frequency() int { return r.frequency }

// SetFrequency sets the base rate in Hz. Non-positive rates are ignored.
func (r *rated) SetFrequency(freq int) {
	if freq > 0 {
		r.frequency = freq
	}
}

// TimeStep is 1/Frequency in seconds.
func (r *rated) TimeStep() float64 { return 1 / float64(r.frequency) }

// SetTimeStep sets the base rate to the nearest integer rate for dt.
func (r *rated) SetTimeStep(dt float64) {
	if dt > 0 {
		r.SetFrequency(max(1, int(1/dt+0.5)))
	}
}

// schedule fires hook for m according to its requested rate against the
// base rate: every visit, several sub-steps per visit, or every r-th visit.
func (r *rated) schedule(t *Traverser, m Model, hook func(dt float64) error) error {
	base := r.frequency
	f := m.base().UpdateFrequency()
	switch {
	case f == 0 || f == base:
		return t.run(m, func() error { return hook(1 / float64(base)) })

	case f > base:
		ratio := float64(f) / float64(base)
		steps := int(ratio + 0.5)
		if float64(steps) != ratio {
			return &SchedulingError{Err: ErrUnevenFrequency, Model: m.Name(), Frequency: f, Base: base}
		}
		dt := 1 / float64(base*steps)
		return t.run(m, func() error {
			for i := 0; i < steps; i++ {
				if err := hook(dt); err != nil {
					return err
				}
			}
			return nil
		})

	default:
		every := max(1, int(float64(base)/float64(f)+0.5))
		if every == 1 || (t.visits+1)%uint64(every) == 0 {
			dt := float64(every) / float64(base)
			return t.run(m, func() error { return hook(dt) })
		}
	}
	return nil
}

// UpdateVisitor advances every model by one base timestep.
type UpdateVisitor struct {
	Traverser
	rated
}

func NewUpdateVisitor() *UpdateVisitor {
	v := &UpdateVisitor{rated: rated{frequency: DefaultFrequency}}
	v.mode = TraversalDependent
	return v
}

func (v *UpdateVisitor) Visit(root Model) error { return Visit(v, root) }

func (v *UpdateVisitor) Apply(m Model) error {
	if v.visited[m] {
		return nil
	}
	if err := traverseProviders(v, m); err != nil {
		return err
	}
	if err := v.schedule(&v.Traverser, m, m.Update); err != nil {
		return err
	}
	v.visited[m] = true
	return nil
}

// ApplyGroup updates the children, then the group itself at the base rate.
func (v *UpdateVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	dt := v.TimeStep()
	if err := v.run(g, func() error { return g.Update(dt) }); err != nil {
		return err
	}
	v.visited[g] = true
	return nil
}

// DisplayVisitor calls Display. In continuous mode it follows the update
// schedule; in the other modes it displays everything unconditionally.
type DisplayVisitor struct {
	Traverser
	rated
	display DisplayMode
}

func NewDisplayVisitor() *DisplayVisitor {
	v := &DisplayVisitor{rated: rated{frequency: DefaultFrequency}, display: DisplayContinuous}
	v.mode = TraversalSequential
	return v
}

// CurrentMode is the display mode of the last visit.
func (v *DisplayVisitor) CurrentMode() DisplayMode { return v.display }

// Visit displays root in the current display mode.
func (v *DisplayVisitor) Visit(root Model) error { return v.VisitMode(root, v.display) }

func (v *DisplayVisitor) VisitMode(root Model, mode DisplayMode) error {
	v.display = mode
	v.noPrune = mode != DisplayContinuous
	return Visit(v, root)
}

func (v *DisplayVisitor) Apply(m Model) error {
	mode := v.display
	if mode != DisplayContinuous {
		return v.run(m, func() error { return m.Display(mode) })
	}
	if v.visited[m] {
		return nil
	}
	if err := traverseProviders(v, m); err != nil {
		return err
	}
	if err := v.schedule(&v.Traverser, m, func(float64) error { return m.Display(mode) }); err != nil {
		return err
	}
	v.visited[m] = true
	return nil
}

func (v *DisplayVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	mode := v.display
	if err := v.run(g, func() error { return g.Display(mode) }); err != nil {
		return err
	}
	v.visited[g] = true
	return nil
}

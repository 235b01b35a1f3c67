// Package taskpool runs zero-argument tasks on a fixed set of workers. Each
// worker owns a FIFO queue; Schedule picks the worker with the fewest pending
// tasks, Wait is a barrier for everything scheduled so far, and inhibit lets a
// caller queue a whole wave before any task starts.
package taskpool

import (
	"sync"
	"sync/atomic"
)

// Task is a unit of work.
type Task func()

// Worker is one goroutine with its own queue.
type Worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	running bool
	done    bool
	inhibit bool
	count   uint64
}

func newWorker() *Worker {
	w := &Worker{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *Worker) loop(count *atomic.Uint64) {
	w.mu.Lock()
	defer func() {
		w.cond.Broadcast()
		w.mu.Unlock()
	}()
	for {
		for !w.done && (w.inhibit || len(w.queue) == 0) {
			w.cond.Wait()
		}
		if w.done {
			return
		}
		task := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.running = true
		w.mu.Unlock()

		task()

		w.mu.Lock()
		w.running = false
		w.count++
		count.Add(1)
		w.cond.Broadcast()
	}
}

// Schedule appends t to this worker's queue.
func (w *Worker) Schedule(t Task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()
	w.cond.Broadcast()
}

// NumScheduled is the number of queued tasks not yet started.
func (w *Worker) NumScheduled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// TaskCount is the number of tasks this worker has completed.
func (w *Worker) TaskCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// IsBusy reports queued or running work.
func (w *Worker) IsBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running || len(w.queue) > 0
}

// Wait blocks until the queue is empty and no task is running, or the
// worker is done.
func (w *Worker) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.done && (w.running || len(w.queue) > 0) {
		w.cond.Wait()
	}
	for w.done && w.running {
		w.cond.Wait()
	}
}

func (w *Worker) SetInhibit(on bool) {
	w.mu.Lock()
	w.inhibit = on
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *Worker) IsInhibited() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inhibit
}

// SetDone stops the worker after its current task. Queued tasks are dropped.
func (w *Worker) SetDone() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *Worker) IsDone() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Pool is a fixed set of workers.
type Pool struct {
	workers []*Worker
	count   atomic.Uint64
	started sync.Once
	exited  sync.WaitGroup
}

// New creates a pool of n workers (at least one). Call Start to run them;
// tasks scheduled before that are queued.
func New(n int) *Pool {
	p := &Pool{workers: make([]*Worker, max(1, n))}
	for i := range p.workers {
		p.workers[i] = newWorker()
	}
	return p
}

// Start launches the worker goroutines. Extra calls do nothing.
func (p *Pool) Start() {
	p.started.Do(func() {
		for _, w := range p.workers {
			p.exited.Add(1)
			go func(w *Worker) {
				defer p.exited.Done()
				w.loop(&p.count)
			}(w)
		}
	})
}

func (p *Pool) NumWorkers() int { return len(p.workers) }

func (p *Pool) Worker(i int) *Worker { return p.workers[i] }

// Schedule queues t on the worker with the fewest pending tasks.
func (p *Pool) Schedule(t Task) {
	best := p.workers[0]
	bestN := best.NumScheduled()
	for _, w := range p.workers[1:] {
		if n := w.NumScheduled(); n < bestN {
			best, bestN = w, n
		}
	}
	best.Schedule(t)
}

// NumScheduled is the number of queued tasks across all workers.
func (p *Pool) NumScheduled() int {
	n := 0
	for _, w := range p.workers {
		n += w.NumScheduled()
	}
	return n
}

// TaskCount is the number of tasks completed by all workers.
func (p *Pool) TaskCount() uint64 { return p.count.Load() }

// Wait blocks until every worker is idle with an empty queue. It does not
// return while the pool is inhibited with work queued.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		w.Wait()
	}
}

func (p *Pool) SetInhibit(on bool) {
	for _, w := range p.workers {
		w.SetInhibit(on)
	}
}

func (p *Pool) SetDone() {
	for _, w := range p.workers {
		w.SetDone()
	}
}

func (p *Pool) IsDone() bool {
	for _, w := range p.workers {
		if !w.IsDone() {
			return false
		}
	}
	return true
}

// WaitDone blocks until every started worker has exited.
func (p *Pool) WaitDone() {
	p.exited.Wait()
}

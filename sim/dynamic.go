package sim

import (
	"slices"
	"strconv"
)

// InputList manages numbered inputs ("in1", "in2", ...) for models that
// implement DynamicInputs. The zero value uses the "in" prefix.
type InputList[T any] struct {
	Prefix string
	ports  []*InPort[T]
	nums   []int
	next   int
}

// Add registers a new input on b and returns it.
func (l *InputList[T]) Add(b *Base, desc string) *InPort[T] {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "in"
	}
	l.next++
	p := NewInPort[T]()
	b.MustRegisterPort(p, prefix+strconv.Itoa(l.next), desc)
	l.ports = append(l.ports, p)
	l.nums = append(l.nums, l.next)
	return p
}

// RemoveUnconnected drops the highest-numbered unconnected input. The first
// input is never removed.
func (l *InputList[T]) RemoveUnconnected(b *Base) bool {
	for i := len(l.ports) - 1; i > 0; i-- {
		if l.ports[i].IsConnected() {
			continue
		}
		if err := b.UnregisterPort(l.ports[i]); err != nil {
			return false
		}
		l.ports = slices.Delete(l.ports, i, i+1)
		l.nums = slices.Delete(l.nums, i, i+1)
		l.next = slices.Max(l.nums)
		return true
	}
	return false
}

func (l *InputList[T]) Ports() []*InPort[T] { return l.ports }
func (l *InputList[T]) Len() int            { return len(l.ports) }

// OutputList is the output counterpart of InputList, prefix "out" by default.
type OutputList[T any] struct {
	Prefix string
	ports  []*OutPort[T]
	nums   []int
	next   int
}

func (l *OutputList[T]) Add(b *Base, desc string) *OutPort[T] {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "out"
	}
	l.next++
	p := NewOutPort[T]()
	b.MustRegisterPort(p, prefix+strconv.Itoa(l.next), desc)
	l.ports = append(l.ports, p)
	l.nums = append(l.nums, l.next)
	return p
}

// RemoveUnconnected drops the highest-numbered unconnected output, never the first.
func (l *OutputList[T]) RemoveUnconnected(b *Base) bool {
	for i := len(l.ports) - 1; i > 0; i-- {
		if l.ports[i].IsConnected() {
			continue
		}
		if err := b.UnregisterPort(l.ports[i]); err != nil {
			return false
		}
		l.ports = slices.Delete(l.ports, i, i+1)
		l.nums = slices.Delete(l.nums, i, i+1)
		l.next = slices.Max(l.nums)
		return true
	}
	return false
}

func (l *OutputList[T]) Ports() []*OutPort[T] { return l.ports }
func (l *OutputList[T]) Len() int             { return len(l.ports) }

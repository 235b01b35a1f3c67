package sim

import (
	"sort"
	"sync"
)

// Creator builds a fresh model with its default name.
type Creator func() Model

// Factory creates models from "library::Name" identifiers. Groups are always
// available under GroupClass.
type Factory struct {
	mu       sync.RWMutex
	creators map[string]Creator
}

func NewFactory() *Factory {
	f := &Factory{creators: make(map[string]Creator)}
	f.Register(GroupClass, func() Model { return NewGroup("") })
	return f
}

// Register adds a creator. It returns false when id is already taken.
func (f *Factory) Register(id string, c Creator) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.creators[id]; ok {
		return false
	}
	f.creators[id] = c
	return true
}

func (f *Factory) Has(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.creators[id]
	return ok
}

func (f *Factory) Create(id string) (Model, error) {
	f.mu.RLock()
	c, ok := f.creators[id]
	f.mu.RUnlock()
	if !ok {
		return nil, &ModelError{Err: ErrUnknownModelType, Detail: id}
	}
	return c(), nil
}

// Identifiers lists registered ids in sorted order.
func (f *Factory) Identifiers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.creators))
	for id := range f.creators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

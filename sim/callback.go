package sim

// Callback receives the models of a tree walk. PreTraverse is called for a
// group before its children, ApplyGroup after them.
type Callback interface {
	Apply(m Model) error
	ApplyGroup(g *Group) error
	PreTraverse(g *Group) error
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are skipped.
type CallbackFuncs struct {
	OnModel func(Model) error
	OnGroup func(*Group) error
	OnEnter func(*Group) error
}

func (c CallbackFuncs) Apply(m Model) error {
	if c.OnModel == nil {
		return nil
	}
	return c.OnModel(m)
}

func (c CallbackFuncs) ApplyGroup(g *Group) error {
	if c.OnGroup == nil {
		return nil
	}
	return c.OnGroup(g)
}

func (c CallbackFuncs) PreTraverse(g *Group) error {
	if c.OnEnter == nil {
		return nil
	}
	return c.OnEnter(g)
}

// CallbackVisitor walks a tree and hands every model to a Callback.
type CallbackVisitor struct {
	Traverser
	cb Callback
}

func NewCallbackVisitor(cb Callback) *CallbackVisitor {
	v := &CallbackVisitor{cb: cb}
	v.mode = TraversalSequential
	return v
}

func (v *CallbackVisitor) Visit(root Model) error { return Visit(v, root) }

func (v *CallbackVisitor) Apply(m Model) error {
	if v.visited[m] {
		return nil
	}
	if err := traverseProviders(v, m); err != nil {
		return err
	}
	v.visited[m] = true
	return v.cb.Apply(m)
}

func (v *CallbackVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := v.cb.PreTraverse(g); err != nil {
		return err
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	v.visited[g] = true
	return v.cb.ApplyGroup(g)
}

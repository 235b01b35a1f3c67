package sim

import (
	"strings"
)

// FindVisitor locates the first model matching a name or path.
type FindVisitor struct {
	Traverser
	name  string
	found Model
}

func NewFindVisitor(name string) *FindVisitor {
	v := &FindVisitor{name: name}
	v.mode = TraversalSequential
	return v
}

// Visit searches below root; the result is available from Found.
func (v *FindVisitor) Visit(root Model) error {
	v.found = nil
	return Visit(v, root)
}

func (v *FindVisitor) Found() Model { return v.found }

func (v *FindVisitor) Apply(m Model) error {
	if v.found == nil && ModelNameMatches(m, v.name) {
		v.found = m
	}
	v.visited[m] = true
	return nil
}

func (v *FindVisitor) ApplyGroup(g *Group) error {
	if v.visited[g] {
		return nil
	}
	if err := traverseChildren(v, g); err != nil {
		return err
	}
	return v.Apply(g)
}

// ModelNameMatches reports whether m is addressed by name. An absolute
// name ("/a/b") must equal the model's path; a relative one ("b" or "a/b")
// must match the trailing elements of it.
func ModelNameMatches(m Model, name string) bool {
	if name == "" {
		return false
	}
	path := m.base().Path(nil)
	if strings.HasPrefix(name, "/") {
		return path == name
	}
	return m.Name() == name || strings.HasSuffix(path, "/"+name)
}

// FindModel returns the first model below root (root included) matching name.
func FindModel(root Model, name string) Model {
	if isNilModel(root) {
		return nil
	}
	v := NewFindVisitor(name)
	if err := v.Visit(root); err != nil {
		return nil
	}
	return v.Found()
}

// FindPort resolves "model.port" below root. A port named "in+" or "out+"
// adds a fresh port to a model with dynamic inputs or outputs.
func FindPort(root Model, ref string) (Port, error) {
	var m Model
	portName := ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		m = FindModel(root, ref[:i])
		portName = ref[i+1:]
		if m == nil {
			return nil, modelErr(root, ErrUnknownPort, "no model for %q", ref)
		}
	} else {
		m = root
	}

	switch portName {
	case "in+":
		dyn, ok := m.(DynamicInputs)
		if !ok {
			return nil, modelErr(m, ErrUnsupportedPorting, "%q", ref)
		}
		return dyn.AddInput(), nil
	case "out+":
		dyn, ok := m.(DynamicOutputs)
		if !ok {
			return nil, modelErr(m, ErrUnsupportedPorting, "%q", ref)
		}
		return dyn.AddOutput(), nil
	}
	return m.base().Port(portName)
}

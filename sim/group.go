package sim

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// GroupClass is the factory identifier of Group.
const GroupClass = "sbx::Group"

// Group is a Model owning an ordered list of children. A child belongs to
// exactly one group; adding it elsewhere removes it from the previous one.
// Ports of descendants can be exported so that they are addressable as
// ports of the group.
type Group struct {
	Base
	children []Model
}

func NewGroup(name string) *Group {
	g := &Group{}
	g.Setup(g, name, GroupClass, "Container for other models")
	return g
}

func (g *Group) AsGroup() *Group { return g }

func isNilModel(m Model) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// AddChild appends child, taking it from its previous parent if any.
func (g *Group) AddChild(child Model) error {
	if isNilModel(child) {
		return modelErr(g, ErrNilChild, "")
	}
	cb := child.base()
	if cb.self == nil {
		return modelErr(g, ErrNilChild, "%T was not set up", child)
	}
	if cb.parent == g {
		return nil
	}
	if cg := child.AsGroup(); cg != nil {
		for p := g; p != nil; p = p.parent {
			if p == cg {
				return modelErr(g, ErrInvalidChild, "%q", child.Name())
			}
		}
	}
	for _, c := range g.children {
		if c.Name() == child.Name() {
			return modelErr(g, ErrDuplicateName, "%q", child.Name())
		}
	}
	if cb.parent != nil {
		cb.parent.detach(child)
	}
	g.children = append(g.children, child)
	cb.parent = g
	g.invalidateDependencies()
	return nil
}

// detach removes child from the list and drops exports that point into it.
func (g *Group) detach(child Model) bool {
	i := slices.Index(g.children, child)
	if i < 0 {
		return false
	}
	g.children = slices.Delete(g.children, i, i+1)
	child.base().parent = nil

	for a := g; a != nil; a = a.parent {
		for j := len(a.ports) - 1; j >= 0; j-- {
			e := a.ports[j]
			if e.exported && within(e.port.Owner(), child) {
				a.removePortEntry(j)
			}
		}
	}
	g.invalidateDependencies()
	return true
}

// within reports whether m is root or one of its descendants.
func within(m, root Model) bool {
	for cur := m; cur != nil; {
		if cur == root {
			return true
		}
		p := cur.base().parent
		if p == nil {
			return false
		}
		cur = p
	}
	return false
}

// RemoveChild detaches child. The child stays alive and connected; use
// Release to destroy it.
func (g *Group) RemoveChild(child Model) bool {
	if isNilModel(child) {
		return false
	}
	return g.detach(child)
}

func (g *Group) RemoveChildAt(i int) bool {
	if i < 0 || i >= len(g.children) {
		return false
	}
	return g.detach(g.children[i])
}

// RemoveChildren detaches count children starting at index i.
func (g *Group) RemoveChildren(i, count int) int {
	n := 0
	for ; n < count && i < len(g.children); n++ {
		g.detach(g.children[i])
	}
	return n
}

// Clear detaches every child.
func (g *Group) Clear() {
	for len(g.children) > 0 {
		g.detach(g.children[len(g.children)-1])
	}
}

func (g *Group) NumChildren() int { return len(g.children) }

func (g *Group) Child(i int) Model {
	if i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i]
}

// ChildByName returns the direct child called name, or nil.
func (g *Group) ChildByName(name string) Model {
	for _, c := range g.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Children returns a copy of the child list.
func (g *Group) Children() []Model { return slices.Clone(g.children) }

// IsDescendant reports whether m sits anywhere below g.
func (g *Group) IsDescendant(m Model) bool {
	if isNilModel(m) || m == Model(g) {
		return false
	}
	return within(m, g)
}

// ExportPort makes a descendant's port addressable as g's port name. The
// port keeps its owner.
func (g *Group) ExportPort(p Port, name string) error {
	if isNilPort(p) {
		return modelErr(g, ErrUnknownPort, "nil port %q", name)
	}
	owner := p.Owner()
	if owner == nil || !g.IsDescendant(owner) {
		return modelErr(g, ErrUnknownPort, "%q is not a descendant port", name)
	}
	desc, err := owner.base().PortDescription(p)
	if err != nil {
		return err
	}
	return g.addPortEntry(portEntry{name: name, desc: desc, port: p, exported: true})
}

// UnexportPort drops an exported port.
func (g *Group) UnexportPort(p Port) error {
	i, err := g.PortIndex(p)
	if err != nil {
		return err
	}
	if !g.ports[i].exported {
		return modelErr(g, ErrUnknownPort, "port is not exported")
	}
	g.removePortEntry(i)
	return nil
}

// Release destroys m. It leaves its parent, every port it owns is
// disconnected and those ports report a nil owner from then on. Groups
// release their children first.
func Release(m Model) {
	if isNilModel(m) {
		return
	}
	if g := m.AsGroup(); g != nil {
		for len(g.children) > 0 {
			Release(g.children[len(g.children)-1])
		}
	}
	b := m.base()
	if b.parent != nil {
		b.parent.detach(m)
	}
	for _, e := range b.ports {
		if !e.exported {
			e.port.DisconnectAll()
		}
	}
	if b.h != nil {
		b.h.m = nil
	}
}

// Parse builds children with f, then applies exports and connections. A
// broken child does not stop the others; all failures are returned together.
func (g *Group) Parse(n *Node, f *Factory) error {
	if err := g.Base.Parse(n, f); err != nil {
		return err
	}

	var result *multierror.Error
	for i := range n.Children {
		cn := &n.Children[i]
		if f == nil {
			return modelErr(g, ErrUnknownModelType, "no factory to create %q", cn.Type)
		}
		child, err := f.Create(cn.Type)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if cn.Name != "" {
			if err := child.SetName(cn.Name); err != nil {
				result = multierror.Append(result, err)
				continue
			}
		}
		if err := g.AddChild(child); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := child.Parse(cn, f); err != nil {
			result = multierror.Append(result, fmt.Errorf("parsing %s: %w", child.base().Path(nil), err))
		}
		logrus.Debugf("parsed %s (%s)", child.Name(), cn.Type)
	}

	for _, pr := range n.Ports {
		p, err := FindPort(g, pr.Ref)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := g.ExportPort(p, pr.Name); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, c := range n.Connect {
		first, err := FindPort(g, c.First)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		second, err := FindPort(g, c.Second)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := first.Connect(second); err != nil {
			result = multierror.Append(result, fmt.Errorf("connecting %s to %s: %w", c.First, c.Second, err))
		}
	}
	return result.ErrorOrNil()
}

// Write records children, exports and every connection whose two ends meet
// at this group.
func (g *Group) Write(n *Node) error {
	if err := g.Base.Write(n); err != nil {
		return err
	}
	n.Children = nil
	for _, c := range g.children {
		var cn Node
		if err := c.Write(&cn); err != nil {
			return err
		}
		n.Children = append(n.Children, cn)
	}

	n.Ports = nil
	for _, e := range g.ports {
		if e.exported {
			n.Ports = append(n.Ports, PortRef{Name: e.name, Ref: g.portRef(e.port, false)})
		}
	}

	n.Connect = nil
	g.eachDescendant(func(m Model) {
		b := m.base()
		for _, e := range b.ports {
			if e.exported || !e.port.IsInput() || !e.port.IsConnected() {
				continue
			}
			other := e.port.OtherEnd(0)
			o := other.Owner()
			if o == nil || commonGroup(m, o) != g {
				continue
			}
			n.Connect = append(n.Connect, Connection{
				First:  g.portRef(e.port, true),
				Second: g.portRef(other, true),
			})
		}
	})
	return nil
}

// portRef names a descendant port relative to g. With viaExports a port
// exported by the direct child containing it is named through the export.
func (g *Group) portRef(p Port, viaExports bool) string {
	owner := p.Owner()
	name, _ := owner.base().PortName(p)
	if viaExports {
		for _, c := range g.children {
			cg := c.AsGroup()
			if cg == nil || c == owner || !cg.IsDescendant(owner) {
				continue
			}
			for _, e := range cg.ports {
				if e.exported && e.port == p {
					return c.Name() + "." + e.name
				}
			}
		}
	}
	return owner.base().Path(g) + "." + name
}

func (g *Group) eachDescendant(fn func(Model)) {
	for _, c := range g.children {
		fn(c)
		if cg := c.AsGroup(); cg != nil {
			cg.eachDescendant(fn)
		}
	}
}

// commonGroup returns the innermost group containing both a and b.
func commonGroup(a, b Model) *Group {
	for p := a.base().parent; p != nil; p = p.parent {
		if within(b, p) {
			return p
		}
	}
	return nil
}

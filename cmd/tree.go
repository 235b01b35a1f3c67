package cmd

import (
	"fmt"
	"io"

	"github.com/m1gwings/treedrawer/tree"

	"github.com/simblox/simblox/sim"
)

func modelLabel(m sim.Model) string {
	if freq := sim.BaseOf(m).UpdateFrequency(); freq > 0 {
		return fmt.Sprintf("%s (%s, %d Hz)", m.Name(), m.Class(), freq)
	}
	return fmt.Sprintf("%s (%s)", m.Name(), m.Class())
}

func addSubtree(t *tree.Tree, g *sim.Group) {
	for _, c := range g.Children() {
		ct := t.AddChild(tree.NodeString(modelLabel(c)))
		if cg := c.AsGroup(); cg != nil {
			addSubtree(ct, cg)
		}
	}
}

// writeTree draws root and its descendants.
func writeTree(w io.Writer, root *sim.Group) {
	t := tree.NewTree(tree.NodeString(modelLabel(root)))
	addSubtree(t, root)
	fmt.Fprintln(w, t)
}

package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/simblox/simblox/sim"
)

// writeModelList prints one row per model type followed by its ports and parameters.
func writeModelList(w io.Writer, f *sim.Factory) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Kind", "Name", "Type", "Unit", "Description"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	for _, id := range f.Identifiers() {
		m, err := f.Create(id)
		if err != nil {
			return err
		}
		table.Append([]string{id, "model", m.Name(), "", "", m.Description()})
		b := sim.BaseOf(m)
		for _, p := range b.Ports() {
			kind := "output"
			if p.IsInput() {
				kind = "input"
			}
			name, _ := b.PortName(p)
			desc, _ := b.PortDescription(p)
			table.Append([]string{"", kind, name, p.TypeName(), p.Unit(), desc})
		}
		for _, p := range b.Parameters() {
			table.Append([]string{"", "param", p.Name, p.Kind().String(), p.Unit, p.Description})
		}
		sim.Release(m)
	}
	table.Render()
	return nil
}

// writePluginList prints the loadable plugin names.
func writePluginList(w io.Writer, host *sim.PluginHost) {
	for _, name := range host.Available() {
		fmt.Fprintf(w, "plugin: %s\n", name)
	}
}

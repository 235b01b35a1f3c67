package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/simblox/simblox/sim"
)

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond))
}

// writeStats prints the init and update time of every model, indented by
// depth in the tree.
func writeStats(w io.Writer, s *sim.Simulation) error {
	initTimes := s.InitVisitor().Statistics()
	updateTimes := s.UpdateVisitor().Statistics()
	total := s.UpdateVisitor().TotalTime()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Model", "Class", "Init (ms)", "Update (ms)", "Update %"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	depth := 0
	row := func(m sim.Model) {
		share := "-"
		if total > 0 {
			share = fmt.Sprintf("%.1f", 100*float64(updateTimes[m])/float64(total))
		}
		table.Append([]string{
			strings.Repeat("  ", depth) + m.Name(),
			m.Class(),
			formatMs(initTimes[m]),
			formatMs(updateTimes[m]),
			share,
		})
	}
	v := sim.NewCallbackVisitor(sim.CallbackFuncs{
		OnEnter: func(g *sim.Group) error {
			row(g)
			depth++
			return nil
		},
		OnGroup: func(*sim.Group) error {
			depth--
			return nil
		},
		OnModel: func(m sim.Model) error {
			row(m)
			return nil
		},
	})
	if err := v.Visit(s.Root()); err != nil {
		return err
	}
	table.Render()
	fmt.Fprintf(w, "steps: %d, update time: %s, average real-time ratio: %.2f\n",
		s.UpdateVisitor().VisitCount(), total.Round(time.Microsecond), s.AverageRealTimeRatio())
	return nil
}

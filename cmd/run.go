package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/simblox/simblox/sim"
	"github.com/simblox/simblox/sim/config"
)

// runOptions are the command line overrides of a document. Nil and zero
// fields leave the document value alone.
type runOptions struct {
	realtime  *bool
	endTime   *float64
	traversal string
	frequency int
	stats     bool
	save      string
}

// buildSimulation loads path, applies opts and builds the simulation.
func buildSimulation(path string, opts runOptions) (*sim.Simulation, error) {
	doc, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	n := &doc.Simulation
	if opts.realtime != nil {
		n.RealTime = opts.realtime
	}
	if opts.endTime != nil {
		n.EndTime = *opts.endTime
	}
	if opts.traversal != "" {
		n.Traversal = opts.traversal
	}
	if opts.frequency != 0 {
		n.Frequency = opts.frequency
		n.Step = 0
	}
	if opts.stats {
		n.Statistics = true
	}
	f, host := newEnvironment()
	return config.Build(doc, f, host)
}

// runDocument runs the document at path until it is done or ctx ends.
func runDocument(ctx context.Context, path string, opts runOptions, out io.Writer) error {
	s, err := buildSimulation(path, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.EndTime() <= 0 {
		logrus.Warnf("no end time set, running until interrupted")
	}
	start := time.Now()
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logrus.Infof("simulated %.4g s in %s (average %.2fx real time)",
		s.Time(), time.Since(start).Round(time.Millisecond), s.AverageRealTimeRatio())

	if opts.stats {
		if err := writeStats(out, s); err != nil {
			return fmt.Errorf("writing statistics: %w", err)
		}
	}
	if opts.save != "" {
		doc, err := config.Write(s)
		if err != nil {
			return err
		}
		if err := config.Save(doc, opts.save); err != nil {
			return err
		}
	}
	return nil
}

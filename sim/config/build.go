package config

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simblox/simblox/sim"
)

// Build creates the simulation described by doc. Models are created through
// f and plugins are loaded from host, which becomes the simulation's plugin
// host. A nil host gives the simulation an empty one.
func Build(doc *Document, f *sim.Factory, host *sim.PluginHost) (*sim.Simulation, error) {
	if doc.Models.Type != "" && doc.Models.Type != sim.GroupClass {
		return nil, fmt.Errorf("models: root must be a %s, got %q", sim.GroupClass, doc.Models.Type)
	}
	root := sim.NewGroup("root")
	if err := root.Parse(&doc.Models, f); err != nil {
		return nil, fmt.Errorf("building model tree: %w", err)
	}

	s := sim.NewSimulation(root)
	if host != nil {
		s.SetPlugins(host)
	}
	if err := Apply(&doc.Simulation, s); err != nil {
		s.Close()
		return nil, err
	}
	logrus.Debugf("built simulation with %d top-level models", root.NumChildren())
	return s, nil
}

// Apply copies the settings in n onto s and loads the plugins n names.
func Apply(n *SimulationNode, s *sim.Simulation) error {
	if n.Step != 0 && n.Frequency != 0 {
		return fmt.Errorf("simulation: step %g and frequency %d: %w", n.Step, n.Frequency, sim.ErrConflictingRates)
	}
	if n.Traversal != "" {
		mode, err := sim.ParseTraversalMode(n.Traversal)
		if err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
		s.SetTraversalMode(mode)
	}
	if n.RealTime != nil {
		s.SetRealTime(*n.RealTime)
	}
	if n.ContinuousDisplay != nil {
		s.SetContinuousDisplay(*n.ContinuousDisplay)
	}
	if n.EndTime != 0 {
		s.SetEndTime(n.EndTime)
	}
	if n.Step != 0 {
		if err := s.SetTimeStep(n.Step); err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
	}
	if n.Frequency != 0 {
		if err := s.SetFrequency(n.Frequency); err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
	}
	s.SetPaused(n.Paused)
	s.SetAverageRealTimeRatioSteps(n.RatioWindow)
	s.SetStatistics(n.Statistics)
	for _, name := range n.Plugins {
		if _, err := s.Plugins().Load(name); err != nil {
			return fmt.Errorf("simulation: loading plugin: %w", err)
		}
	}
	return nil
}

// Write captures s as a document. The timestep is always recorded as step.
func Write(s *sim.Simulation) (*Document, error) {
	doc := &Document{}
	realtime := s.RealTime()
	display := s.ContinuousDisplay()
	doc.Simulation = SimulationNode{
		Traversal:         s.TraversalMode().String(),
		RealTime:          &realtime,
		EndTime:           s.EndTime(),
		Step:              s.TimeStep(),
		Paused:            s.IsPaused(),
		ContinuousDisplay: &display,
		RatioWindow:       s.AverageRealTimeRatioSteps(),
		Statistics:        s.UpdateVisitor().StatisticsEnabled(),
	}
	for _, p := range s.Plugins().Plugins() {
		doc.Simulation.Plugins = append(doc.Simulation.Plugins, p.Name())
	}
	if s.Root() != nil {
		if err := s.Root().Write(&doc.Models); err != nil {
			return nil, fmt.Errorf("writing model tree: %w", err)
		}
	}
	return doc, nil
}

// Package plugins holds the built-in simulation plugins.
package plugins

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/simblox/simblox/sim"
)

// ProgressName is the name the progress plugin is loaded under.
const ProgressName = "progress"

// DefaultProgressInterval is the simulated time between two reports.
const DefaultProgressInterval = 1.0

// Progress logs the simulated and wall time at a fixed simulated interval.
type Progress struct {
	sim.BasePlugin

	// Interval is the simulated time in seconds between reports.
	Interval float64

	now     func() time.Time
	start   time.Time
	simTime float64
	next    float64
	reports int
}

func NewProgress(interval float64) *Progress {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Progress{
		BasePlugin: sim.BasePlugin{
			PluginName:        ProgressName,
			PluginDescription: "Logs simulated and wall time",
			PluginAuthor:      "simblox",
			PluginVersion:     "1.0",
		},
		Interval: interval,
		now:      time.Now,
	}
}

// PostInitialize restarts the clocks.
func (p *Progress) PostInitialize() error {
	p.start = p.now()
	p.simTime = 0
	p.next = p.Interval
	p.reports = 0
	return nil
}

func (p *Progress) PostUpdate(dt float64) error {
	p.simTime += dt
	if p.simTime+dt*1e-6 < p.next {
		return nil
	}
	wall := p.now().Sub(p.start)
	ratio := 0.0
	if wall > 0 {
		ratio = p.simTime / wall.Seconds()
	}
	logrus.Infof("[progress] simulated %.3f s in %s (%.2fx real time)", p.simTime, wall.Round(time.Millisecond), ratio)
	p.reports++
	for p.next <= p.simTime+dt*1e-6 {
		p.next += p.Interval
	}
	return nil
}

func (p *Progress) PauseUpdate(float64) error {
	logrus.Debugf("[progress] paused at %.3f s", p.simTime)
	return nil
}

// Reports is the number of progress lines logged since the last init.
func (p *Progress) Reports() int { return p.reports }

// SimulatedTime is the time accumulated from PostUpdate.
func (p *Progress) SimulatedTime() float64 { return p.simTime }

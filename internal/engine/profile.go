package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/roadsim/internal/logger"
)

// Profile accumulates wall-clock time spent in each phase of a run.
type Profile struct {
	Launch time.Time
	End    time.Time

	ComputeLoads       time.Duration
	PropagateOverloads time.Duration
	Repositioning      time.Duration
	Statistics         time.Duration
	StepOutputs        time.Duration
	EndOutputs         time.Duration
}

// Duration is the wall-clock length of the run, or 0 before it ends.
func (p Profile) Duration() time.Duration {
	if p.Launch.IsZero() || p.End.IsZero() {
		return 0
	}
	return p.End.Sub(p.Launch)
}

// average divides a phase total by the number of steps.
func average(d time.Duration, steps int) time.Duration {
	if steps <= 0 {
		return 0
	}
	return d / time.Duration(steps)
}

// Log writes the totals and per-step averages.
func (p Profile) Log(steps int) {
	logger.Section("Profiling")
	for _, phase := range []struct {
		name string
		d    time.Duration
	}{
		{"compute_loads", p.ComputeLoads},
		{"propagate_overloads", p.PropagateOverloads},
		{"repositioning", p.Repositioning},
		{"statistics", p.Statistics},
		{"step_outputs", p.StepOutputs},
	} {
		logger.WithTag("SIM").WithFields(logrus.Fields{
			"phase":   phase.name,
			"total":   phase.d.String(),
			"average": average(phase.d, steps).String(),
		}).Info("phase timing")
	}
	logger.Stats("end_outputs", p.EndOutputs.String())
	logger.Stats("duration", p.Duration().String())
}

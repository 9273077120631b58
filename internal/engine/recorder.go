package engine

import (
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/network"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// StepReport is the read-only outcome of one step handed to every Recorder.
type StepReport struct {
	Step       int
	TimeSlot   float64 // seconds
	StepLength float64 // seconds
	// FinalLoads maps each edge to the vehicles whose position at the end of
	// the step is that edge. Recorders must not modify it.
	FinalLoads network.Loads
	Loaded     []*vehicle.Vehicle
	Departed   []*vehicle.Vehicle
}

// Summary is the end-of-run data handed to every Recorder.
type Summary struct {
	BeginTime     float64 // seconds
	FinalTimeSlot float64 // seconds
	StepLength    float64 // seconds
	Steps         int
	Edges         []*graph.Edge
	Arrived       []*vehicle.Vehicle
}

// Recorder consumes per-step reports and the end-of-run summary.
type Recorder interface {
	RecordStep(r StepReport) error
	Finish(s Summary) error
}

// Options tune a Simulation.
type Options struct {
	// EdgeStatistics accumulates per-edge occupancy and travel time each step.
	EdgeStatistics bool
	// Profiling logs per-phase timings once the run finishes.
	Profiling bool
	Recorders []Recorder
}

// Option mutates Options.
type Option func(*Options)

// WithEdgeStatistics accumulates per-edge statistics every step.
func WithEdgeStatistics() Option { return func(o *Options) { o.EdgeStatistics = true } }

// WithProfiling logs phase timings when the run finishes.
func WithProfiling() Option { return func(o *Options) { o.Profiling = true } }

// WithRecorders appends recorders, skipping nil ones.
func WithRecorders(rs ...Recorder) Option {
	return func(o *Options) {
		for _, r := range rs {
			if r != nil {
				o.Recorders = append(o.Recorders, r)
			}
		}
	}
}

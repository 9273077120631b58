// Package engine implements the step-by-step traffic simulation loop.
//
// Each step runs four passes over the running vehicles, all in departure order:
//
//  1. Ingest - newly loaded vehicles join the waiting queue, pending removals
//     are applied and vehicles whose departure time has come start running.
//
//  2. Predict - every running vehicle walks its route with free-flow travel
//     times to estimate which edges it will touch during the step.
//
//  3. Propagate - each touched edge gets its congested travel time from the
//     estimated load. Edges feeding an overloaded edge are pushed to their
//     maximum travel time. The push is one hop deep.
//
//  4. Reposition - vehicles move using the propagated travel times and the
//     authoritative per-edge loads of the step are recorded.
//
// Per-edge statistics are then accumulated in parallel and the step report is
// handed to every Recorder.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/logger"
	"github.com/cxd309/roadsim/internal/network"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// Simulation drives one Network through time. It is not safe for concurrent use.
type Simulation struct {
	network *network.Network
	timeCfg TimeConfiguration
	opts    Options

	step       int
	finalLoads network.Loads
	profile    Profile
	ended      bool
}

// NewSimulation creates a simulation over net.
func NewSimulation(net *network.Network, timeCfg TimeConfiguration, opts ...Option) *Simulation {
	if net == nil {
		net = network.New(nil)
	}
	if timeCfg.stepLength <= 0 {
		timeCfg = DefaultTimeConfiguration()
	}
	s := &Simulation{
		network:    net,
		timeCfg:    timeCfg,
		finalLoads: make(network.Loads),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Network returns the simulated network.
func (s *Simulation) Network() *network.Network { return s.network }

// TimeConfiguration returns the timing of the run.
func (s *Simulation) TimeConfiguration() TimeConfiguration { return s.timeCfg }

// CurrentStep is the number of steps processed so far.
func (s *Simulation) CurrentStep() int { return s.step }

// Profile returns the phase timings collected so far.
func (s *Simulation) Profile() Profile { return s.profile }

// AddRecorder registers r for the following steps.
func (s *Simulation) AddRecorder(r Recorder) {
	WithRecorders(r)(&s.opts)
}

// CurrentTimeSlot is the simulated time at which the next step starts.
func (s *Simulation) CurrentTimeSlot() float64 {
	return s.timeCfg.beginTime + float64(s.step)*s.timeCfg.stepLength
}

// IsFinished reports whether every vehicle has arrived or the configured end
// time has been passed.
func (s *Simulation) IsFinished() bool {
	if s.network.AreAllVehiclesArrived() {
		return true
	}
	return s.timeCfg.HasEndTime() && s.CurrentTimeSlot() > s.timeCfg.endTime
}

// CurrentStepFinalLoadForEdge returns the vehicles that ended the last step on
// edge id, in repositioning order. Unknown edges yield an empty slice.
func (s *Simulation) CurrentStepFinalLoadForEdge(id graph.EdgeID) []*vehicle.Vehicle {
	vs := s.finalLoads[id]
	out := make([]*vehicle.Vehicle, len(vs))
	copy(out, vs)
	return out
}

// ProcessNextStep advances the simulation by one step. It returns true,
// without doing anything, once the simulation is finished.
func (s *Simulation) ProcessNextStep() (bool, error) {
	if s.IsFinished() {
		return true, nil
	}
	if s.profile.Launch.IsZero() {
		s.profile.Launch = time.Now()
	}
	timeSlot := s.CurrentTimeSlot()
	stepLength := s.timeCfg.stepLength
	// vehicles added after Finish reopen the run
	s.ended = false

	clear(s.finalLoads)
	s.network.FlushLoadedVehicles()
	s.network.FlushVehiclesToRemoveFromSimulationList()
	s.network.UpdateDepartedVehiclesForCurrentTimeStep(timeSlot)

	t0 := time.Now()
	estimated, considered, overloaded, err := s.computeLoads(timeSlot)
	if err != nil {
		return false, fmt.Errorf("at t=%.2f computing loads: %w", timeSlot, err)
	}
	s.profile.ComputeLoads += time.Since(t0)

	t0 = time.Now()
	travelTimes, err := s.propagateOverloads(estimated, considered, overloaded)
	if err != nil {
		return false, fmt.Errorf("at t=%.2f propagating overloads: %w", timeSlot, err)
	}
	s.profile.PropagateOverloads += time.Since(t0)

	var positions network.Loads
	if s.opts.EdgeStatistics {
		positions = make(network.Loads)
	}
	t0 = time.Now()
	if err := s.network.RepositionRunningVehicles(s.finalLoads, timeSlot, stepLength, travelTimes, positions); err != nil {
		return false, fmt.Errorf("at t=%.2f: %w", timeSlot, err)
	}
	s.profile.Repositioning += time.Since(t0)

	if s.opts.EdgeStatistics {
		t0 = time.Now()
		if err := computeStatistics(considered, positions, travelTimes); err != nil {
			return false, fmt.Errorf("at t=%.2f computing statistics: %w", timeSlot, err)
		}
		s.profile.Statistics += time.Since(t0)
	}

	t0 = time.Now()
	report := StepReport{
		Step:       s.step,
		TimeSlot:   timeSlot,
		StepLength: stepLength,
		FinalLoads: s.finalLoads,
		Loaded:     s.network.CurrentStepLoadedVehicles(),
		Departed:   s.network.CurrentStepDepartedVehicles(),
	}
	for _, r := range s.opts.Recorders {
		if err := r.RecordStep(report); err != nil {
			return false, fmt.Errorf("at t=%.2f recording step: %w", timeSlot, err)
		}
	}
	s.profile.StepOutputs += time.Since(t0)

	s.step++
	return false, nil
}

// computeLoads estimates the edges each running vehicle touches during the
// step by walking its route with free-flow travel times.
func (s *Simulation) computeLoads(timeSlot float64) (network.Loads, []*graph.Edge, []*graph.Edge, error) {
	stepLength := s.timeCfg.stepLength
	estimated := make(network.Loads)
	var considered, overloaded []*graph.Edge
	seenOverload := make(map[graph.EdgeID]struct{})

	for _, v := range s.network.RunningVehicles() {
		if v.DepartureTime() > timeSlot {
			break
		}
		elapsed := 0.0
		pos := v.Position()
		last := v.RouteSize() - 1
		for elapsed < stepLength && pos < last {
			e := v.EdgeAt(pos)
			if _, seen := estimated[e.ID]; !seen {
				considered = append(considered, e)
			}
			estimated.Add(e.ID, v)
			elapsed += e.MinTravelTime()

			over, err := e.IsOverloaded(len(estimated[e.ID]))
			if err != nil {
				return nil, nil, nil, err
			}
			if _, seen := seenOverload[e.ID]; over && !seen {
				seenOverload[e.ID] = struct{}{}
				overloaded = append(overloaded, e)
			}
			if elapsed < stepLength {
				pos++
			}
		}
	}
	return estimated, considered, overloaded, nil
}

// propagateOverloads computes the congested travel time of every considered
// edge, then forces each edge entering the start node of an overloaded edge to
// its own maximum travel time.
func (s *Simulation) propagateOverloads(estimated network.Loads, considered, overloaded []*graph.Edge) (map[graph.EdgeID]float64, error) {
	travelTimes := make(map[graph.EdgeID]float64, len(considered))
	for _, e := range considered {
		tt, err := e.TravelTime(float64(len(estimated[e.ID])))
		if err != nil {
			return nil, err
		}
		travelTimes[e.ID] = tt
	}
	g := s.network.Graph()
	for _, e := range overloaded {
		for _, in := range g.IncomingEdges(e.From) {
			travelTimes[in.ID] = in.MaxTravelTime()
		}
	}
	return travelTimes, nil
}

// computeStatistics adds the step's occupancy and travel time to every
// considered edge. Edges are independent, so each is updated by its own goroutine.
func computeStatistics(considered []*graph.Edge, positions network.Loads, travelTimes map[graph.EdgeID]float64) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range considered {
		g.Go(func() error {
			if err := e.IncreaseNbTotVehicles(float64(len(positions[e.ID]))); err != nil {
				return err
			}
			tt, ok := travelTimes[e.ID]
			if !ok {
				tt = e.MinTravelTime()
			}
			return e.IncreaseTravelTimeTotal(tt)
		})
	}
	return g.Wait()
}

// Finish hands the end-of-run summary to every recorder. Calling it again
// without processing a new step in between is a no-op.
func (s *Simulation) Finish() error {
	if s.ended {
		return nil
	}
	s.ended = true

	t0 := time.Now()
	summary := s.Summary()
	for _, r := range s.opts.Recorders {
		if err := r.Finish(summary); err != nil {
			return fmt.Errorf("finishing recorder: %w", err)
		}
	}
	s.profile.EndOutputs += time.Since(t0)
	s.profile.End = time.Now()
	if s.profile.Launch.IsZero() {
		s.profile.Launch = s.profile.End
	}

	log := logger.WithTag("SIM")
	log.WithField("seconds", s.profile.Duration().Seconds()).Info("simulation finished")
	log.WithField("time_slot", s.timeCfg.beginTime).Info("first time slot")
	log.WithField("time_slot", summary.FinalTimeSlot).Info("final time slot")
	log.WithField("steps", s.step).Info("number of steps")
	if s.opts.Profiling {
		s.profile.Log(s.step)
	}
	return nil
}

// Summary returns the end-of-run data at the current step.
func (s *Simulation) Summary() Summary {
	return Summary{
		BeginTime:     s.timeCfg.beginTime,
		FinalTimeSlot: s.CurrentTimeSlot(),
		StepLength:    s.timeCfg.stepLength,
		Steps:         s.step,
		Edges:         s.network.Edges(),
		Arrived:       s.network.ArrivedVehicles(),
	}
}

// Run processes steps until the simulation finishes, then calls Finish.
// Cancellation is observed between steps.
func (s *Simulation) Run(ctx context.Context) error {
	logger.Info("SIM", "starting simulation")
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("at t=%.2f: %w", s.CurrentTimeSlot(), err)
		}
		done, err := s.ProcessNextStep()
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	return s.Finish()
}

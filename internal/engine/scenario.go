package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/network"
	"github.com/cxd309/roadsim/internal/traveltime"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// BuildNetwork constructs a network from its serialisable form and admits
// every listed vehicle.
func BuildNetwork(input SimulationInput) (*network.Network, error) {
	net := network.New(nil)
	for _, nd := range input.GraphData.Nodes {
		if err := net.AddNode(graph.NewNode(nd.ID, nd.Loc.X, nd.Loc.Y)); err != nil {
			return nil, fmt.Errorf("building graph: %w", err)
		}
	}
	for _, ed := range input.GraphData.Edges {
		e := graph.NewEdgeFromData(ed.EdgeData)
		m, err := traveltime.FromParams(ed.Model)
		if err != nil {
			return nil, fmt.Errorf("edge %q: %w", ed.ID, err)
		}
		e.SetModel(m)
		if err := net.AddEdge(e); err != nil {
			return nil, fmt.Errorf("building graph: %w", err)
		}
	}
	for _, td := range input.VehicleTypes {
		if err := net.AddVehicleType(vehicle.NewTypeFromData(td)); err != nil {
			return nil, err
		}
	}
	for _, vi := range input.VehicleList {
		if _, err := AddVehicle(net, vi, input.Meta.BeginTime); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// AddVehicle resolves in against net and admits the resulting vehicle. The
// vehicle type and every route edge must exist; a negative departure time is
// replaced by timeSlot. An id already in the simulation returns the existing
// vehicle unchanged.
func AddVehicle(net *network.Network, in VehicleInput, timeSlot float64) (*vehicle.Vehicle, error) {
	if in.VehicleID == "" {
		return nil, errors.New("vehicle without id")
	}
	t := net.VehicleType(in.TypeID)
	if t == nil {
		return nil, fmt.Errorf("vehicle %q: vehicle type %q not found", in.VehicleID, in.TypeID)
	}
	route, err := resolveRoute(net, in)
	if err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", in.VehicleID, err)
	}

	depart := in.Depart
	if depart < 0 {
		depart = timeSlot
	}
	v := vehicle.New(in.VehicleID, depart, t)
	for _, e := range route {
		if err := v.AddEdgeToRoute(e); err != nil {
			return nil, err
		}
	}
	if existing, ok := net.Vehicle(v.ID()); ok {
		return existing, nil
	}
	if !net.AddVehicleToLoadedVehicles(v) {
		return nil, fmt.Errorf("vehicle %q: rejected", in.VehicleID)
	}
	return v, nil
}

func resolveRoute(net *network.Network, in VehicleInput) ([]*graph.Edge, error) {
	if len(in.Route) == 0 {
		if in.From == "" || in.To == "" {
			return nil, errors.New("empty route")
		}
		return net.Graph().RouteEdges(in.From, in.To)
	}
	route := make([]*graph.Edge, 0, len(in.Route))
	for _, id := range in.Route {
		e := net.Edge(id)
		if e == nil {
			return nil, fmt.Errorf("edge %q not found", id)
		}
		route = append(route, e)
	}
	return route, nil
}

// NewFromInput constructs a Simulation from a SimulationInput.
func NewFromInput(input SimulationInput, opts ...Option) (*Simulation, error) {
	timeCfg, err := input.Meta.TimeConfiguration()
	if err != nil {
		return nil, err
	}
	net, err := BuildNetwork(input)
	if err != nil {
		return nil, err
	}
	if input.Meta.EdgeStatistics {
		opts = append(opts, WithEdgeStatistics())
	}
	return NewSimulation(net, timeCfg, opts...), nil
}

// logRecorder collects a SimulationLog in memory.
type logRecorder struct {
	log SimulationLog
}

func (r *logRecorder) RecordStep(rep StepReport) error {
	row := SimulationLogRow{
		Step:      rep.Step,
		Timestamp: rep.TimeSlot,
		Loads:     make(map[graph.EdgeID][]string, len(rep.FinalLoads)),
	}
	for id, vs := range rep.FinalLoads {
		ids := make([]string, len(vs))
		for i, v := range vs {
			ids[i] = v.ID()
		}
		row.Loads[id] = ids
	}
	for _, v := range rep.Departed {
		row.Departed = append(row.Departed, v.ID())
	}
	r.log.Output = append(r.log.Output, row)
	return nil
}

func (r *logRecorder) Finish(s Summary) error {
	r.log.Steps = s.Steps
	r.log.FinalTime = s.FinalTimeSlot
	if r.log.Meta.EdgeStatistics {
		r.log.Edges = s.EdgeStatistics()
	}
	r.log.Trips = s.TripInfos()
	return nil
}

// RunJSON is the entry point shared by the CLI and WASM targets.
// It accepts a JSON-encoded SimulationInput, runs the simulation to the end,
// and returns a JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	rec := &logRecorder{log: SimulationLog{Meta: input.Meta}}
	sim, err := NewFromInput(input, WithRecorders(rec))
	if err != nil {
		return "", err
	}
	if err := sim.Run(context.Background()); err != nil {
		return "", err
	}

	out, err := json.Marshal(rec.log)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}

package engine

import (
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/traveltime"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string   `json:"simulation_id" yaml:"simulation_id"`
	BeginTime    float64  `json:"begin_time" yaml:"begin_time"`                   // seconds
	EndTime      *float64 `json:"end_time,omitempty" yaml:"end_time,omitempty"` // seconds, nil = until all arrive
	StepLength   float64  `json:"step_length" yaml:"step_length"`                 // seconds
	// EdgeStatistics enables per-edge occupancy and travel time accumulation.
	EdgeStatistics bool `json:"edge_statistics,omitempty" yaml:"edge_statistics,omitempty"`
}

// TimeConfiguration converts the timing fields, treating a nil end time as unbounded.
func (m SimulationMeta) TimeConfiguration() (TimeConfiguration, error) {
	end := -1.0
	if m.EndTime != nil {
		end = *m.EndTime
	}
	return NewTimeConfiguration(m.BeginTime, end, m.StepLength)
}

// EdgeInput is an edge with an optional congestion model override.
type EdgeInput struct {
	graph.EdgeData `yaml:",inline"`
	Model          *traveltime.Params `json:"model,omitempty" yaml:"model,omitempty"`
}

// GraphData is the serialisable road network.
type GraphData struct {
	Nodes []graph.NodeData `json:"nodes" yaml:"nodes"`
	Edges []EdgeInput      `json:"edges" yaml:"edges"`
}

// VehicleInput describes a vehicle to admit. The route is either an explicit
// list of edge ids or the fastest free-flow path between From and To.
// A negative Depart means the current time slot.
type VehicleInput struct {
	VehicleID string         `json:"vehicle_id" yaml:"vehicle_id"`
	TypeID    vehicle.TypeID `json:"type_id" yaml:"type_id"`
	Depart    float64        `json:"depart" yaml:"depart"` // seconds
	Route     []graph.EdgeID `json:"route,omitempty" yaml:"route,omitempty"`
	From      graph.NodeID   `json:"from,omitempty" yaml:"from,omitempty"`
	To        graph.NodeID   `json:"to,omitempty" yaml:"to,omitempty"`
}

// SimulationInput is the JSON/YAML-serialisable input to the engine.
type SimulationInput struct {
	Meta         SimulationMeta     `json:"simulation_meta" yaml:"simulation_meta"`
	GraphData    GraphData          `json:"graph_data" yaml:"graph_data"`
	VehicleTypes []vehicle.TypeData `json:"vehicle_types" yaml:"vehicle_types"`
	VehicleList  []VehicleInput     `json:"vehicle_list" yaml:"vehicle_list"`
}

// EdgeStats is the end-of-run statistics of one edge.
type EdgeStats struct {
	EdgeID        graph.EdgeID `json:"edge_id"`
	Arrived       float64      `json:"arrived"`
	Density       float64      `json:"density"`        // vehicles/km
	Speed         float64      `json:"speed"`          // m/s
	TravelTime    float64      `json:"travel_time"`    // seconds
	TrafficVolume float64      `json:"traffic_volume"` // vehicles/h
}

// TripInfo is the end-of-trip record of one arrived vehicle.
type TripInfo struct {
	VehicleID   vehicle.ID     `json:"vehicle_id"`
	TypeID      vehicle.TypeID `json:"type_id"`
	Depart      float64        `json:"depart"` // seconds
	DepartEdge  graph.EdgeID   `json:"depart_edge"`
	Arrival     float64        `json:"arrival"` // seconds
	ArrivalEdge graph.EdgeID   `json:"arrival_edge"`
	RouteLength float64        `json:"route_length"` // metres
	Duration    float64        `json:"duration"`     // seconds
	WaitSteps   int            `json:"wait_steps"`
}

// EdgeStatistics computes the statistics of every edge over s.Steps steps.
func (s Summary) EdgeStatistics() []EdgeStats {
	n := float64(s.Steps)
	out := make([]EdgeStats, len(s.Edges))
	for i, e := range s.Edges {
		out[i] = EdgeStats{
			EdgeID:        e.ID,
			Arrived:       e.ArrivedVehicles(),
			Density:       e.MeanDensity(n),
			Speed:         e.MeanSpeed(n),
			TravelTime:    e.MeanTravelTime(n),
			TrafficVolume: e.AverageTrafficVolume(n),
		}
	}
	return out
}

// TripInfos builds the trip record of every arrived vehicle.
func (s Summary) TripInfos() []TripInfo {
	out := make([]TripInfo, 0, len(s.Arrived))
	for _, v := range s.Arrived {
		ti := TripInfo{
			VehicleID:   v.ID(),
			TypeID:      v.TypeID(),
			Depart:      v.DepartureTime(),
			Arrival:     v.ArrivalTime(),
			RouteLength: v.RouteLength(),
			Duration:    v.TravelTime(),
			WaitSteps:   v.WaitSteps(),
		}
		if e := v.EdgeAt(0); e != nil {
			ti.DepartEdge = e.ID
		}
		if e := v.LastEdge(); e != nil {
			ti.ArrivalEdge = e.ID
		}
		out = append(out, ti)
	}
	return out
}

// SimulationLogRow is the per-edge vehicle ids at the end of a single step.
type SimulationLogRow struct {
	Step      int                       `json:"step"`
	Timestamp float64                   `json:"timestamp"` // seconds
	Loads     map[graph.EdgeID][]string `json:"loads"`
	Departed  []vehicle.ID              `json:"departed,omitempty"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta      SimulationMeta     `json:"simulation_meta"`
	Output    []SimulationLogRow `json:"output"`
	Steps     int                `json:"steps"`
	FinalTime float64            `json:"final_time"` // seconds
	Edges     []EdgeStats        `json:"edges,omitempty"`
	Trips     []TripInfo         `json:"trips"`
}

package graph

import (
	"fmt"
	"math"

	"github.com/cxd309/roadsim/internal/traveltime"
)

// AverageVehicleLength is the space (metres) one vehicle occupies when
// deriving a capacity from lane count and length.
const AverageVehicleLength = 4.0

// EdgeData is the serialisable input representation of an edge.
// Capacity is optional: if nil it is derived from Lanes and Length.
type EdgeData struct {
	ID         EdgeID  `json:"edge_id" yaml:"edge_id"`
	From       NodeID  `json:"from" yaml:"from"`
	To         NodeID  `json:"to" yaml:"to"`
	Length     float64 `json:"length" yaml:"length"`           // metres
	SpeedLimit float64 `json:"speed_limit" yaml:"speed_limit"` // m/s
	Priority   int     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Capacity   *int    `json:"capacity,omitempty" yaml:"capacity,omitempty"` // vehicles
	Lanes      int     `json:"lanes,omitempty" yaml:"lanes,omitempty"`
}

// CapacityFromLanes returns the number of vehicles that fit on lanes lanes of
// the given length, assuming AverageVehicleLength per vehicle.
func CapacityFromLanes(lanes int, length float64) int {
	if lanes <= 0 {
		lanes = 1
	}
	return int(length/AverageVehicleLength) * lanes
}

// Edge is a directed road segment. Its travel time follows a congestion model
// (BPR by default) evaluated against the free-flow travel time computed at
// construction.
//
// The free-flow travel time is NOT recomputed when the speed limit changes
// afterwards; every travel-time query keeps using the construction-time value.
type Edge struct {
	ID   EdgeID
	From NodeID
	To   NodeID

	capacity   int
	length     float64 // metres
	speedLimit float64 // m/s
	priority   int
	model      traveltime.Model
	fftv       float64 // seconds

	travelTimeTotal   float64
	travelTimeUpdates int
	nbTotVehicles     float64
	arrivedVehicles   float64
}

// NewEdge creates an edge using the default BPR model.
func NewEdge(id EdgeID, from, to NodeID, capacity int, length, speedLimit float64, priority int) *Edge {
	return &Edge{
		ID:         id,
		From:       from,
		To:         to,
		capacity:   capacity,
		length:     length,
		speedLimit: speedLimit,
		priority:   priority,
		model:      traveltime.DefaultBPR(),
		fftv:       length / speedLimit,
	}
}

// NewEdgeFromData creates an edge from its serialisable form.
func NewEdgeFromData(d EdgeData) *Edge {
	capacity := CapacityFromLanes(d.Lanes, d.Length)
	if d.Capacity != nil {
		capacity = *d.Capacity
	}
	return NewEdge(d.ID, d.From, d.To, capacity, d.Length, d.SpeedLimit, d.Priority)
}

// SetModel replaces the congestion model. A nil model restores the default BPR.
func (e *Edge) SetModel(m traveltime.Model) {
	if m == nil {
		m = traveltime.DefaultBPR()
	}
	e.model = m
}

// Model returns the congestion function of the edge.
func (e *Edge) Model() traveltime.Model { return e.model }

// Capacity is the number of vehicle slots on the edge.
func (e *Edge) Capacity() int { return e.capacity }

// Length is in metres.
func (e *Edge) Length() float64 { return e.length }

// SpeedLimit is the current limit in m/s.
func (e *Edge) SpeedLimit() float64 { return e.speedLimit }

// Priority is the road priority read from the network file.
func (e *Edge) Priority() int { return e.priority }

// FreeFlowTravelTime returns length/speedLimit as computed at construction.
func (e *Edge) FreeFlowTravelTime() float64 { return e.fftv }

// SetSpeedLimit changes the speed limit; negative values clamp to 0.
func (e *Edge) SetSpeedLimit(v float64) {
	if v < 0 {
		v = 0
	}
	e.speedLimit = v
}

// MinTravelTime is the free-flow travel time, or 0 for a zero-capacity edge.
func (e *Edge) MinTravelTime() float64 {
	if e.capacity == 0 {
		return 0
	}
	return e.model.Min(e.fftv)
}

// MaxTravelTime is the saturated travel time, or 0 for a zero-capacity edge.
func (e *Edge) MaxTravelTime() float64 {
	if e.capacity == 0 {
		return 0
	}
	return e.model.Max(e.fftv)
}

// TravelTime returns the travel time under load vehicles.
func (e *Edge) TravelTime(load float64) (float64, error) {
	if load < 0 {
		return 0, fmt.Errorf("edge %q travel time: %w: negative load %v", e.ID, ErrInvalidValue, load)
	}
	if load >= float64(e.capacity) {
		return e.MaxTravelTime(), nil
	}
	return e.model.At(e.fftv, load, e.capacity), nil
}

// IsOverloaded reports whether load exceeds the capacity.
func (e *Edge) IsOverloaded(load int) (bool, error) {
	if load < 0 {
		return false, fmt.Errorf("edge %q overload check: %w: negative load %d", e.ID, ErrInvalidValue, load)
	}
	return load > e.capacity, nil
}

// IncreaseNbTotVehicles adds n to the cumulative occupancy.
func (e *Edge) IncreaseNbTotVehicles(n float64) error {
	if n < 0 {
		return fmt.Errorf("edge %q vehicle total: %w: %v", e.ID, ErrInvalidValue, n)
	}
	e.nbTotVehicles += n
	return nil
}

// IncreaseTravelTimeTotal adds one step's realised travel time.
func (e *Edge) IncreaseTravelTimeTotal(t float64) error {
	if t < 0 || math.IsNaN(t) {
		return fmt.Errorf("edge %q travel time total: %w: %v", e.ID, ErrInvalidValue, t)
	}
	e.travelTimeTotal += t
	e.travelTimeUpdates++
	return nil
}

// IncreaseArrivedVehicles adds n vehicles that ended their trip on this edge.
func (e *Edge) IncreaseArrivedVehicles(n float64) error {
	if n < 0 {
		return fmt.Errorf("edge %q arrived vehicles: %w: %v", e.ID, ErrInvalidValue, n)
	}
	e.arrivedVehicles += n
	return nil
}

// NbTotVehicles is the vehicle occupancy summed over all steps.
func (e *Edge) NbTotVehicles() float64 { return e.nbTotVehicles }

// ArrivedVehicles counts the trips that ended on this edge.
func (e *Edge) ArrivedVehicles() float64 { return e.arrivedVehicles }

// TravelTimeTotal returns the cumulative travel time over nbSteps steps,
// counting the free-flow time for every step in which no traffic was recorded.
func (e *Edge) TravelTimeTotal(nbSteps float64) float64 {
	return e.travelTimeTotal + (nbSteps-float64(e.travelTimeUpdates))*e.MinTravelTime()
}

// MeanDensity returns the average number of vehicles per kilometre.
func (e *Edge) MeanDensity(nbSteps float64) float64 {
	if e.capacity == 0 || nbSteps == 0 || e.length == 0 {
		return 0
	}
	return (e.nbTotVehicles / nbSteps) / (e.length / 1000)
}

// MeanTravelTime returns the average travel time per step in seconds.
func (e *Edge) MeanTravelTime(nbSteps float64) float64 {
	if nbSteps == 0 {
		return 0
	}
	return e.TravelTimeTotal(nbSteps) / nbSteps
}

// MeanSpeed returns the average speed in m/s.
func (e *Edge) MeanSpeed(nbSteps float64) float64 {
	mtt := e.MeanTravelTime(nbSteps)
	if mtt == 0 {
		return 0
	}
	return e.length / mtt
}

// AverageTrafficVolume returns the average flow in vehicles per hour.
func (e *Edge) AverageTrafficVolume(nbSteps float64) float64 {
	return e.MeanDensity(nbSteps) * 3.6 * e.MeanSpeed(nbSteps)
}

// Congestion levels returned by CongestionLevel, named after display colours.
const (
	LevelEmpty     = "lightgray"
	LevelFree      = "green"
	LevelLight     = "yellow"
	LevelModerate  = "orange"
	LevelHeavy     = "orangered"
	LevelSaturated = "red"
)

// CongestionLevel classifies load against capacity in 20% bands.
func (e *Edge) CongestionLevel(load int) string {
	if e.capacity == 0 || load == 0 {
		return LevelEmpty
	}
	ratio := float64(load) / float64(e.capacity)
	switch {
	case ratio < 0.2:
		return LevelFree
	case ratio < 0.4:
		return LevelLight
	case ratio < 0.6:
		return LevelModerate
	case ratio < 0.8:
		return LevelHeavy
	default:
		return LevelSaturated
	}
}

// Package vehicle defines vehicle types and the per-vehicle trip state used by
// the simulation: route, position along it, dwell budget and travel time.
//
// A Vehicle never moves itself between lifecycle states; the network package
// drives every transition and only uses the mutators below.
package vehicle

import (
	"errors"
	"fmt"

	"github.com/cxd309/roadsim/internal/graph"
)

// ID is a unique string identifier for a vehicle.
type ID = string

// ErrInvalidValue is returned for negative counts or durations and for
// attempts to move a vehicle backwards along its route.
var ErrInvalidValue = errors.New("invalid value")

// State describes where a vehicle is in its lifecycle.
type State string

const (
	StateLoaded      State = "loaded"
	StateNotDeparted State = "not_departed"
	StateRunning     State = "running"
	StateArrived     State = "arrived"
)

// Vehicle is the mutable trip state of one vehicle.
type Vehicle struct {
	id            ID
	typeID        TypeID
	departureTime float64 // seconds
	maxSpeed      float64 // m/s
	length        float64 // metres

	route       []*graph.Edge
	routeLength float64 // metres
	position    int

	// remaining steps to wait on the current edge
	nbSlotsInSamePosition int
	// dwell budget set for the current edge
	nbTotSlotsForCurrentEdge int
	// wait steps accumulated over the whole trip
	nbTotSlotsInSamePosition int

	travelTime float64 // seconds
}

// New creates a vehicle of type t departing at departureTime with an empty route.
func New(id ID, departureTime float64, t *Type) *Vehicle {
	v := &Vehicle{id: id, departureTime: departureTime}
	if t != nil {
		v.typeID = t.ID()
		v.maxSpeed = t.MaxSpeed()
		v.length = t.Length()
	}
	return v
}

// NewUntyped creates a vehicle that belongs to no registered type.
func NewUntyped(id ID, departureTime, maxSpeed, length float64) *Vehicle {
	return &Vehicle{id: id, departureTime: departureTime, maxSpeed: maxSpeed, length: length}
}

// ID returns the vehicle id.
func (v *Vehicle) ID() ID { return v.id }

// TypeID returns the id of the vehicle type.
func (v *Vehicle) TypeID() TypeID { return v.typeID }

// DepartureTime is in seconds.
func (v *Vehicle) DepartureTime() float64 { return v.departureTime }

// MaxSpeed is in m/s.
func (v *Vehicle) MaxSpeed() float64 { return v.maxSpeed }

// Length is in metres.
func (v *Vehicle) Length() float64 { return v.length }

// RouteLength is the summed length of the route edges.
func (v *Vehicle) RouteLength() float64 { return v.routeLength }

// Position is the index of the current edge in the route.
func (v *Vehicle) Position() int { return v.position }

// TravelTime is the time spent on the road so far.
func (v *Vehicle) TravelTime() float64 { return v.travelTime }

// NbSlotsInSamePosition is the remaining dwell on the current edge.
func (v *Vehicle) NbSlotsInSamePosition() int { return v.nbSlotsInSamePosition }

// WaitSteps is the total number of steps the vehicle has spent dwelling.
func (v *Vehicle) WaitSteps() int { return v.nbTotSlotsInSamePosition }

// Route returns a copy of the route.
func (v *Vehicle) Route() []*graph.Edge {
	out := make([]*graph.Edge, len(v.route))
	copy(out, v.route)
	return out
}

// RouteSize is the number of edges in the route.
func (v *Vehicle) RouteSize() int { return len(v.route) }

// EdgeAt returns the route edge at index i, or nil when i is out of range.
func (v *Vehicle) EdgeAt(i int) *graph.Edge {
	if i < 0 || i >= len(v.route) {
		return nil
	}
	return v.route[i]
}

// CurrentEdge returns the edge at the current position, clamped to the last
// route edge. It is nil only for an empty route.
func (v *Vehicle) CurrentEdge() *graph.Edge {
	if len(v.route) == 0 {
		return nil
	}
	if v.position >= len(v.route) {
		return v.route[len(v.route)-1]
	}
	return v.route[v.position]
}

// LastEdge returns the final edge of the route, or nil for an empty route.
func (v *Vehicle) LastEdge() *graph.Edge {
	if len(v.route) == 0 {
		return nil
	}
	return v.route[len(v.route)-1]
}

// AddEdgeToRoute appends e to the route and extends the route length.
func (v *Vehicle) AddEdgeToRoute(e *graph.Edge) error {
	if e == nil {
		return fmt.Errorf("vehicle %q: nil route edge", v.id)
	}
	v.route = append(v.route, e)
	v.routeLength += e.Length()
	return nil
}

// clampPosition keeps position inside [0, len(route)-1], or 0 for an empty route.
func (v *Vehicle) clampPosition() {
	switch {
	case len(v.route) == 0:
		v.position = 0
	case v.position >= len(v.route):
		v.position = len(v.route) - 1
	}
}

// SetPosition moves the vehicle to route index p. Moving backwards is an
// error, unless the current index is already past the end of the route, in
// which case it is first clamped to the last valid index.
func (v *Vehicle) SetPosition(p int) error {
	if p < v.position {
		if v.position < len(v.route) {
			return fmt.Errorf("vehicle %q: %w: cannot move from position %d back to %d", v.id, ErrInvalidValue, v.position, p)
		}
		v.position = len(v.route) - 1
	}
	v.position = p
	v.clampPosition()
	return nil
}

// IncreasePosition advances the vehicle n edges, stopping at the last one.
func (v *Vehicle) IncreasePosition(n int) error {
	if n < 0 {
		return fmt.Errorf("vehicle %q: %w: position increment %d", v.id, ErrInvalidValue, n)
	}
	v.position += n
	v.clampPosition()
	return nil
}

// SetNbSlotsInSamePosition sets the dwell budget for the current edge. When it
// exceeds the remaining budget, the difference is added to the trip's wait steps.
func (v *Vehicle) SetNbSlotsInSamePosition(n int) error {
	if n < 0 {
		return fmt.Errorf("vehicle %q: %w: dwell budget %d", v.id, ErrInvalidValue, n)
	}
	v.nbTotSlotsForCurrentEdge = n
	if n > v.nbSlotsInSamePosition {
		v.nbTotSlotsInSamePosition += n - v.nbSlotsInSamePosition
	}
	v.nbSlotsInSamePosition = n
	return nil
}

// IncreaseNbSlotsInSamePosition extends the remaining dwell by n steps.
func (v *Vehicle) IncreaseNbSlotsInSamePosition(n int) error {
	if n < 0 {
		return fmt.Errorf("vehicle %q: %w: dwell increment %d", v.id, ErrInvalidValue, n)
	}
	v.nbSlotsInSamePosition += n
	v.nbTotSlotsInSamePosition += n
	return nil
}

// DecreaseNbSlotsInSamePosition shortens the remaining dwell by n steps, down to 0.
func (v *Vehicle) DecreaseNbSlotsInSamePosition(n int) error {
	if n < 0 {
		return fmt.Errorf("vehicle %q: %w: dwell decrement %d", v.id, ErrInvalidValue, n)
	}
	v.nbSlotsInSamePosition = max(v.nbSlotsInSamePosition-n, 0)
	return nil
}

// IncreaseTravelTime adds dt seconds to the trip duration.
func (v *Vehicle) IncreaseTravelTime(dt float64) error {
	if dt < 0 {
		return fmt.Errorf("vehicle %q: %w: travel time increment %v", v.id, ErrInvalidValue, dt)
	}
	v.travelTime += dt
	return nil
}

// IsArrived reports whether the vehicle is on the last edge of its route.
// A vehicle without a route is always arrived.
func (v *Vehicle) IsArrived() bool {
	return len(v.route) == 0 || v.position == len(v.route)-1
}

// ArrivalTime returns departure + travel time once arrived, -1 before.
func (v *Vehicle) ArrivalTime() float64 {
	if !v.IsArrived() {
		return -1
	}
	return v.departureTime + v.travelTime
}

// CurrentStepSpeed returns the speed over the current edge: its limit when the
// vehicle is not dwelling, else the edge length spread over the dwell budget.
func (v *Vehicle) CurrentStepSpeed(stepLength float64) float64 {
	e := v.CurrentEdge()
	if e == nil {
		return 0
	}
	if v.nbSlotsInSamePosition == 0 || v.nbTotSlotsForCurrentEdge == 0 {
		return e.SpeedLimit()
	}
	return e.Length() / (float64(v.nbTotSlotsForCurrentEdge) * stepLength)
}

// PositionOnCurrentEdge estimates the distance (metres) already covered on the
// current edge from the share of the dwell budget that has elapsed.
func (v *Vehicle) PositionOnCurrentEdge() float64 {
	e := v.CurrentEdge()
	if e == nil || v.nbSlotsInSamePosition == 0 || v.nbTotSlotsForCurrentEdge == 0 {
		return 0
	}
	done := float64(v.nbTotSlotsForCurrentEdge - v.nbSlotsInSamePosition)
	return e.Length() * done / float64(v.nbTotSlotsForCurrentEdge)
}

// Log is a point-in-time snapshot of a vehicle.
type Log struct {
	VehicleID      ID       `json:"vehicle_id"`
	TypeID         TypeID   `json:"type_id,omitempty"`
	State          State    `json:"state,omitempty"`
	DepartureTime  float64  `json:"departure_time"` // seconds
	ArrivalTime    float64  `json:"arrival_time"`   // seconds, -1 until arrived
	CurrentEdge    string   `json:"current_edge,omitempty"`
	Position       int      `json:"position"`
	PositionOnEdge float64  `json:"position_on_edge"` // metres
	Speed          float64  `json:"speed"`            // m/s
	RemainingDwell int      `json:"remaining_dwell"`  // steps
	WaitSteps      int      `json:"wait_steps"`
	TravelTime     float64  `json:"travel_time"`  // seconds
	RouteLength    float64  `json:"route_length"` // metres
	Route          []string `json:"route"`
}

// GetLog returns a point-in-time snapshot of the vehicle in the given state.
func (v *Vehicle) GetLog(state State, stepLength float64) Log {
	route := make([]string, len(v.route))
	for i, e := range v.route {
		route[i] = e.ID
	}
	l := Log{
		VehicleID:      v.id,
		TypeID:         v.typeID,
		State:          state,
		DepartureTime:  v.departureTime,
		ArrivalTime:    v.ArrivalTime(),
		Position:       v.position,
		PositionOnEdge: v.PositionOnCurrentEdge(),
		Speed:          v.CurrentStepSpeed(stepLength),
		RemainingDwell: v.nbSlotsInSamePosition,
		WaitSteps:      v.nbTotSlotsInSamePosition,
		TravelTime:     v.travelTime,
		RouteLength:    v.routeLength,
		Route:          route,
	}
	if e := v.CurrentEdge(); e != nil {
		l.CurrentEdge = e.ID
	}
	return l
}

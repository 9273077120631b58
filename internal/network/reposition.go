package network

import (
	"fmt"
	"math"

	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// RepositionRunningVehicles moves every running vehicle that has departed by
// timeSlot through one step of stepLength seconds.
//
// A vehicle that is not dwelling walks its route using travelTimes (the edge's
// free-flow time when an edge has no entry) and advances past every edge it
// can clear within the step. If it cannot leave its current edge it commits to
// a dwell of floor(travelTime/stepLength) steps, which later steps only count
// down. A dwelling vehicle advances one edge when its dwell reaches zero.
// Vehicles reaching the last edge of their route are moved to the arrived queue.
//
// Every processed vehicle is appended to finalLoads under its current edge and
// its travel time grows by stepLength. When positions is non-nil it receives
// every edge each vehicle occupied during the step.
func (n *Network) RepositionRunningVehicles(finalLoads Loads, timeSlot, stepLength float64, travelTimes map[graph.EdgeID]float64, positions Loads) error {
	still := make([]*vehicle.Vehicle, 0, len(n.running))
	for i, v := range n.running {
		if v.DepartureTime() > timeSlot {
			still = append(still, n.running[i:]...)
			break
		}
		arrived, err := moveVehicle(v, stepLength, travelTimes, positions)
		if err == nil {
			err = v.IncreaseTravelTime(stepLength)
		}
		if err != nil {
			n.running = append(still, n.running[i:]...)
			return fmt.Errorf("repositioning vehicle %q: %w", v.ID(), err)
		}
		if arrived {
			if err := n.addVehicleToArrivedVehicles(v); err != nil {
				n.running = append(still, n.running[i+1:]...)
				return fmt.Errorf("vehicle %q arrival: %w", v.ID(), err)
			}
		} else {
			still = append(still, v)
		}
		finalLoads.Add(v.CurrentEdge().ID, v)
	}
	n.running = still
	return nil
}

// moveVehicle advances v through one step and reports whether it arrived.
func moveVehicle(v *vehicle.Vehicle, stepLength float64, travelTimes map[graph.EdgeID]float64, positions Loads) (bool, error) {
	if v.NbSlotsInSamePosition() > 0 {
		if err := v.DecreaseNbSlotsInSamePosition(1); err != nil {
			return false, err
		}
		arrived := false
		if v.NbSlotsInSamePosition() == 0 {
			if err := v.IncreasePosition(1); err != nil {
				return false, err
			}
			arrived = v.IsArrived()
		}
		positions.Add(v.CurrentEdge().ID, v)
		return arrived, nil
	}

	pos := v.Position()
	last := v.RouteSize() - 1
	elapsed := 0.0
	for elapsed < stepLength && pos < last {
		e := v.EdgeAt(pos)
		elapsed += edgeTravelTime(e, travelTimes)
		if elapsed < stepLength {
			pos++
			positions.Add(e.ID, v)
		}
	}

	arrived := false
	if pos >= last {
		arrived = true
		pos = last
	} else if pos == v.Position() {
		tt := edgeTravelTime(v.EdgeAt(pos), travelTimes)
		if err := v.SetNbSlotsInSamePosition(dwellSteps(tt, stepLength)); err != nil {
			return false, err
		}
	}
	return arrived, v.SetPosition(pos)
}

func edgeTravelTime(e *graph.Edge, travelTimes map[graph.EdgeID]float64) float64 {
	if tt, ok := travelTimes[e.ID]; ok {
		return tt
	}
	return e.MinTravelTime()
}

// dwellSteps is the number of whole steps needed to cover tt seconds.
// Unbounded travel times (edges with a zero speed limit) saturate.
func dwellSteps(tt, stepLength float64) int {
	steps := math.Floor(tt / stepLength)
	switch {
	case math.IsNaN(steps) || steps < 0:
		return 0
	case steps > math.MaxInt32:
		return math.MaxInt32
	}
	return int(steps)
}

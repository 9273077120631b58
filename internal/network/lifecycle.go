package network

import (
	"cmp"
	"slices"
	"sort"

	"github.com/cxd309/roadsim/internal/vehicle"
)

// AddVehicleToLoadedVehicles admits v to the simulation. It returns false for
// a nil vehicle or one without a route. A vehicle whose id is already in the
// simulation is left untouched and reported as accepted.
func (n *Network) AddVehicleToLoadedVehicles(v *vehicle.Vehicle) bool {
	if v == nil || v.RouteSize() == 0 {
		return false
	}
	if _, exists := n.vehiclesInSimulation[v.ID()]; exists {
		return true
	}
	n.loaded = append(n.loaded, v)
	n.vehiclesInSimulation[v.ID()] = v
	return true
}

// AddVehicleToRemoveFromSimulationList schedules id for removal at the next flush.
func (n *Network) AddVehicleToRemoveFromSimulationList(id vehicle.ID) bool {
	if id == "" {
		return false
	}
	n.toRemove = append(n.toRemove, id)
	return true
}

// addVehicleToArrivedVehicles records v as arrived and credits the last edge
// of its route.
func (n *Network) addVehicleToArrivedVehicles(v *vehicle.Vehicle) error {
	if last := v.LastEdge(); last != nil {
		if err := last.IncreaseArrivedVehicles(1); err != nil {
			return err
		}
	}
	n.arrived = append(n.arrived, v)
	return nil
}

// FlushLoadedVehicles moves every loaded vehicle to the not departed queue and
// restores its departure order.
func (n *Network) FlushLoadedVehicles() {
	n.currentStepLoaded = n.currentStepLoaded[:0]
	if len(n.loaded) == 0 {
		return
	}
	n.notDeparted = append(n.notDeparted, n.loaded...)
	n.currentStepLoaded = append(n.currentStepLoaded, n.loaded...)
	n.loaded = n.loaded[:0]
	sortByDeparture(n.notDeparted)
}

// FlushVehiclesToRemoveFromSimulationList removes every scheduled vehicle.
func (n *Network) FlushVehiclesToRemoveFromSimulationList() {
	for _, id := range n.toRemove {
		n.RemoveVehicle(id)
	}
	n.toRemove = n.toRemove[:0]
}

// UpdateDepartedVehiclesForCurrentTimeStep starts every waiting vehicle whose
// departure time is not after timeSlot.
func (n *Network) UpdateDepartedVehiclesForCurrentTimeStep(timeSlot float64) {
	n.currentStepDeparted = n.currentStepDeparted[:0]
	i := 0
	for ; i < len(n.notDeparted); i++ {
		v := n.notDeparted[i]
		if v.DepartureTime() > timeSlot {
			break
		}
		n.insertRunning(v)
		n.currentStepDeparted = append(n.currentStepDeparted, v)
	}
	n.notDeparted = slices.Delete(n.notDeparted, 0, i)
}

// insertRunning places v after every running vehicle departing no later than it.
func (n *Network) insertRunning(v *vehicle.Vehicle) {
	i := sort.Search(len(n.running), func(i int) bool {
		return n.running[i].DepartureTime() > v.DepartureTime()
	})
	n.running = slices.Insert(n.running, i, v)
}

// RemoveVehicle deletes the vehicle with the given id from the first queue
// holding it, searching arrived, running, not departed then loaded, and from
// the existence index. Unknown ids are ignored.
func (n *Network) RemoveVehicle(id vehicle.ID) {
	if id == "" {
		return
	}
	for _, list := range []*[]*vehicle.Vehicle{&n.arrived, &n.running, &n.notDeparted, &n.loaded} {
		if i := findVehicle(*list, id); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
			delete(n.vehiclesInSimulation, id)
			return
		}
	}
	delete(n.vehiclesInSimulation, id)
}

func sortByDeparture(list []*vehicle.Vehicle) {
	slices.SortStableFunc(list, func(a, b *vehicle.Vehicle) int {
		return cmp.Compare(a.DepartureTime(), b.DepartureTime())
	})
}

// Package network owns the road graph, the vehicle type registry and the
// vehicle lifecycle queues, and moves running vehicles along their routes.
//
// Every admitted vehicle is in exactly one of the loaded, not departed,
// running or arrived queues. The not departed and running queues are kept
// sorted by departure time; the step algorithm relies on that order to stop
// scanning at the first vehicle that has not left yet.
package network

import (
	"cmp"
	"errors"
	"slices"

	"github.com/paulmach/orb"

	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// Loads maps an edge to the vehicles attributed to it during a step.
type Loads map[graph.EdgeID][]*vehicle.Vehicle

// Add appends v to the vehicles of edge id. Adding to a nil Loads is a no-op.
func (l Loads) Add(id graph.EdgeID, v *vehicle.Vehicle) {
	if l == nil {
		return
	}
	l[id] = append(l[id], v)
}

// Network is the road graph plus every vehicle of the simulation.
type Network struct {
	graph *graph.Graph
	types map[vehicle.TypeID]*vehicle.Type

	vehiclesInSimulation map[vehicle.ID]*vehicle.Vehicle
	loaded               []*vehicle.Vehicle
	notDeparted          []*vehicle.Vehicle
	running              []*vehicle.Vehicle
	arrived              []*vehicle.Vehicle
	toRemove             []vehicle.ID

	currentStepLoaded   []*vehicle.Vehicle
	currentStepDeparted []*vehicle.Vehicle
}

// New returns a network over g. A nil g starts from an empty graph.
func New(g *graph.Graph) *Network {
	if g == nil {
		g = graph.NewGraph()
	}
	return &Network{
		graph:                g,
		types:                make(map[vehicle.TypeID]*vehicle.Type),
		vehiclesInSimulation: make(map[vehicle.ID]*vehicle.Vehicle),
	}
}

// Graph returns the underlying road graph.
func (n *Network) Graph() *graph.Graph { return n.graph }

// AddNode adds node to the graph; duplicate ids are an error.
func (n *Network) AddNode(node *graph.Node) error { return n.graph.AddNode(node) }

// AddEdge adds e to the graph; duplicate ids are an error.
func (n *Network) AddEdge(e *graph.Edge) error { return n.graph.AddEdge(e) }

// Node returns the node with the given id, or nil.
func (n *Network) Node(id graph.NodeID) *graph.Node {
	node, _ := n.graph.Node(id)
	return node
}

// Edge returns the edge with the given id, or nil.
func (n *Network) Edge(id graph.EdgeID) *graph.Edge {
	e, _ := n.graph.Edge(id)
	return e
}

// Edges returns every edge ordered by id.
func (n *Network) Edges() []*graph.Edge { return n.graph.Edges() }

// Bounds is the bounding box of the nodes.
func (n *Network) Bounds() orb.Bound { return n.graph.Bounds() }

// AddVehicleType registers t. An already registered id keeps its first type.
func (n *Network) AddVehicleType(t *vehicle.Type) error {
	if t == nil {
		return errors.New("nil vehicle type")
	}
	if _, ok := n.types[t.ID()]; !ok {
		n.types[t.ID()] = t
	}
	return nil
}

// VehicleType returns the registered type with the given id, or nil.
func (n *Network) VehicleType(id vehicle.TypeID) *vehicle.Type { return n.types[id] }

// VehicleTypes returns every registered type sorted by id.
func (n *Network) VehicleTypes() []*vehicle.Type {
	out := make([]*vehicle.Type, 0, len(n.types))
	for _, t := range n.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *vehicle.Type) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Vehicle returns the vehicle with the given id if it is in the simulation.
func (n *Network) Vehicle(id vehicle.ID) (*vehicle.Vehicle, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := n.vehiclesInSimulation[id]
	return v, ok
}

// AllVehicles returns a copy of the existence index.
func (n *Network) AllVehicles() map[vehicle.ID]*vehicle.Vehicle {
	out := make(map[vehicle.ID]*vehicle.Vehicle, len(n.vehiclesInSimulation))
	for id, v := range n.vehiclesInSimulation {
		out[id] = v
	}
	return out
}

// VehicleCount is the number of vehicles in the simulation.
func (n *Network) VehicleCount() int { return len(n.vehiclesInSimulation) }

// LoadedVehicles returns a copy of the vehicles waiting to be flushed.
func (n *Network) LoadedVehicles() []*vehicle.Vehicle { return slices.Clone(n.loaded) }

// NotDepartedVehicles returns a copy of the vehicles waiting for departure.
func (n *Network) NotDepartedVehicles() []*vehicle.Vehicle { return slices.Clone(n.notDeparted) }

// RunningVehicles returns a copy of the vehicles on the road.
func (n *Network) RunningVehicles() []*vehicle.Vehicle { return slices.Clone(n.running) }

// ArrivedVehicles returns a copy of the vehicles that finished their trip.
func (n *Network) ArrivedVehicles() []*vehicle.Vehicle { return slices.Clone(n.arrived) }

// PendingRemovals returns the ids queued for removal.
func (n *Network) PendingRemovals() []vehicle.ID { return slices.Clone(n.toRemove) }

// CurrentStepLoadedVehicles are the vehicles moved out of the loaded queue
// during the last flush.
func (n *Network) CurrentStepLoadedVehicles() []*vehicle.Vehicle {
	return slices.Clone(n.currentStepLoaded)
}

// CurrentStepDepartedVehicles are the vehicles that started running during
// the last departure update.
func (n *Network) CurrentStepDepartedVehicles() []*vehicle.Vehicle {
	return slices.Clone(n.currentStepDeparted)
}

func findVehicle(list []*vehicle.Vehicle, id vehicle.ID) int {
	return slices.IndexFunc(list, func(v *vehicle.Vehicle) bool { return v.ID() == id })
}

// VehicleFromLoaded looks id up among vehicles waiting to be flushed.
func (n *Network) VehicleFromLoaded(id vehicle.ID) *vehicle.Vehicle {
	return lookup(n.loaded, id)
}

// VehicleFromNotDeparted looks id up among vehicles waiting for departure.
func (n *Network) VehicleFromNotDeparted(id vehicle.ID) *vehicle.Vehicle {
	return lookup(n.notDeparted, id)
}

// VehicleFromRunning looks id up among running vehicles.
func (n *Network) VehicleFromRunning(id vehicle.ID) *vehicle.Vehicle {
	return lookup(n.running, id)
}

// VehicleFromArrived looks id up among arrived vehicles.
func (n *Network) VehicleFromArrived(id vehicle.ID) *vehicle.Vehicle {
	return lookup(n.arrived, id)
}

func lookup(list []*vehicle.Vehicle, id vehicle.ID) *vehicle.Vehicle {
	if i := findVehicle(list, id); i >= 0 {
		return list[i]
	}
	return nil
}

// StateOf reports which queue holds the vehicle with the given id.
func (n *Network) StateOf(id vehicle.ID) (vehicle.State, bool) {
	switch {
	case n.VehicleFromRunning(id) != nil:
		return vehicle.StateRunning, true
	case n.VehicleFromNotDeparted(id) != nil:
		return vehicle.StateNotDeparted, true
	case n.VehicleFromLoaded(id) != nil:
		return vehicle.StateLoaded, true
	case n.VehicleFromArrived(id) != nil:
		return vehicle.StateArrived, true
	}
	return "", false
}

// AreAllVehiclesArrived reports whether no vehicle is loaded, waiting or running.
func (n *Network) AreAllVehiclesArrived() bool {
	return len(n.loaded) == 0 && len(n.notDeparted) == 0 && len(n.running) == 0
}

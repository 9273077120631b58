package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// newLine builds A→B→C→D with three 100 m edges. Speeds give free-flow
// times of 10 s (AB), 5 s (BC) and 10 s (CD).
func newLine(t *testing.T) *Network {
	t.Helper()
	n := New(nil)
	for i, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, n.AddNode(graph.NewNode(id, float64(i)*100, 0)))
	}
	require.NoError(t, n.AddEdge(graph.NewEdge("AB", "A", "B", 25, 100, 10, 1)))
	require.NoError(t, n.AddEdge(graph.NewEdge("BC", "B", "C", 25, 100, 20, 1)))
	require.NoError(t, n.AddEdge(graph.NewEdge("CD", "C", "D", 25, 100, 10, 1)))
	require.NoError(t, n.AddVehicleType(vehicle.NewType("car", 4, 30)))
	return n
}

func newVehicle(t *testing.T, n *Network, id string, depart float64, route ...string) *vehicle.Vehicle {
	t.Helper()
	v := vehicle.New(id, depart, n.VehicleType("car"))
	for _, eid := range route {
		e := n.Edge(eid)
		require.NotNil(t, e, eid)
		require.NoError(t, v.AddEdgeToRoute(e))
	}
	return v
}

func ids(vs []*vehicle.Vehicle) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID()
	}
	return out
}

// assertExclusive checks every indexed vehicle sits in exactly one queue.
func assertExclusive(t *testing.T, n *Network) {
	t.Helper()
	count := map[string]int{}
	for _, list := range [][]*vehicle.Vehicle{n.loaded, n.notDeparted, n.running, n.arrived} {
		for _, v := range list {
			count[v.ID()]++
		}
	}
	assert.Len(t, count, len(n.vehiclesInSimulation))
	for id, c := range count {
		assert.Equal(t, 1, c, "vehicle %q", id)
		_, ok := n.vehiclesInSimulation[id]
		assert.True(t, ok, "vehicle %q not indexed", id)
	}
}

func TestAddVehicleToLoadedVehicles(t *testing.T) {
	n := newLine(t)
	assert.False(t, n.AddVehicleToLoadedVehicles(nil))
	assert.False(t, n.AddVehicleToLoadedVehicles(vehicle.NewUntyped("empty", 0, 10, 4)))

	v := newVehicle(t, n, "v", 0, "AB")
	assert.True(t, n.AddVehicleToLoadedVehicles(v))
	dup := newVehicle(t, n, "v", 5, "AB", "BC")
	assert.True(t, n.AddVehicleToLoadedVehicles(dup))

	assert.Len(t, n.LoadedVehicles(), 1)
	got, ok := n.Vehicle("v")
	require.True(t, ok)
	assert.Same(t, v, got)
	assertExclusive(t, n)
}

func TestFlushLoadedVehicles_SortsByDeparture(t *testing.T) {
	n := newLine(t)
	for _, d := range []struct {
		id     string
		depart float64
	}{{"v763", 763}, {"v761", 761}, {"v762", 762}} {
		require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, d.id, d.depart, "AB", "BC")))
	}
	n.FlushLoadedVehicles()

	assert.Equal(t, []string{"v761", "v762", "v763"}, ids(n.NotDepartedVehicles()))
	assert.ElementsMatch(t, []string{"v761", "v762", "v763"}, ids(n.CurrentStepLoadedVehicles()))
	assert.Empty(t, n.LoadedVehicles())
	assertExclusive(t, n)

	n.FlushLoadedVehicles()
	assert.Empty(t, n.CurrentStepLoadedVehicles())
}

func TestUpdateDepartedVehicles_StopsAtFirstFutureDeparture(t *testing.T) {
	n := newLine(t)
	for _, id := range []string{"v763", "v761", "v762"} {
		depart := map[string]float64{"v761": 761, "v762": 762, "v763": 763}[id]
		require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, id, depart, "AB", "BC")))
	}
	n.FlushLoadedVehicles()
	n.UpdateDepartedVehiclesForCurrentTimeStep(761)

	assert.Equal(t, []string{"v761"}, ids(n.RunningVehicles()))
	assert.Equal(t, []string{"v761"}, ids(n.CurrentStepDepartedVehicles()))
	assert.Equal(t, []string{"v762", "v763"}, ids(n.NotDepartedVehicles()))
	assertExclusive(t, n)

	state, ok := n.StateOf("v762")
	require.True(t, ok)
	assert.Equal(t, vehicle.StateNotDeparted, state)
}

func TestRunningStaysSortedAfterLateAdmission(t *testing.T) {
	n := newLine(t)
	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "late", 20, "AB", "BC")))
	n.FlushLoadedVehicles()
	n.UpdateDepartedVehiclesForCurrentTimeStep(30)

	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "early", 5, "AB", "BC")))
	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "same", 20, "AB", "BC")))
	n.FlushLoadedVehicles()
	n.UpdateDepartedVehiclesForCurrentTimeStep(30)

	assert.Equal(t, []string{"early", "late", "same"}, ids(n.RunningVehicles()))
}

func TestRemoveVehicle_RoundTrip(t *testing.T) {
	n := newLine(t)
	for i, id := range []string{"a", "b", "c"} {
		require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, id, float64(i), "AB", "BC")))
	}
	n.FlushLoadedVehicles()
	n.UpdateDepartedVehiclesForCurrentTimeStep(0)
	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "d", 9, "AB")))

	for _, id := range []string{"a", "b", "d"} {
		n.RemoveVehicle(id)
		_, ok := n.Vehicle(id)
		assert.False(t, ok, id)
		_, ok = n.StateOf(id)
		assert.False(t, ok, id)
	}
	n.RemoveVehicle("missing")
	n.RemoveVehicle("")

	assert.Equal(t, 1, n.VehicleCount())
	assertExclusive(t, n)
}

func TestDeferredRemoval(t *testing.T) {
	n := newLine(t)
	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "a", 0, "AB", "BC")))
	assert.False(t, n.AddVehicleToRemoveFromSimulationList(""))
	assert.True(t, n.AddVehicleToRemoveFromSimulationList("a"))
	assert.Equal(t, []string{"a"}, n.PendingRemovals())

	_, ok := n.Vehicle("a")
	assert.True(t, ok)

	n.FlushVehiclesToRemoveFromSimulationList()
	_, ok = n.Vehicle("a")
	assert.False(t, ok)
	assert.Empty(t, n.PendingRemovals())
	assert.True(t, n.AreAllVehiclesArrived())
}

func TestAreAllVehiclesArrived(t *testing.T) {
	n := newLine(t)
	assert.True(t, n.AreAllVehiclesArrived())
	require.True(t, n.AddVehicleToLoadedVehicles(newVehicle(t, n, "a", 0, "AB", "BC")))
	assert.False(t, n.AreAllVehiclesArrived())
}

func TestVehicleTypes(t *testing.T) {
	n := newLine(t)
	assert.Error(t, n.AddVehicleType(nil))
	require.NoError(t, n.AddVehicleType(vehicle.NewType("car", 99, 99)))
	require.NoError(t, n.AddVehicleType(vehicle.NewType("bus", 12, 20)))

	assert.Equal(t, 4.0, n.VehicleType("car").Length())
	types := n.VehicleTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "bus", types[0].ID())
	assert.Nil(t, n.VehicleType("tram"))
}

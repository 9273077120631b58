package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/roadsim/internal/graph"
)

func startAll(n *Network, timeSlot float64) {
	n.FlushLoadedVehicles()
	n.UpdateDepartedVehiclesForCurrentTimeStep(timeSlot)
}

func TestReposition_DwellThenAdvanceThenArrive(t *testing.T) {
	n := newLine(t)
	v := newVehicle(t, n, "v", 0, "AB", "BC", "CD")
	require.True(t, n.AddVehicleToLoadedVehicles(v))
	startAll(n, 0)

	// AB takes exactly one step: the vehicle cannot clear it and dwells one step.
	final, pos := Loads{}, Loads{}
	require.NoError(t, n.RepositionRunningVehicles(final, 0, 10, map[graph.EdgeID]float64{}, pos))
	assert.Equal(t, 0, v.Position())
	assert.Equal(t, 1, v.NbSlotsInSamePosition())
	assert.Equal(t, []string{"v"}, ids(final["AB"]))
	assert.Empty(t, pos)

	final, pos = Loads{}, Loads{}
	require.NoError(t, n.RepositionRunningVehicles(final, 10, 10, nil, pos))
	assert.Equal(t, 1, v.Position())
	assert.Equal(t, []string{"v"}, ids(final["BC"]))
	assert.Equal(t, []string{"v"}, ids(pos["BC"]))

	// BC clears in 5 s, which puts the vehicle on its last edge.
	final = Loads{}
	require.NoError(t, n.RepositionRunningVehicles(final, 20, 10, nil, nil))
	assert.True(t, v.IsArrived())
	assert.Equal(t, []string{"v"}, ids(n.ArrivedVehicles()))
	assert.Empty(t, n.RunningVehicles())
	assert.Equal(t, []string{"v"}, ids(final["CD"]))
	assert.Equal(t, 1.0, n.Edge("CD").ArrivedVehicles())
	assert.Equal(t, 30.0, v.TravelTime())
	assert.Equal(t, 30.0, v.ArrivalTime())
	assertExclusive(t, n)
}

func TestReposition_SingleEdgeRouteArrivesImmediately(t *testing.T) {
	n := newLine(t)
	v := newVehicle(t, n, "v", 0, "AB")
	require.True(t, n.AddVehicleToLoadedVehicles(v))
	startAll(n, 0)

	final := Loads{}
	require.NoError(t, n.RepositionRunningVehicles(final, 0, 1, nil, nil))
	assert.Equal(t, []string{"v"}, ids(n.ArrivedVehicles()))
	assert.Equal(t, []string{"v"}, ids(final["AB"]))
	assert.Equal(t, 1.0, v.TravelTime())
}

func TestReposition_DwellIsFrozen(t *testing.T) {
	n := newLine(t)
	v := newVehicle(t, n, "v", 0, "AB", "BC", "CD")
	require.True(t, n.AddVehicleToLoadedVehicles(v))
	startAll(n, 0)

	congested := map[graph.EdgeID]float64{"AB": 35}
	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 0, 10, congested, nil))
	assert.Equal(t, 3, v.NbSlotsInSamePosition())
	assert.Equal(t, 3, v.WaitSteps())

	// congestion clears, the committed dwell still runs out
	free := map[graph.EdgeID]float64{"AB": 0}
	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 10, 10, free, nil))
	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 20, 10, free, nil))
	assert.Equal(t, 0, v.Position())
	assert.Equal(t, 1, v.NbSlotsInSamePosition())

	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 30, 10, free, nil))
	assert.Equal(t, 1, v.Position())
}

func TestReposition_UnboundedTravelTimeSaturates(t *testing.T) {
	n := newLine(t)
	v := newVehicle(t, n, "v", 0, "AB", "BC")
	require.True(t, n.AddVehicleToLoadedVehicles(v))
	startAll(n, 0)

	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 0, 1, map[graph.EdgeID]float64{"AB": math.Inf(1)}, nil))
	assert.Equal(t, math.MaxInt32, v.NbSlotsInSamePosition())
}

func TestReposition_SkipsVehiclesNotYetDeparted(t *testing.T) {
	n := newLine(t)
	early := newVehicle(t, n, "early", 0, "AB", "BC", "CD")
	late := newVehicle(t, n, "late", 50, "AB", "BC", "CD")
	require.True(t, n.AddVehicleToLoadedVehicles(early))
	require.True(t, n.AddVehicleToLoadedVehicles(late))
	startAll(n, 50)

	final := Loads{}
	require.NoError(t, n.RepositionRunningVehicles(final, 10, 10, nil, nil))
	assert.Equal(t, []string{"early"}, ids(final["AB"]))
	assert.Equal(t, 0.0, late.TravelTime())
	assert.Equal(t, []string{"early", "late"}, ids(n.RunningVehicles()))
}

func TestReposition_FastEdgesAreCrossedWithinOneStep(t *testing.T) {
	n := newLine(t)
	v := newVehicle(t, n, "v", 0, "AB", "BC", "CD")
	require.True(t, n.AddVehicleToLoadedVehicles(v))
	startAll(n, 0)

	pos := Loads{}
	require.NoError(t, n.RepositionRunningVehicles(Loads{}, 0, 60, nil, pos))
	assert.True(t, v.IsArrived())
	assert.Equal(t, []string{"v"}, ids(pos["AB"]))
	assert.Equal(t, []string{"v"}, ids(pos["BC"]))
	assert.Empty(t, pos["CD"])
}

func TestDwellSteps(t *testing.T) {
	assert.Equal(t, 3, dwellSteps(35, 10))
	assert.Equal(t, 0, dwellSteps(math.NaN(), 10))
	assert.Equal(t, math.MaxInt32, dwellSteps(math.Inf(1), 1))
}

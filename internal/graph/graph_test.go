package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDiamond: A→B→D (fast) and A→C→D (slow), plus F→A feeding A.
func buildDiamond(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range []*Node{
		NewNode("A", 0, 0), NewNode("B", 100, 50), NewNode("C", 100, -50),
		NewNode("D", 200, 0), NewNode("F", -100, 0),
	} {
		require.NoError(t, g.AddNode(n))
	}
	for _, e := range []*Edge{
		NewEdge("AB", "A", "B", 25, 100, 10, 1),
		NewEdge("BD", "B", "D", 25, 100, 10, 1),
		NewEdge("AC", "A", "C", 25, 100, 5, 1),
		NewEdge("CD", "C", "D", 25, 100, 5, 1),
		NewEdge("FA", "F", "A", 25, 100, 10, 1),
	} {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}

func TestEdge_FreeFlowTravelTime(t *testing.T) {
	e := NewEdge("198182234#4", "a", "b", 35, 90, 30, 3)
	assert.InDelta(t, 3.0, e.MinTravelTime(), 1e-9)
	assert.InDelta(t, 3.45, e.MaxTravelTime(), 1e-9)

	tt, err := e.TravelTime(10)
	require.NoError(t, err)
	assert.InDelta(t, 3.003, tt, 0.1)

	tt, err = e.TravelTime(36)
	require.NoError(t, err)
	assert.Equal(t, e.MaxTravelTime(), tt)
	assert.InDelta(t, 3.45, tt, 0.1)
}

func TestEdge_SaturatedLoadReturnsMax(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 29.04, 90, 3)
	for _, load := range []float64{35, 36, 1000} {
		tt, err := e.TravelTime(load)
		require.NoError(t, err)
		assert.Equal(t, e.MaxTravelTime(), tt, "load %v", load)
	}
}

func TestEdge_ZeroCapacityIsFree(t *testing.T) {
	e := NewEdge("e", "a", "b", 0, 10, 10, 0)
	assert.Equal(t, 0.0, e.MinTravelTime())
	assert.Equal(t, 0.0, e.MaxTravelTime())
	for _, load := range []float64{0, 1, 50} {
		tt, err := e.TravelTime(load)
		require.NoError(t, err)
		assert.Equal(t, 0.0, tt)
	}
}

func TestEdge_NegativeLoadRejected(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 90, 30, 3)
	_, err := e.TravelTime(-1)
	assert.True(t, errors.Is(err, ErrInvalidValue))
	_, err = e.IsOverloaded(-1)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestEdge_IsOverloaded(t *testing.T) {
	e := NewEdge("e", "a", "b", 2, 90, 30, 3)
	for load, want := range map[int]bool{0: false, 2: false, 3: true} {
		got, err := e.IsOverloaded(load)
		require.NoError(t, err)
		assert.Equal(t, want, got, "load %d", load)
	}
}

func TestEdge_SpeedLimitClampAndStaleFreeFlow(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 90, 30, 3)
	e.SetSpeedLimit(-5)
	assert.Equal(t, 0.0, e.SpeedLimit())
	e.SetSpeedLimit(60)
	assert.Equal(t, 60.0, e.SpeedLimit())
	// free-flow time stays at its construction value
	assert.InDelta(t, 3.0, e.MinTravelTime(), 1e-9)
}

func TestEdge_StatisticsValidation(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 2000, 90, 3)
	assert.Error(t, e.IncreaseNbTotVehicles(-1))
	assert.Error(t, e.IncreaseTravelTimeTotal(-1))
	assert.Error(t, e.IncreaseTravelTimeTotal(math.NaN()))
	assert.Error(t, e.IncreaseArrivedVehicles(-1))

	require.NoError(t, e.IncreaseNbTotVehicles(5))
	require.NoError(t, e.IncreaseArrivedVehicles(2))
	assert.Equal(t, 5.0, e.NbTotVehicles())
	assert.Equal(t, 2.0, e.ArrivedVehicles())
}

func TestEdge_TravelTimeTotalFillsIdleSteps(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 2000, 100, 3) // fftv = 20
	require.NoError(t, e.IncreaseTravelTimeTotal(25))
	require.NoError(t, e.IncreaseTravelTimeTotal(30))
	// 2 recorded steps + 3 idle steps at 20s each
	assert.Equal(t, 115.0, e.TravelTimeTotal(5))
	assert.Equal(t, 23.0, e.MeanTravelTime(5))
	assert.InDelta(t, 2000.0/23.0, e.MeanSpeed(5), 1e-9)
	assert.Equal(t, 0.0, e.MeanTravelTime(0))
}

func TestEdge_MeanDensityAndVolume(t *testing.T) {
	e := NewEdge("e", "a", "b", 35, 2000, 100, 3)
	require.NoError(t, e.IncreaseNbTotVehicles(40))
	// 40 vehicles over 10 steps on 2 km: 2 veh/km
	assert.Equal(t, 2.0, e.MeanDensity(10))
	assert.InDelta(t, 2.0*3.6*100, e.AverageTrafficVolume(10), 1e-9)
	assert.Equal(t, 0.0, e.MeanDensity(0))
	assert.Equal(t, 0.0, NewEdge("z", "a", "b", 0, 10, 10, 0).MeanDensity(10))
}

func TestEdge_CongestionLevel(t *testing.T) {
	e := NewEdge("e", "a", "b", 10, 40, 10, 0)
	cases := map[int]string{0: LevelEmpty, 1: LevelFree, 3: LevelLight, 5: LevelModerate, 7: LevelHeavy, 9: LevelSaturated, 12: LevelSaturated}
	for load, want := range cases {
		assert.Equal(t, want, e.CongestionLevel(load), "load %d", load)
	}
}

func TestCapacityFromLanes(t *testing.T) {
	assert.Equal(t, 14, CapacityFromLanes(2, 29.04))
	assert.Equal(t, 7, CapacityFromLanes(0, 29.04))
	c := 3
	e := NewEdgeFromData(EdgeData{ID: "x", Length: 29.04, SpeedLimit: 10, Capacity: &c, Lanes: 4})
	assert.Equal(t, 3, e.Capacity())
}

func TestGraph_AddAndLookup(t *testing.T) {
	g := buildDiamond(t)
	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, 5, g.EdgeCount())

	n, ok := g.Node("A")
	require.True(t, ok)
	assert.Equal(t, []EdgeID{"AB", "AC"}, n.OutgoingEdges())
	assert.Equal(t, []EdgeID{"FA"}, n.IncomingEdges())

	_, ok = g.Edge("missing")
	assert.False(t, ok)
	_, err := g.GetEdgeByID("missing")
	assert.Error(t, err)

	in := g.IncomingEdges("D")
	require.Len(t, in, 2)
	assert.Equal(t, "BD", in[0].ID)
	assert.Equal(t, "CD", in[1].ID)
	assert.Nil(t, g.IncomingEdges("nope"))
}

func TestGraph_RejectsDuplicatesAndDanglingEdges(t *testing.T) {
	g := buildDiamond(t)
	assert.Error(t, g.AddNode(NewNode("A", 1, 1)))
	assert.Error(t, g.AddEdge(NewEdge("AB", "A", "B", 1, 1, 1, 0)))
	assert.Error(t, g.AddEdge(NewEdge("AX", "A", "X", 1, 1, 1, 0)))
	assert.Error(t, g.AddEdge(NewEdge("XA", "X", "A", 1, 1, 1, 0)))
	assert.Error(t, g.AddNode(nil))
	assert.Error(t, g.AddEdge(nil))
}

func TestGraph_Bounds(t *testing.T) {
	g := buildDiamond(t)
	assert.Equal(t, 300.0, g.MapWidth())
	assert.Equal(t, 100.0, g.MapHeight())

	g.Clear()
	assert.True(t, g.IsEmpty())
	assert.Equal(t, 0.0, g.MapWidth())
}

func TestGraph_ShortestPathPrefersFreeFlow(t *testing.T) {
	g := buildDiamond(t)
	p, err := g.GetShortestPath("F", "D")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"F", "A", "B", "D"}, p.Route)
	assert.Equal(t, []EdgeID{"FA", "AB", "BD"}, p.Edges)
	assert.InDelta(t, 30.0, p.TravelTime, 1e-9)

	edges, err := g.RouteEdges("A", "D")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "AB", edges[0].ID)
}

func TestGraph_ShortestPathErrors(t *testing.T) {
	g := buildDiamond(t)
	_, err := g.GetShortestPath("D", "A")
	assert.Error(t, err)
	_, err = g.GetShortestPath("A", "Z")
	assert.Error(t, err)
	_, err = g.RouteEdges("A", "A")
	assert.Error(t, err)
}

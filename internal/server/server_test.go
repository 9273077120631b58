package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/vehicle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer serves A→B→C→D (AB 10 s, BC 5 s, CD 10 s at free flow) with
// steps of 10 s and a single vehicle v departing at 0.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	input := engine.SimulationInput{
		Meta: engine.SimulationMeta{SimulationID: "line", StepLength: 10},
		GraphData: engine.GraphData{
			Nodes: []graph.NodeData{
				{ID: "A"}, {ID: "B", Loc: graph.Coordinate{X: 100}},
				{ID: "C", Loc: graph.Coordinate{X: 200}}, {ID: "D", Loc: graph.Coordinate{X: 300}},
			},
			Edges: []engine.EdgeInput{
				{EdgeData: graph.EdgeData{ID: "AB", From: "A", To: "B", Length: 100, SpeedLimit: 10, Lanes: 1}},
				{EdgeData: graph.EdgeData{ID: "BC", From: "B", To: "C", Length: 100, SpeedLimit: 20, Lanes: 1}},
				{EdgeData: graph.EdgeData{ID: "CD", From: "C", To: "D", Length: 100, SpeedLimit: 10, Lanes: 1}},
			},
		},
		VehicleTypes: []vehicle.TypeData{{ID: "car", Length: 4, MaxSpeed: 30}},
		VehicleList: []engine.VehicleInput{
			{VehicleID: "v", TypeID: "car", Route: []string{"AB", "BC", "CD"}},
		},
	}
	sim, err := engine.NewFromInput(input)
	require.NoError(t, err)
	return New(sim)
}

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestStep_AdvancesUntilFinished(t *testing.T) {
	s := newTestServer(t)

	for i := 1; i <= 3; i++ {
		code, body := do(t, s, http.MethodPost, "/api/step", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, StatusSuccess, body["status"])
		assert.Equal(t, float64(i), body["step"])
		assert.Equal(t, i == 3, body["finished"])
	}

	code, body := do(t, s, http.MethodPost, "/api/step", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["finished"])
	assert.Equal(t, 3.0, body["step"], "finished simulations do not advance")

	_, body = do(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, map[string]any{"loaded": 0.0, "not_departed": 0.0, "running": 0.0, "arrived": 1.0}, body["vehicles"])
}

func TestVehicles_Queries(t *testing.T) {
	s := newTestServer(t)

	_, body := do(t, s, http.MethodGet, "/api/vehicles/ids", nil)
	assert.Equal(t, []any{"v"}, body["ids"])
	_, body = do(t, s, http.MethodGet, "/api/vehicles/count", nil)
	assert.Equal(t, 1.0, body["count"])

	do(t, s, http.MethodPost, "/api/step", nil)

	_, body = do(t, s, http.MethodGet, "/api/vehicles/loaded", nil)
	assert.Equal(t, []any{"v"}, body["ids"])
	_, body = do(t, s, http.MethodGet, "/api/vehicles/departed", nil)
	require.Len(t, body["vehicles"], 1)

	code, body := do(t, s, http.MethodGet, "/api/vehicles/v", nil)
	require.Equal(t, http.StatusOK, code)
	v := body["vehicle"].(map[string]any)
	assert.Equal(t, "v", v["vehicle_id"])
	assert.Equal(t, string(vehicle.StateRunning), v["state"])
	assert.Equal(t, "AB", v["current_edge"])

	code, body = do(t, s, http.MethodGet, "/api/vehicles/ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, StatusFailed, body["status"])
}

func TestAddVehicle(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/step", nil)

	code, body := do(t, s, http.MethodPost, "/api/vehicles", map[string]any{
		"vehicle_id": "w", "type_id": "car", "depart": -1, "route": []string{"BC", "CD"},
	})
	require.Equal(t, http.StatusCreated, code, body["description"])
	assert.Equal(t, StatusSuccess, body["status"])
	assert.Equal(t, 10.0, body["depart"], "negative departure means now")

	code, body = do(t, s, http.MethodPost, "/api/vehicles", map[string]any{
		"vehicle_id": "x", "type_id": "car", "depart": 0, "from": "A", "to": "D",
	})
	require.Equal(t, http.StatusCreated, code, body["description"])

	_, body = do(t, s, http.MethodGet, "/api/vehicles/ids", nil)
	assert.ElementsMatch(t, []any{"v", "w", "x"}, body["ids"])
}

func TestAddVehicle_Rejected(t *testing.T) {
	s := newTestServer(t)
	tests := map[string]map[string]any{
		"unknown type": {"vehicle_id": "w", "type_id": "bus", "depart": 0, "route": []string{"AB"}},
		"unknown edge": {"vehicle_id": "w", "type_id": "car", "depart": 0, "route": []string{"ZZ"}},
		"no route":     {"vehicle_id": "w", "type_id": "car", "depart": 0},
		"no depart":    {"vehicle_id": "w", "type_id": "car", "route": []string{"AB"}},
		"no id":        {"type_id": "car", "depart": 0, "route": []string{"AB"}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/api/vehicles", req)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, StatusFailed, body["status"])
		})
	}
	_, body := do(t, s, http.MethodGet, "/api/vehicles/count", nil)
	assert.Equal(t, 1.0, body["count"])
}

func TestRemoveVehicle(t *testing.T) {
	s := newTestServer(t)
	code, body := do(t, s, http.MethodDelete, "/api/vehicles/v", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusSuccess, body["status"])

	// removing twice is harmless
	code, _ = do(t, s, http.MethodDelete, "/api/vehicles/v", nil)
	assert.Equal(t, http.StatusOK, code)

	_, body = do(t, s, http.MethodGet, "/api/vehicles/count", nil)
	assert.Equal(t, 0.0, body["count"])
}

func TestEdges(t *testing.T) {
	s := newTestServer(t)

	_, body := do(t, s, http.MethodGet, "/api/edges/AB/length", nil)
	assert.Equal(t, 100.0, body["length"])

	code, body := do(t, s, http.MethodPut, "/api/edges/AB/speed", map[string]any{"speed_limit": -3})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["speed_limit"], "negative limits are clamped")
	_, body = do(t, s, http.MethodGet, "/api/edges/AB/speed", nil)
	assert.Equal(t, 0.0, body["speed_limit"])

	code, _ = do(t, s, http.MethodPut, "/api/edges/AB/speed", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = do(t, s, http.MethodGet, "/api/edges/AB/color", nil)
	assert.Equal(t, graph.LevelEmpty, body["color"])

	do(t, s, http.MethodPost, "/api/step", nil)

	_, body = do(t, s, http.MethodGet, "/api/edges/AB/color", nil)
	assert.Equal(t, graph.LevelFree, body["color"])
	assert.Equal(t, 1.0, body["load"])
	_, body = do(t, s, http.MethodGet, "/api/edges/AB/vehicles/ids", nil)
	assert.Equal(t, []any{"v"}, body["ids"])
	_, body = do(t, s, http.MethodGet, "/api/edges/AB/vehicles/count", nil)
	assert.Equal(t, 1.0, body["count"])
	_, body = do(t, s, http.MethodGet, "/api/edges/AB/vehicles", nil)
	assert.Len(t, body["vehicles"], 1)

	code, body = do(t, s, http.MethodGet, "/api/edges/ZZ/length", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, StatusFailed, body["status"])

	_, body = do(t, s, http.MethodGet, "/api/edges/ZZ/vehicles/count", nil)
	assert.Equal(t, 0.0, body["count"])
}

func TestRun_StopQueryFinishesSimulation(t *testing.T) {
	s := newTestServer(t)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), "127.0.0.1:0") }()

	code, body := do(t, s, http.MethodPost, "/api/stop", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusSuccess, body["status"])
	// a second stop is harmless
	do(t, s, http.MethodPost, "/api/stop", nil)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

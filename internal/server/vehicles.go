package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// addVehicleRequest is the body of POST /api/vehicles. A negative departure
// time means the current time slot.
type addVehicleRequest struct {
	VehicleID string         `json:"vehicle_id" binding:"required"`
	TypeID    string         `json:"type_id" binding:"required"`
	Depart    *float64       `json:"depart" binding:"required"`
	Route     []graph.EdgeID `json:"route"`
	From      graph.NodeID   `json:"from"`
	To        graph.NodeID   `json:"to"`
}

// activeVehicles returns the vehicles that have not arrived, in lifecycle order.
func (s *Server) activeVehicles() []*vehicle.Vehicle {
	net := s.sim.Network()
	out := net.LoadedVehicles()
	out = append(out, net.NotDepartedVehicles()...)
	return append(out, net.RunningVehicles()...)
}

func (s *Server) logs(vs []*vehicle.Vehicle) []vehicle.Log {
	net := s.sim.Network()
	step := s.sim.TimeConfiguration().StepLength()
	out := make([]vehicle.Log, 0, len(vs))
	for _, v := range vs {
		state, _ := net.StateOf(v.ID())
		out = append(out, v.GetLog(state, step))
	}
	return out
}

func ids(vs []*vehicle.Vehicle) []vehicle.ID {
	out := make([]vehicle.ID, len(vs))
	for i, v := range vs {
		out[i] = v.ID()
	}
	return out
}

func (s *Server) handleVehicles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"vehicles": s.logs(s.activeVehicles())})
}

func (s *Server) handleVehicleIDs(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"ids": ids(s.activeVehicles())})
}

func (s *Server) handleVehicleCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	net := s.sim.Network()
	ok(c, gin.H{"count": net.VehicleCount() - len(net.ArrivedVehicles())})
}

func (s *Server) handleLoadedVehicles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"ids": ids(s.sim.Network().CurrentStepLoadedVehicles())})
}

func (s *Server) handleDepartedVehicles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"vehicles": s.logs(s.sim.Network().CurrentStepDepartedVehicles())})
}

func (s *Server) handleVehicle(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	v, found := s.sim.Network().Vehicle(id)
	if !found {
		fail(c, http.StatusNotFound, fmt.Sprintf("The vehicle is not found for the requested id %s.", id))
		return
	}
	ok(c, gin.H{"vehicle": s.logs([]*vehicle.Vehicle{v})[0]})
}

func (s *Server) handleAddVehicle(c *gin.Context) {
	var req addVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in := engine.VehicleInput{
		VehicleID: req.VehicleID,
		TypeID:    req.TypeID,
		Depart:    *req.Depart,
		Route:     req.Route,
		From:      req.From,
		To:        req.To,
	}
	v, err := engine.AddVehicle(s.sim.Network(), in, s.sim.CurrentTimeSlot())
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("The vehicle has not been added: %v.", err))
		return
	}
	respond(c, http.StatusCreated, fmt.Sprintf("The adding of the vehicle %s has been processed successfully.", v.ID()), gin.H{
		"vehicle_id": v.ID(),
		"depart":     v.DepartureTime(),
	})
}

func (s *Server) handleRemoveVehicle(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	s.sim.Network().RemoveVehicle(id)
	respond(c, http.StatusOK, fmt.Sprintf("The execution of removing vehicle %s has been processed successfully.", id), nil)
}

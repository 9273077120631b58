package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cxd309/roadsim/internal/graph"
)

type speedRequest struct {
	SpeedLimit *float64 `json:"speed_limit" binding:"required"` // m/s
}

// edge resolves the :id parameter, answering 404 itself when it is unknown.
func (s *Server) edge(c *gin.Context) (*graph.Edge, bool) {
	id := c.Param("id")
	e := s.sim.Network().Edge(id)
	if e == nil {
		fail(c, http.StatusNotFound, fmt.Sprintf("The edge was not found for the requested id %s.", id))
		return nil, false
	}
	return e, true
}

func (s *Server) handleEdgeLength(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.edge(c); found {
		ok(c, gin.H{"edge_id": e.ID, "length": e.Length()})
	}
}

func (s *Server) handleEdgeSpeed(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.edge(c); found {
		ok(c, gin.H{"edge_id": e.ID, "speed_limit": e.SpeedLimit()})
	}
}

func (s *Server) handleSetEdgeSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.edge(c); found {
		e.SetSpeedLimit(*req.SpeedLimit)
		ok(c, gin.H{"edge_id": e.ID, "speed_limit": e.SpeedLimit()})
	}
}

// handleEdgeColor classifies the load the edge ended the last step with.
func (s *Server) handleEdgeColor(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, found := s.edge(c); found {
		load := len(s.sim.CurrentStepFinalLoadForEdge(e.ID))
		ok(c, gin.H{"edge_id": e.ID, "load": load, "capacity": e.Capacity(), "color": e.CongestionLevel(load)})
	}
}

func (s *Server) handleEdgeVehicles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"vehicles": s.logs(s.sim.CurrentStepFinalLoadForEdge(c.Param("id")))})
}

func (s *Server) handleEdgeVehicleIDs(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"ids": ids(s.sim.CurrentStepFinalLoadForEdge(c.Param("id")))})
}

func (s *Server) handleEdgeVehicleCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, gin.H{"count": len(s.sim.CurrentStepFinalLoadForEdge(c.Param("id")))})
}

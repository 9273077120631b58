// Package server exposes a running Simulation over HTTP so that an external
// client can advance it step by step, inspect and edit vehicles, and read or
// change edge state between steps.
//
// Every response is a JSON object with a "status" ("success" or "failed") and
// a "description", plus the query-specific fields. Queries are serialised:
// the simulation never sees two of them at the same time.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/logger"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Server is the remote-control API of one Simulation.
type Server struct {
	mu  sync.Mutex
	sim *engine.Simulation

	router   *gin.Engine
	stop     chan struct{}
	stopOnce sync.Once
}

// New builds the API around sim.
func New(sim *engine.Simulation) *Server {
	s := &Server{sim: sim, stop: make(chan struct{})}

	r := gin.Default()
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"*"}
	r.Use(cors.New(config))

	api := r.Group("/api")
	api.POST("/step", s.handleStep)
	api.GET("/status", s.handleStatus)
	api.POST("/stop", s.handleStop)

	vehicles := api.Group("/vehicles")
	vehicles.GET("", s.handleVehicles)
	vehicles.GET("/ids", s.handleVehicleIDs)
	vehicles.GET("/count", s.handleVehicleCount)
	vehicles.GET("/loaded", s.handleLoadedVehicles)
	vehicles.GET("/departed", s.handleDepartedVehicles)
	vehicles.GET("/:id", s.handleVehicle)
	vehicles.POST("", s.handleAddVehicle)
	vehicles.DELETE("/:id", s.handleRemoveVehicle)

	edges := api.Group("/edges/:id")
	edges.GET("/length", s.handleEdgeLength)
	edges.GET("/speed", s.handleEdgeSpeed)
	edges.PUT("/speed", s.handleSetEdgeSpeed)
	edges.GET("/color", s.handleEdgeColor)
	edges.GET("/vehicles", s.handleEdgeVehicles)
	edges.GET("/vehicles/ids", s.handleEdgeVehicleIDs)
	edges.GET("/vehicles/count", s.handleEdgeVehicleCount)

	s.router = r
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.router }

// Stopped is closed once a client has asked the server to stop.
func (s *Server) Stopped() <-chan struct{} { return s.stop }

// Run serves the API on addr until ctx is cancelled or a client sends a stop
// query, then shuts the listener down and finishes the simulation.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("API", "listening on "+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case <-s.stop:
		logger.Info("API", "stop requested by client")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API", "shutdown: "+err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Finish()
}

func respond(c *gin.Context, code int, description string, fields gin.H) {
	body := gin.H{"status": StatusSuccess, "description": description}
	if code >= http.StatusBadRequest {
		body["status"] = StatusFailed
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(code, body)
}

func ok(c *gin.Context, fields gin.H) {
	respond(c, http.StatusOK, "The query has been processed successfully.", fields)
}

func fail(c *gin.Context, code int, description string) {
	respond(c, code, description, nil)
}

func (s *Server) handleStep(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sim.ProcessNextStep(); err != nil {
		logger.WithTag("API").WithError(err).Error("step failed")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	finished := s.sim.IsFinished()
	if finished {
		if err := s.sim.Finish(); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respond(c, http.StatusOK, "The processing of the next step of the simulation has been done successfully.", gin.H{
		"finished":  finished,
		"step":      s.sim.CurrentStep(),
		"time_slot": s.sim.CurrentTimeSlot(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	net := s.sim.Network()
	ok(c, gin.H{
		"step":      s.sim.CurrentStep(),
		"time_slot": s.sim.CurrentTimeSlot(),
		"finished":  s.sim.IsFinished(),
		"vehicles": gin.H{
			"loaded":       len(net.LoadedVehicles()),
			"not_departed": len(net.NotDepartedVehicles()),
			"running":      len(net.RunningVehicles()),
			"arrived":      len(net.ArrivedVehicles()),
		},
	})
}

func (s *Server) handleStop(c *gin.Context) {
	s.stopOnce.Do(func() { close(s.stop) })
	respond(c, http.StatusOK, "The server is stopping.", nil)
}

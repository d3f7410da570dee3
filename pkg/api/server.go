// Package api is the HTTP edge over the mesh coordinator: task submission,
// status, agent management, health, and the emergency-shutdown control. A
// thin layer: handlers bind, validate, call the coordinator, and map mesh
// error kinds to status codes.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/coordinator"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/models"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/tokens"
	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/version"
)

// Server is the mesh API server.
type Server struct {
	coord   *coordinator.Coordinator
	tracker *tokens.Tracker
	logger  *slog.Logger
	http    *http.Server
}

// NewServer creates the API server. The tracker may be nil; report routes
// then return degraded payloads.
func NewServer(coord *coordinator.Coordinator, tracker *tokens.Tracker) *Server {
	return &Server{
		coord:   coord,
		tracker: tracker,
		logger:  slog.With("component", "api_server"),
	}
}

// Router builds the gin engine with all mesh routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tasks", s.submitTask)
		v1.GET("/mesh/status", s.meshStatus)
		v1.POST("/mesh/emergency-shutdown", s.emergencyShutdown)
		v1.GET("/agents/:id", s.agentDetails)
		v1.POST("/agents", s.registerAgent)
		v1.DELETE("/agents/:id", s.deregisterAgent)
		v1.POST("/agents/:id/heartbeat", s.heartbeat)
		v1.GET("/health", s.health)
		v1.GET("/reports/efficiency", s.efficiencyReport)
		v1.GET("/reports/dashboard", s.dashboard)
	}
	return router
}

// Start begins serving on addr. Blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server listening", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// submitTaskRequest is the submission body. Validation beyond tags happens
// in the coordinator.
type submitTaskRequest struct {
	TaskType             string         `json:"task_type" binding:"required"`
	Priority             int            `json:"priority"`
	CapabilitiesRequired []string       `json:"capabilities_required"`
	Payload              map[string]any `json:"payload"`
	Deadline             *time.Time     `json:"deadline"`
	MaxCost              *float64       `json:"max_cost"`
	RequesterID          string         `json:"requester_id" binding:"required"`
}

func (s *Server) submitTask(c *gin.Context) {
	var req submitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := &models.Task{
		TaskType:             req.TaskType,
		Priority:             models.TaskPriority(req.Priority),
		CapabilitiesRequired: req.CapabilitiesRequired,
		Payload:              req.Payload,
		Deadline:             req.Deadline,
		MaxCost:              req.MaxCost,
		RequesterID:          req.RequesterID,
	}

	taskID, err := s.coord.SubmitTask(c.Request.Context(), task)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

func (s *Server) meshStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.GetMeshStatus(c.Request.Context()))
}

func (s *Server) emergencyShutdown(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.coord.EmergencyShutdown(req.Reason)
	c.JSON(http.StatusOK, gin.H{"status": "shutdown", "reason": req.Reason})
}

func (s *Server) registerAgent(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.coord.RegisterAgent(c.Request.Context(), &agent); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent_id": agent.AgentID})
}

func (s *Server) agentDetails(c *gin.Context) {
	details := s.coord.GetAgentDetails(c.Param("id"))
	if details == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) deregisterAgent(c *gin.Context) {
	if err := s.coord.DeregisterAgent(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) heartbeat(c *gin.Context) {
	if err := s.coord.Heartbeat(c.Param("id")); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	report := s.coord.HealthCheck(c.Request.Context())
	report.Version = version.Full()
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) efficiencyReport(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token tracking not configured"})
		return
	}
	days := 7
	if d, err := strconv.Atoi(c.DefaultQuery("days", "7")); err == nil && d > 0 {
		days = d
	}
	c.JSON(http.StatusOK, s.tracker.GetEfficiencyReport(c.Request.Context(), days))
}

func (s *Server) dashboard(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token tracking not configured"})
		return
	}
	c.JSON(http.StatusOK, s.tracker.GetRealtimeDashboard(c.Request.Context()))
}

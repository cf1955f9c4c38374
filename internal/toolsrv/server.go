package toolsrv

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/audit"
)

// ToolCallRequest is the wire shape of POST /call.
type ToolCallRequest struct {
	Tool          string         `json:"tool" binding:"required"`
	Arguments     map[string]any `json:"arguments"`
	CorrelationID string         `json:"correlation_id"`
	WorkflowID    string         `json:"workflow_id"`
}

// ToolCallResponse is the wire shape of a successful call.
type ToolCallResponse struct {
	Tool          string         `json:"tool"`
	Result        map[string]any `json:"result"`
	CorrelationID string         `json:"correlation_id"`
	AuditHash     string         `json:"audit_hash"`
}

// Server serves the tool registry over HTTP.
type Server struct {
	registry *Registry
	recorder audit.Recorder
	stats    *CallStats
	logger   *logrus.Logger
}

func NewServer(registry *Registry, recorder audit.Recorder, stats *CallStats, logger *logrus.Logger) *Server {
	return &Server{
		registry: registry,
		recorder: recorder,
		stats:    stats,
		logger:   logger,
	}
}

// Routes registers the tool server endpoints on the engine.
func (s *Server) Routes(engine *gin.Engine) {
	engine.GET("/health", s.health)
	engine.GET("/tools", s.listTools)
	engine.GET("/state", s.state)
	engine.POST("/call", s.call)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "toolsrv"})
}

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.List()})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

func (s *Server) call(c *gin.Context) {
	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	s.stats.Inc()

	result := s.registry.Execute(c.Request.Context(), req.Tool, req.Arguments, req.WorkflowID)

	// ref_id preference: workflow id, then order id, then correlation id.
	refID := req.WorkflowID
	if refID == "" {
		if orderID, ok := result["order_id"].(string); ok {
			refID = orderID
		}
	}
	if refID == "" {
		refID = correlationID
	}

	hash, err := s.recorder.Record(c.Request.Context(), "mcp.tool_call", refID, map[string]any{
		"tool":      req.Tool,
		"arguments": req.Arguments,
		"result":    result,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}, correlationID)
	if err != nil {
		s.logger.Errorf("Failed to record tool call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit persistence failed"})
		return
	}

	s.logger.Infof("tool_call tool=%s corr=%s ref=%s hash=%.12s", req.Tool, correlationID, refID, hash)

	c.JSON(http.StatusOK, ToolCallResponse{
		Tool:          req.Tool,
		Result:        result,
		CorrelationID: correlationID,
		AuditHash:     hash,
	})
}

// Package handler exposes the trade workflow API over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/service"
	"github.com/tradeops/arbiter/internal/workflow"
)

// ApproveRequest is the body of POST /trade-requests/:id/approve.
type ApproveRequest struct {
	Approver string `json:"approver" binding:"required"`
	Comment  string `json:"comment"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TradeHandler serves the trade workflow endpoints.
type TradeHandler struct {
	tradeService *service.TradeService
	auditHub     *audit.Broadcaster
	logger       *logrus.Logger
}

func NewTradeHandler(tradeService *service.TradeService, auditHub *audit.Broadcaster, logger *logrus.Logger) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		auditHub:     auditHub,
		logger:       logger,
	}
}

func (h *TradeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "api"})
}

// SubmitAgentTrade runs the full agent pipeline for a trade request.
// Validation failures are rejected before any workflow is created.
func (h *TradeHandler) SubmitAgentTrade(c *gin.Context) {
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.tradeService.SubmitAgentTrade(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorf("agent trade failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "agent trade failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateTradeRequest creates a REQUESTED workflow for later review.
func (h *TradeHandler) CreateTradeRequest(c *gin.Context) {
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workflowID, correlationID, err := h.tradeService.CreateTradeRequest(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorf("create trade request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workflow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow_id": workflowID, "correlation_id": correlationID})
}

// ApproveTradeRequest is the human approval entry point.
func (h *TradeHandler) ApproveTradeRequest(c *gin.Context) {
	workflowID := c.Param("id")

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	correlationID, err := h.tradeService.ApproveTradeRequest(c.Request.Context(), workflowID, req.Approver, req.Comment)
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	case errors.Is(err, workflow.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "workflow is not in REQUESTED status"})
		return
	case err != nil:
		h.logger.Errorf("approve failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve workflow"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         models.StatusApproved,
		"workflow_id":    workflowID,
		"correlation_id": correlationID,
	})
}

// GetWorkflow returns the full workflow record.
func (h *TradeHandler) GetWorkflow(c *gin.Context) {
	wf, err := h.tradeService.GetWorkflow(c.Request.Context(), c.Param("id"))
	if errors.Is(err, workflow.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	if err != nil {
		h.logger.Errorf("workflow lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "workflow lookup failed"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

// ListAudit returns the most recent audit entries, newest first.
func (h *TradeHandler) ListAudit(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := h.tradeService.ListAudit(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("audit listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

// StreamAudit upgrades to a websocket that receives every newly recorded
// audit entry.
func (h *TradeHandler) StreamAudit(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	h.auditHub.Add(conn)
}

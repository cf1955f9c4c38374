// Package service wires the workflow store, the event bus and the agent
// pipeline behind the HTTP handlers.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/agent"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/bus"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/workflow"
)

// GraphRunner runs the agent pipeline for one workflow.
type GraphRunner interface {
	Run(ctx context.Context, req models.TradeRequest, workflowID, correlationID string) (*agent.State, error)
}

// AgentTradeResult is the outcome of one autonomous agent run.
type AgentTradeResult struct {
	WorkflowID      string   `json:"workflow_id"`
	CorrelationID   string   `json:"correlation_id"`
	Decision        string   `json:"decision"`
	ConfidenceScore float64  `json:"confidence_score"`
	OrderID         *string  `json:"order_id,omitempty"`
	FillPrice       *float64 `json:"fill_price,omitempty"`
	Status          string   `json:"status"`
}

// TradeService implements the trade request use cases.
type TradeService struct {
	store     workflow.Store
	publisher bus.Publisher
	runner    GraphRunner
	auditLog  audit.Lister
	logger    *logrus.Logger
}

func NewTradeService(
	store workflow.Store,
	publisher bus.Publisher,
	runner GraphRunner,
	auditLog audit.Lister,
	logger *logrus.Logger,
) *TradeService {
	return &TradeService{
		store:     store,
		publisher: publisher,
		runner:    runner,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// SubmitAgentTrade creates a workflow and drives it through the full agent
// pipeline, returning the decision and fill details when an order was placed.
func (s *TradeService) SubmitAgentTrade(ctx context.Context, req models.TradeRequest) (*AgentTradeResult, error) {
	wf, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	correlationID := uuid.NewString()
	s.logger.Infof("workflow created wf=%s corr=%s", wf.WorkflowID, correlationID)

	state, err := s.runner.Run(ctx, req, wf.WorkflowID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}

	result := &AgentTradeResult{
		WorkflowID:      wf.WorkflowID,
		CorrelationID:   correlationID,
		Decision:        state.Decision,
		ConfidenceScore: state.ConfidenceScore,
		Status:          models.StatusForDecision(state.Decision),
	}
	if orderID := state.OrderID(); orderID != "" {
		result.OrderID = &orderID
		if price, ok := state.FillPrice(); ok {
			result.FillPrice = &price
		}
		result.Status = models.StatusFilled
	}

	s.logger.Infof("agent trade completed wf=%s decision=%s confidence=%.4f order=%v",
		wf.WorkflowID, state.Decision, state.ConfidenceScore, result.OrderID)
	return result, nil
}

// CreateTradeRequest creates a REQUESTED workflow and publishes the
// workflow.requested event.
func (s *TradeService) CreateTradeRequest(ctx context.Context, req models.TradeRequest) (workflowID, correlationID string, err error) {
	wf, err := s.store.Create(ctx, req)
	if err != nil {
		return "", "", err
	}
	correlationID = uuid.NewString()

	event := bus.NewEvent(bus.TopicWorkflowRequested, correlationID, map[string]any{
		"workflow_id": wf.WorkflowID,
		"symbol":      req.Symbol,
		"side":        req.Side,
		"qty":         req.Qty,
		"reason":      req.Reason,
	})
	if err := s.publisher.Publish(bus.TopicWorkflowRequested, event); err != nil {
		s.logger.Warnf("Failed to publish workflow.requested event: %v", err)
	}

	s.logger.Infof("workflow created id=%s corr=%s", wf.WorkflowID, correlationID)
	return wf.WorkflowID, correlationID, nil
}

// ApproveTradeRequest is the human approval path. Exactly one of two racing
// calls succeeds; only the winner publishes the workflow.approved event.
func (s *TradeService) ApproveTradeRequest(ctx context.Context, workflowID, approver, comment string) (correlationID string, err error) {
	if err := s.store.Approve(ctx, workflowID, approver); err != nil {
		return "", err
	}
	correlationID = uuid.NewString()

	event := bus.NewEvent(bus.TopicWorkflowApproved, correlationID, map[string]any{
		"workflow_id": workflowID,
		"approver":    approver,
		"comment":     comment,
	})
	if err := s.publisher.Publish(bus.TopicWorkflowApproved, event); err != nil {
		s.logger.Warnf("Failed to publish workflow.approved event: %v", err)
	}

	s.logger.Infof("workflow approved id=%s by=%s corr=%s", workflowID, approver, correlationID)
	return correlationID, nil
}

// GetWorkflow returns the full workflow record.
func (s *TradeService) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return s.store.Get(ctx, workflowID)
}

// ListAudit returns the most recent audit entries, descending by audit id.
func (s *TradeService) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.auditLog.List(ctx, limit)
}

// Package models defines the domain models used across the application.
package models

import "time"

// Workflow status values. Transitions are monotonic:
// REQUESTED -> {APPROVED, DENIED, NEEDS_HUMAN} -> FILLED (from APPROVED only).
const (
	StatusRequested  = "REQUESTED"
	StatusApproved   = "APPROVED"
	StatusDenied     = "DENIED"
	StatusNeedsHuman = "NEEDS_HUMAN"
	StatusFilled     = "FILLED"
)

// Agent decisions. A decision maps onto the workflow status it produces.
const (
	DecisionApprove    = "APPROVE"
	DecisionDeny       = "DENY"
	DecisionNeedsHuman = "NEEDS_HUMAN"
)

// StatusForDecision returns the workflow status a decision resolves to.
func StatusForDecision(decision string) string {
	switch decision {
	case DecisionApprove:
		return StatusApproved
	case DecisionDeny:
		return StatusDenied
	default:
		return StatusNeedsHuman
	}
}

// TradeRequest is the immutable payload that starts a workflow.
type TradeRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Side   string  `json:"side" binding:"required,oneof=BUY SELL"`
	Qty    float64 `json:"qty" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required,min=3"`
}

// Workflow tracks one trade request from submission to terminal outcome.
type Workflow struct {
	// WorkflowID is assigned once at creation and never reused.
	WorkflowID string `gorm:"column:workflow_id;primaryKey" json:"workflow_id"`

	// Status is the current lifecycle state, see the Status* constants.
	Status string `gorm:"column:status" json:"status"`

	// Payload is the originating TradeRequest, stored as JSON. Immutable.
	Payload string `gorm:"column:payload" json:"payload"`

	// ConfidenceScore is set by the agent at decision time, in [0, 1].
	ConfidenceScore *float64 `gorm:"column:confidence_score" json:"confidence_score"`

	// Decision is APPROVE / DENY / NEEDS_HUMAN once decided.
	Decision *string `gorm:"column:decision" json:"decision"`

	// Reviewer identifies who or what decided (e.g. "agent_controller").
	Reviewer *string `gorm:"column:reviewer" json:"reviewer"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Workflow) TableName() string {
	return "workflows"
}

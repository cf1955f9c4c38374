// Package workflow owns the persisted lifecycle of trade request workflows
// and enforces the legal status transitions.
package workflow

import (
	"context"
	"errors"

	"github.com/tradeops/arbiter/internal/models"
)

var (
	// ErrNotFound is returned when no workflow exists for the given id.
	ErrNotFound = errors.New("workflow not found")

	// ErrConflict is returned when a transition precondition does not hold,
	// e.g. approving a workflow that is no longer REQUESTED.
	ErrConflict = errors.New("workflow status conflict")
)

// Store manages workflow records. The check-then-write on status is atomic
// with respect to concurrent callers on the same workflow id: of two racing
// transitions at most one succeeds, the loser observes ErrConflict.
type Store interface {
	// Create persists a new workflow with status REQUESTED and a fresh id.
	Create(ctx context.Context, req models.TradeRequest) (*models.Workflow, error)

	// Get returns the workflow or ErrNotFound.
	Get(ctx context.Context, workflowID string) (*models.Workflow, error)

	// TransitionToDecision moves REQUESTED to the status the decision maps to,
	// recording score and reviewer. ErrConflict if not REQUESTED.
	TransitionToDecision(ctx context.Context, workflowID, decision string, confidenceScore float64, reviewer string) error

	// TransitionToFilled moves APPROVED to FILLED after an order fill.
	// ErrConflict if not APPROVED.
	TransitionToFilled(ctx context.Context, workflowID, orderID string) error

	// Approve is the human approval path: REQUESTED to APPROVED.
	// ErrConflict if not REQUESTED, so it cannot be applied twice.
	Approve(ctx context.Context, workflowID, approver string) error
}

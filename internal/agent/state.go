package agent

import (
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/rag"
	"github.com/tradeops/arbiter/internal/tools"
)

// State is the per-run scratch record threaded through the pipeline stages.
// It is constructed once per run, owned exclusively by that run, and
// discarded afterwards. Each field is written by exactly one stage.
type State struct {
	Symbol        string
	Side          string
	Qty           float64
	Reason        string
	WorkflowID    string
	CorrelationID string

	// Plan is written by the PLAN stage.
	Plan map[string]any

	// Hits is written by the RETRIEVE stage; empty when retrieval degraded.
	Hits []rag.Hit

	// PriceResult and RiskResult are written by the TOOL_CALLS stage.
	PriceResult tools.CallResult
	RiskResult  tools.CallResult

	// ConfidenceScore and Evaluation are written by the EVALUATE stage.
	ConfidenceScore float64
	Evaluation      map[string]any

	// Decision is written by the DECIDE stage.
	Decision string

	// OrderResult is written by the EXECUTE stage when the trade was approved.
	OrderResult tools.CallResult
}

// NewState seeds a run state from the request and run identifiers.
func NewState(req models.TradeRequest, workflowID, correlationID string) *State {
	return &State{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Qty:           req.Qty,
		Reason:        req.Reason,
		WorkflowID:    workflowID,
		CorrelationID: correlationID,
	}
}

// OrderID returns the order identifier from the execute stage, empty when
// no order was placed or placement failed.
func (s *State) OrderID() string {
	return s.OrderResult.String("order_id")
}

// FillPrice returns the fill price when an order was placed.
func (s *State) FillPrice() (float64, bool) {
	return s.OrderResult.Float("fill_price")
}

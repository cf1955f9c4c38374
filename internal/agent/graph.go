package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/configs"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/bus"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/rag"
	"github.com/tradeops/arbiter/internal/tools"
	"github.com/tradeops/arbiter/internal/workflow"
)

// Tool names exposed by the tool invocation service.
const (
	ToolLastPrice  = "market.get_last_price"
	ToolRiskCheck  = "risk.check_trade"
	ToolPlaceOrder = "oms.place_order"
)

// Reviewer recorded on workflows decided by the agent.
const Reviewer = "agent_controller"

// Runner executes the pipeline PLAN -> RETRIEVE -> TOOL_CALLS -> EVALUATE ->
// DECIDE -> EXECUTE over one State. Each run is sequential and single
// threaded; concurrent runs for different workflows share nothing but the
// workflow store and the audit ledger.
type Runner struct {
	retriever rag.Retriever
	caller    tools.Caller
	store     workflow.Store
	recorder  audit.Recorder
	publisher bus.Publisher
	scoring   configs.ScoringConfig
	logger    *logrus.Logger
}

func NewRunner(
	retriever rag.Retriever,
	caller tools.Caller,
	store workflow.Store,
	recorder audit.Recorder,
	publisher bus.Publisher,
	scoring configs.ScoringConfig,
	logger *logrus.Logger,
) *Runner {
	return &Runner{
		retriever: retriever,
		caller:    caller,
		store:     store,
		recorder:  recorder,
		publisher: publisher,
		scoring:   scoring,
		logger:    logger,
	}
}

// stage is one named state transition of the pipeline.
type stage struct {
	name string
	run  func(ctx context.Context, st *State) error
}

// stages returns the pipeline in execution order. The only branch is inside
// EXECUTE, which is a no-op unless the decision was APPROVE.
func (r *Runner) stages() []stage {
	return []stage{
		{"PLAN", r.planStage},
		{"RETRIEVE", r.retrieveStage},
		{"TOOL_CALLS", r.toolCallsStage},
		{"EVALUATE", r.evaluateStage},
		{"DECIDE", r.decideStage},
		{"EXECUTE", r.executeStage},
	}
}

// Run executes the full pipeline and returns the final state. A stage error
// is a durability failure (workflow store or audit ledger) and aborts the
// run; collaborator failures never surface here, they degrade the inputs.
func (r *Runner) Run(ctx context.Context, req models.TradeRequest, workflowID, correlationID string) (*State, error) {
	st := NewState(req, workflowID, correlationID)

	for _, s := range r.stages() {
		r.logger.WithField("workflow_id", workflowID).Infof("Running stage %s", s.name)
		if err := s.run(ctx, st); err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.name, err)
		}
	}
	return st, nil
}

// planStage builds the descriptive execution plan. Always succeeds.
func (r *Runner) planStage(ctx context.Context, st *State) error {
	st.Plan = map[string]any{
		"steps": []any{
			"1. Retrieve relevant policies and risk rules",
			"2. Get current market price",
			"3. Run risk check",
			"4. Evaluate confidence based on risk + retrieved context",
			"5. Decide: APPROVE / DENY / NEEDS_HUMAN",
		},
		"symbol":    st.Symbol,
		"side":      st.Side,
		"qty":       st.Qty,
		"reason":    st.Reason,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, err := r.recorder.Record(ctx, "agent.plan", st.WorkflowID, st.Plan, st.CorrelationID)
	return err
}

// retrieveStage asks the retrieval service for up to 3 ranked context hits.
// A collaborator failure degrades to an empty hit list, never aborts the run.
func (r *Runner) retrieveStage(ctx context.Context, st *State) error {
	query := fmt.Sprintf(
		"Trade request: %s %v %s. Reason: %s. What are the relevant risk rules and policies?",
		st.Side, st.Qty, st.Symbol, st.Reason,
	)

	hits, err := r.retriever.Query(ctx, query, 3)
	if err != nil {
		r.logger.Warnf("Retrieval query failed (continuing without context): %v", err)
		hits = nil
	}
	st.Hits = hits

	sample := make([]any, 0, 3)
	for i, h := range st.Hits {
		if i >= 3 {
			break
		}
		sample = append(sample, map[string]any{
			"source": h.Source,
			"text":   h.Text,
			"score":  h.Score,
		})
	}

	_, err = r.recorder.Record(ctx, "rag.retrieve", st.WorkflowID, map[string]any{
		"query":      query,
		"hits_count": len(st.Hits),
		"hits":       sample,
	}, st.CorrelationID)
	return err
}

// toolCallsStage fetches the market price and the risk verdict. Each failed
// call leaves an error-marked result in the state.
func (r *Runner) toolCallsStage(ctx context.Context, st *State) error {
	st.PriceResult = r.caller.Call(ctx, ToolLastPrice,
		map[string]any{"symbol": st.Symbol},
		st.CorrelationID, st.WorkflowID)

	st.RiskResult = r.caller.Call(ctx, ToolRiskCheck,
		map[string]any{"symbol": st.Symbol, "side": st.Side, "qty": st.Qty},
		st.CorrelationID, st.WorkflowID)
	return nil
}

// evaluateStage runs the confidence scorer and records the full evaluation.
func (r *Runner) evaluateStage(ctx context.Context, st *State) error {
	st.ConfidenceScore = Score(r.scoring, st.RiskResult, st.Hits)

	var price any
	if p, ok := st.PriceResult.Float("last"); ok {
		price = p
	}
	var notional any
	if n, ok := st.RiskResult.Float("notional"); ok {
		notional = n
	}

	st.Evaluation = map[string]any{
		"confidence_score": st.ConfidenceScore,
		"risk_passed":      st.RiskResult.Bool("passed"),
		"risk_violations":  st.RiskResult.Strings("violations"),
		"rag_hits_count":   len(st.Hits),
		"price":            price,
		"notional":         notional,
		"threshold":        r.scoring.Threshold,
	}

	_, err := r.recorder.Record(ctx, "agent.evaluate", st.WorkflowID, st.Evaluation, st.CorrelationID)
	return err
}

// decideStage applies the decision policy and persists the outcome on the
// workflow. A store failure here is fatal to the run.
func (r *Runner) decideStage(ctx context.Context, st *State) error {
	st.Decision = Decide(r.scoring, st.ConfidenceScore, st.RiskResult.Bool("passed"))

	if err := r.store.TransitionToDecision(ctx, st.WorkflowID, st.Decision, st.ConfidenceScore, Reviewer); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	_, err := r.recorder.Record(ctx, "agent.decision", st.WorkflowID, map[string]any{
		"decision":         st.Decision,
		"confidence_score": st.ConfidenceScore,
		"symbol":           st.Symbol,
		"side":             st.Side,
		"qty":              st.Qty,
	}, st.CorrelationID)

	r.logger.WithField("workflow_id", st.WorkflowID).
		Infof("decision=%s confidence=%.4f", st.Decision, st.ConfidenceScore)
	return err
}

// executeStage places the order when the trade was approved. When placement
// fails the workflow stays APPROVED and no fill entry is written; this is
// accepted partial failure, not retried.
func (r *Runner) executeStage(ctx context.Context, st *State) error {
	if st.Decision != models.DecisionApprove {
		return nil
	}

	st.OrderResult = r.caller.Call(ctx, ToolPlaceOrder,
		map[string]any{"symbol": st.Symbol, "side": st.Side, "qty": st.Qty},
		st.CorrelationID, st.WorkflowID)

	orderID := st.OrderID()
	if orderID == "" {
		r.logger.Warnf("order placement failed for workflow %s: %s", st.WorkflowID, st.OrderResult.Err)
		return nil
	}

	if err := r.store.TransitionToFilled(ctx, st.WorkflowID, orderID); err != nil {
		return fmt.Errorf("failed to mark workflow filled: %w", err)
	}

	fillPrice, _ := st.FillPrice()
	fill := map[string]any{
		"workflow_id": st.WorkflowID,
		"order_id":    orderID,
		"symbol":      st.Symbol,
		"side":        st.Side,
		"qty":         st.Qty,
		"fill_price":  fillPrice,
	}
	if _, err := r.recorder.Record(ctx, "order.filled", orderID, fill, st.CorrelationID); err != nil {
		return err
	}

	event := bus.NewEvent(bus.TopicOrdersFilled, st.CorrelationID, fill)
	if err := r.publisher.Publish(bus.TopicOrdersFilled, event); err != nil {
		r.logger.Warnf("Failed to publish orders.filled event: %v", err)
	}
	return nil
}

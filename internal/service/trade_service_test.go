package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/agent"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/bus"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/tools"
	"github.com/tradeops/arbiter/internal/workflow"
)

type capturePublisher struct {
	mu     sync.Mutex
	events map[string][]bus.Event
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: map[string][]bus.Event{}}
}

func (p *capturePublisher) Publish(topic string, event bus.Event) error {
	p.mu.Lock()
	p.events[topic] = append(p.events[topic], event)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[topic])
}

type fakeRunner struct {
	decision   string
	confidence float64
	orderID    string
	fillPrice  float64
	err        error
}

func (f *fakeRunner) Run(_ context.Context, req models.TradeRequest, workflowID, correlationID string) (*agent.State, error) {
	if f.err != nil {
		return nil, f.err
	}
	state := agent.NewState(req, workflowID, correlationID)
	state.Decision = f.decision
	state.ConfidenceScore = f.confidence
	if f.orderID != "" {
		state.OrderResult = tools.CallResult{Result: map[string]any{
			"order_id":   f.orderID,
			"fill_price": f.fillPrice,
		}}
	}
	return state, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newService(runner GraphRunner, publisher bus.Publisher) (*TradeService, *workflow.MemStore) {
	store := workflow.NewMemStore()
	return NewTradeService(store, publisher, runner, audit.NewMemLedger(nil), testLogger()), store
}

func testRequest() models.TradeRequest {
	return models.TradeRequest{Symbol: "AAPL", Side: "BUY", Qty: 10, Reason: "rebalance"}
}

func TestSubmitAgentTradeFilled(t *testing.T) {
	runner := &fakeRunner{decision: models.DecisionApprove, confidence: 0.8, orderID: "ord-1", fillPrice: 105.5}
	svc, _ := newService(runner, newCapturePublisher())

	result, err := svc.SubmitAgentTrade(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SubmitAgentTrade failed: %v", err)
	}

	if result.Status != models.StatusFilled {
		t.Errorf("Expected status FILLED, got %s", result.Status)
	}
	if result.OrderID == nil || *result.OrderID != "ord-1" {
		t.Errorf("Expected order id ord-1, got %v", result.OrderID)
	}
	if result.FillPrice == nil || *result.FillPrice != 105.5 {
		t.Errorf("Expected fill price 105.5, got %v", result.FillPrice)
	}
	if result.CorrelationID == "" {
		t.Error("Expected a correlation id")
	}
}

func TestSubmitAgentTradeNeedsHuman(t *testing.T) {
	runner := &fakeRunner{decision: models.DecisionNeedsHuman, confidence: 0.3}
	svc, _ := newService(runner, newCapturePublisher())

	result, err := svc.SubmitAgentTrade(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SubmitAgentTrade failed: %v", err)
	}

	if result.Status != models.StatusNeedsHuman {
		t.Errorf("Expected status NEEDS_HUMAN, got %s", result.Status)
	}
	if result.OrderID != nil {
		t.Errorf("Expected no order id, got %v", *result.OrderID)
	}
}

func TestSubmitAgentTradeRunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pipeline broke")}
	svc, _ := newService(runner, newCapturePublisher())

	if _, err := svc.SubmitAgentTrade(context.Background(), testRequest()); err == nil {
		t.Error("Expected an error when the agent run fails")
	}
}

func TestCreateTradeRequestPublishesEvent(t *testing.T) {
	publisher := newCapturePublisher()
	svc, store := newService(&fakeRunner{}, publisher)

	workflowID, correlationID, err := svc.CreateTradeRequest(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateTradeRequest failed: %v", err)
	}
	if workflowID == "" || correlationID == "" {
		t.Fatal("Expected workflow and correlation ids")
	}

	wf, err := store.Get(context.Background(), workflowID)
	if err != nil {
		t.Fatalf("Workflow not persisted: %v", err)
	}
	if wf.Status != models.StatusRequested {
		t.Errorf("Expected status REQUESTED, got %s", wf.Status)
	}
	if n := publisher.count(bus.TopicWorkflowRequested); n != 1 {
		t.Errorf("Expected 1 workflow.requested event, got %d", n)
	}
}

func TestApproveTradeRequest(t *testing.T) {
	publisher := newCapturePublisher()
	svc, store := newService(&fakeRunner{}, publisher)
	ctx := context.Background()

	workflowID, _, err := svc.CreateTradeRequest(ctx, testRequest())
	if err != nil {
		t.Fatalf("CreateTradeRequest failed: %v", err)
	}

	if _, err := svc.ApproveTradeRequest(ctx, workflowID, "alice", "lgtm"); err != nil {
		t.Fatalf("ApproveTradeRequest failed: %v", err)
	}
	wf, _ := store.Get(ctx, workflowID)
	if wf.Status != models.StatusApproved {
		t.Errorf("Expected status APPROVED, got %s", wf.Status)
	}

	if _, err := svc.ApproveTradeRequest(ctx, workflowID, "bob", ""); !errors.Is(err, workflow.ErrConflict) {
		t.Errorf("Expected ErrConflict on second approve, got %v", err)
	}
	if _, err := svc.ApproveTradeRequest(ctx, "missing", "alice", ""); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if n := publisher.count(bus.TopicWorkflowApproved); n != 1 {
		t.Errorf("Losing approvals must not publish; expected 1 event, got %d", n)
	}
}

func TestConcurrentApprovePublishesExactlyOneEvent(t *testing.T) {
	ctx := context.Background()

	for range 25 {
		publisher := newCapturePublisher()
		svc, _ := newService(&fakeRunner{}, publisher)

		workflowID, _, err := svc.CreateTradeRequest(ctx, testRequest())
		if err != nil {
			t.Fatalf("CreateTradeRequest failed: %v", err)
		}

		const callers = 8
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ApproveTradeRequest(ctx, workflowID, "racer", "")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, workflow.ErrConflict):
			default:
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("Expected exactly one winning approval, got %d", wins)
		}
		if n := publisher.count(bus.TopicWorkflowApproved); n != 1 {
			t.Fatalf("Expected exactly one workflow.approved event, got %d", n)
		}
	}
}

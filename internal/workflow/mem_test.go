package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tradeops/arbiter/internal/models"
)

func testRequest() models.TradeRequest {
	return models.TradeRequest{Symbol: "AAPL", Side: "BUY", Qty: 10, Reason: "rebalance"}
}

func TestCreateStartsRequested(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	wf, err := store.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if wf.WorkflowID == "" {
		t.Error("Expected a generated workflow id")
	}
	if wf.Status != models.StatusRequested {
		t.Errorf("Expected status REQUESTED, got %s", wf.Status)
	}

	other, err := store.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if other.WorkflowID == wf.WorkflowID {
		t.Error("Workflow ids must never repeat")
	}
}

func TestGetUnknownWorkflow(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTransitionToDecision(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	wf, _ := store.Create(ctx, testRequest())

	if err := store.TransitionToDecision(ctx, wf.WorkflowID, models.DecisionApprove, 0.8, "agent_controller"); err != nil {
		t.Fatalf("TransitionToDecision failed: %v", err)
	}

	updated, _ := store.Get(ctx, wf.WorkflowID)
	if updated.Status != models.StatusApproved {
		t.Errorf("Expected status APPROVED, got %s", updated.Status)
	}
	if updated.ConfidenceScore == nil || *updated.ConfidenceScore != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", updated.ConfidenceScore)
	}
	if updated.Decision == nil || *updated.Decision != models.DecisionApprove {
		t.Errorf("Expected decision APPROVE, got %v", updated.Decision)
	}

	// Deciding twice must conflict: the status is no longer REQUESTED.
	err := store.TransitionToDecision(ctx, wf.WorkflowID, models.DecisionDeny, 0.2, "agent_controller")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestTransitionToFilled(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	tests := []struct {
		name     string
		decision string
		orderID  string
		wantErr  bool
	}{
		{"filled from approved", models.DecisionApprove, "ord-1", false},
		{"denied cannot fill", models.DecisionDeny, "ord-1", true},
		{"needs human cannot fill", models.DecisionNeedsHuman, "ord-1", true},
		{"empty order id rejected", models.DecisionApprove, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, _ := store.Create(ctx, testRequest())
			if err := store.TransitionToDecision(ctx, wf.WorkflowID, tt.decision, 0.8, "agent_controller"); err != nil {
				t.Fatalf("TransitionToDecision failed: %v", err)
			}

			err := store.TransitionToFilled(ctx, wf.WorkflowID, tt.orderID)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionToFilled failed: %v", err)
			}
			updated, _ := store.Get(ctx, wf.WorkflowID)
			if updated.Status != models.StatusFilled {
				t.Errorf("Expected status FILLED, got %s", updated.Status)
			}
		})
	}
}

func TestApproveOnlyFromRequested(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	wf, _ := store.Create(ctx, testRequest())

	if err := store.Approve(ctx, wf.WorkflowID, "alice"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	updated, _ := store.Get(ctx, wf.WorkflowID)
	if updated.Status != models.StatusApproved {
		t.Errorf("Expected status APPROVED, got %s", updated.Status)
	}
	if updated.Reviewer == nil || *updated.Reviewer != "alice" {
		t.Errorf("Expected reviewer alice, got %v", updated.Reviewer)
	}

	if err := store.Approve(ctx, wf.WorkflowID, "bob"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on second approve, got %v", err)
	}
	if err := store.Approve(ctx, "missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentApproveExactlyOneWins(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for range 50 {
		wf, _ := store.Create(ctx, testRequest())

		const callers = 8
		var wg sync.WaitGroup
		results := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.Approve(ctx, wf.WorkflowID, "racer")
			}()
		}
		wg.Wait()
		close(results)

		wins, conflicts := 0, 0
		for err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("Expected exactly one winner, got %d", wins)
		}
		if conflicts != callers-1 {
			t.Fatalf("Expected %d conflicts, got %d", callers-1, conflicts)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	wf, _ := store.Create(ctx, testRequest())

	loaded, _ := store.Get(ctx, wf.WorkflowID)
	loaded.Status = models.StatusFilled

	reloaded, _ := store.Get(ctx, wf.WorkflowID)
	if reloaded.Status != models.StatusRequested {
		t.Error("Mutating a returned workflow must not affect the store")
	}
}

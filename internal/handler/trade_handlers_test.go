package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/agent"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/bus"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/service"
	"github.com/tradeops/arbiter/internal/tools"
	"github.com/tradeops/arbiter/internal/workflow"
)

type stubRunner struct {
	decision   string
	confidence float64
	orderID    string
}

func (r *stubRunner) Run(_ context.Context, req models.TradeRequest, workflowID, correlationID string) (*agent.State, error) {
	state := agent.NewState(req, workflowID, correlationID)
	state.Decision = r.decision
	state.ConfidenceScore = r.confidence
	if r.orderID != "" {
		state.OrderResult = tools.CallResult{Result: map[string]any{
			"order_id":   r.orderID,
			"fill_price": 105.5,
		}}
	}
	return state, nil
}

type testEnv struct {
	router *gin.Engine
	store  *workflow.MemStore
	ledger *audit.MemLedger
}

func newTestEnv(runner service.GraphRunner) *testEnv {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := workflow.NewMemStore()
	ledger := audit.NewMemLedger(nil)
	svc := service.NewTradeService(store, bus.NewNopPublisher(logger), runner, ledger, logger)
	h := NewTradeHandler(svc, audit.NewBroadcaster(logger), logger)

	router := gin.New()
	router.GET("/health", h.Health)
	router.POST("/agent/trade", h.SubmitAgentTrade)
	router.POST("/trade-requests", h.CreateTradeRequest)
	router.POST("/trade-requests/:id/approve", h.ApproveTradeRequest)
	router.GET("/trade-requests/:id", h.GetWorkflow)
	router.GET("/audit", h.ListAudit)

	return &testEnv{router: router, store: store, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(&stubRunner{})
	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestSubmitAgentTradeValidation(t *testing.T) {
	env := newTestEnv(&stubRunner{decision: models.DecisionApprove, confidence: 0.8})

	tests := []struct {
		name string
		body string
	}{
		{"missing symbol", `{"side":"BUY","qty":10,"reason":"rebalance"}`},
		{"bad side", `{"symbol":"AAPL","side":"HOLD","qty":10,"reason":"rebalance"}`},
		{"zero qty", `{"symbol":"AAPL","side":"BUY","qty":0,"reason":"rebalance"}`},
		{"short reason", `{"symbol":"AAPL","side":"BUY","qty":10,"reason":"ab"}`},
		{"not json", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/agent/trade", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSubmitAgentTradeFilledResponse(t *testing.T) {
	env := newTestEnv(&stubRunner{decision: models.DecisionApprove, confidence: 0.8, orderID: "ord-1"})

	rec := env.do(t, http.MethodPost, "/agent/trade",
		`{"symbol":"AAPL","side":"BUY","qty":10,"reason":"rebalance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["decision"] != models.DecisionApprove {
		t.Errorf("Expected decision APPROVE, got %v", body["decision"])
	}
	if body["status"] != models.StatusFilled {
		t.Errorf("Expected status FILLED, got %v", body["status"])
	}
	if body["order_id"] != "ord-1" {
		t.Errorf("Expected order_id ord-1, got %v", body["order_id"])
	}
	if body["confidence_score"] != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", body["confidence_score"])
	}
}

func TestApproveTradeRequestLifecycle(t *testing.T) {
	env := newTestEnv(&stubRunner{})

	created := env.do(t, http.MethodPost, "/trade-requests",
		`{"symbol":"AAPL","side":"BUY","qty":10,"reason":"rebalance"}`)
	if created.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", created.Code, created.Body.String())
	}
	workflowID, _ := decodeBody(t, created)["workflow_id"].(string)
	if workflowID == "" {
		t.Fatal("Expected a workflow id")
	}

	approveBody := `{"approver":"alice","comment":"lgtm"}`

	first := env.do(t, http.MethodPost, "/trade-requests/"+workflowID+"/approve", approveBody)
	if first.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", first.Code, first.Body.String())
	}
	if decodeBody(t, first)["status"] != models.StatusApproved {
		t.Errorf("Expected APPROVED in response, got %s", first.Body.String())
	}

	second := env.do(t, http.MethodPost, "/trade-requests/"+workflowID+"/approve", approveBody)
	if second.Code != http.StatusConflict {
		t.Errorf("Expected 409 on repeat approval, got %d", second.Code)
	}

	missing := env.do(t, http.MethodPost, "/trade-requests/missing/approve", approveBody)
	if missing.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown workflow, got %d", missing.Code)
	}

	noApprover := env.do(t, http.MethodPost, "/trade-requests/"+workflowID+"/approve", `{"comment":"x"}`)
	if noApprover.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without approver, got %d", noApprover.Code)
	}
}

func TestGetWorkflow(t *testing.T) {
	env := newTestEnv(&stubRunner{})

	wf, err := env.store.Create(context.Background(),
		models.TradeRequest{Symbol: "AAPL", Side: "BUY", Qty: 10, Reason: "rebalance"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/trade-requests/"+wf.WorkflowID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if decodeBody(t, rec)["status"] != models.StatusRequested {
		t.Errorf("Expected REQUESTED, got %s", rec.Body.String())
	}

	missing := env.do(t, http.MethodGet, "/trade-requests/missing", "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", missing.Code)
	}
}

func TestListAudit(t *testing.T) {
	env := newTestEnv(&stubRunner{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.ledger.Record(ctx, "agent.plan", "wf-1", map[string]any{"n": i}, "corr-1"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/audit?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	items, _ := decodeBody(t, rec)["items"].([]any)
	if len(items) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(items))
	}

	bad := env.do(t, http.MethodGet, "/audit?limit=zero", "")
	if bad.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad limit, got %d", bad.Code)
	}
}

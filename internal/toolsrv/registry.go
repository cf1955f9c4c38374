// Package toolsrv implements the tool invocation service: a registry of
// named side-effecting operations exposed over HTTP, with every call
// recorded in the audit ledger.
package toolsrv

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/workflow"
)

// Risk limits applied by risk.check_trade.
const (
	MaxQty      = 10_000.0
	MaxNotional = 1_000_000.0
)

// OrderStore persists paper orders placed through oms.place_order.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
}

// handler executes one tool against its arguments. workflowID is the caller
// supplied workflow context, empty for standalone calls.
type handler func(ctx context.Context, args map[string]any, workflowID string) map[string]any

// Tool describes one registered tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	handler handler
}

// Registry dispatches tool calls to their handlers.
type Registry struct {
	tools     map[string]Tool
	orders    OrderStore
	workflows workflow.Store
	auditLog  audit.Lister
	logger    *logrus.Logger
}

func NewRegistry(orders OrderStore, workflows workflow.Store, auditLog audit.Lister, logger *logrus.Logger) *Registry {
	r := &Registry{
		orders:    orders,
		workflows: workflows,
		auditLog:  auditLog,
		logger:    logger,
	}
	r.tools = map[string]Tool{
		"market.get_last_price": {
			Description: "Get the last known price for a symbol",
			Parameters: map[string]any{
				"symbol": map[string]any{"type": "string", "required": true},
			},
			handler: r.getLastPrice,
		},
		"risk.check_trade": {
			Description: "Check if a trade passes risk rules",
			Parameters: map[string]any{
				"symbol": map[string]any{"type": "string", "required": true},
				"side":   map[string]any{"type": "string", "required": true, "enum": []string{"BUY", "SELL"}},
				"qty":    map[string]any{"type": "number", "required": true},
			},
			handler: r.checkTrade,
		},
		"oms.place_order": {
			Description: "Place a paper order (fills immediately)",
			Parameters: map[string]any{
				"symbol": map[string]any{"type": "string", "required": true},
				"side":   map[string]any{"type": "string", "required": true, "enum": []string{"BUY", "SELL"}},
				"qty":    map[string]any{"type": "number", "required": true},
			},
			handler: r.placeOrder,
		},
		"db.get_workflow": {
			Description: "Retrieve a workflow by ID",
			Parameters: map[string]any{
				"workflow_id": map[string]any{"type": "string", "required": true},
			},
			handler: r.getWorkflow,
		},
		"db.list_audit": {
			Description: "List recent audit log entries",
			Parameters: map[string]any{
				"limit": map[string]any{"type": "integer", "required": false, "default": 20},
			},
			handler: r.listAudit,
		},
	}
	return r
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for name, t := range r.tools {
		t.Name = name
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches a tool call. Unknown tool names yield an error payload
// enumerating the available tools.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, workflowID string) map[string]any {
	tool, ok := r.tools[name]
	if !ok {
		available := make([]string, 0, len(r.tools))
		for n := range r.tools {
			available = append(available, n)
		}
		sort.Strings(available)
		return map[string]any{
			"error":     fmt.Sprintf("unknown tool: %s", name),
			"available": available,
		}
	}
	return tool.handler(ctx, args, workflowID)
}

// SyntheticPrice derives a deterministic demo price from the symbol so the
// market and risk tools agree without a live feed.
func SyntheticPrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return 100 + float64(h.Sum32()%1000)/10.0
}

func (r *Registry) getLastPrice(_ context.Context, args map[string]any, _ string) map[string]any {
	symbol := strings.ToUpper(stringArg(args, "symbol"))
	return map[string]any{
		"symbol": symbol,
		"last":   SyntheticPrice(symbol),
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (r *Registry) checkTrade(_ context.Context, args map[string]any, _ string) map[string]any {
	symbol := strings.ToUpper(stringArg(args, "symbol"))
	side := strings.ToUpper(stringArg(args, "side"))
	qty := floatArg(args, "qty")

	price := SyntheticPrice(symbol)
	notional := price * qty

	var violations []string
	if qty > MaxQty {
		violations = append(violations, fmt.Sprintf("qty %v exceeds max 10,000 units", qty))
	}
	if notional > MaxNotional {
		violations = append(violations, fmt.Sprintf("notional $%.0f exceeds $1,000,000 limit", notional))
	}
	if side != "BUY" && side != "SELL" {
		violations = append(violations, fmt.Sprintf("invalid side: %s", side))
	}

	return map[string]any{
		"symbol":     symbol,
		"side":       side,
		"qty":        qty,
		"notional":   math.Round(notional*100) / 100,
		"passed":     len(violations) == 0,
		"violations": violations,
	}
}

func (r *Registry) placeOrder(ctx context.Context, args map[string]any, workflowID string) map[string]any {
	symbol := strings.ToUpper(stringArg(args, "symbol"))
	side := strings.ToUpper(stringArg(args, "side"))
	qty := floatArg(args, "qty")

	order := &models.Order{
		OrderID:    uuid.NewString(),
		WorkflowID: workflowID,
		Status:     models.StatusFilled,
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		FillPrice:  SyntheticPrice(symbol),
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.orders.CreateOrder(ctx, order); err != nil {
		r.logger.Errorf("Failed to persist order: %v", err)
		return map[string]any{"error": fmt.Sprintf("order persistence failed: %v", err)}
	}

	r.logger.Infof("paper order placed order_id=%s symbol=%s side=%s qty=%v fill=%v",
		order.OrderID, symbol, side, qty, order.FillPrice)

	return map[string]any{
		"order_id":   order.OrderID,
		"symbol":     symbol,
		"side":       side,
		"qty":        qty,
		"fill_price": order.FillPrice,
		"status":     order.Status,
	}
}

func (r *Registry) getWorkflow(ctx context.Context, args map[string]any, _ string) map[string]any {
	workflowID := stringArg(args, "workflow_id")
	wf, err := r.workflows.Get(ctx, workflowID)
	if err != nil {
		return map[string]any{"error": "workflow not found", "workflow_id": workflowID}
	}
	out := map[string]any{
		"workflow_id": wf.WorkflowID,
		"status":      wf.Status,
		"payload":     wf.Payload,
		"created_at":  wf.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  wf.UpdatedAt.Format(time.RFC3339Nano),
	}
	return out
}

func (r *Registry) listAudit(ctx context.Context, args map[string]any, _ string) map[string]any {
	limit := int(floatArg(args, "limit"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := r.auditLog.List(ctx, limit)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("audit lookup failed: %v", err)}
	}

	items := make([]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"audit_id":       e.AuditID,
			"kind":           e.Kind,
			"ref_id":         e.RefID,
			"hash":           e.Hash,
			"correlation_id": e.CorrelationID,
			"created_at":     e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return map[string]any{"items": items, "count": len(items)}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

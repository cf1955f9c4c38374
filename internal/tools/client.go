// Package tools provides the client for the tool invocation service and the
// degraded-vs-ok result type threaded through the agent pipeline.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// CallResult carries either a tool result or an error marker. A failed call
// degrades the decision inputs, it never aborts the run.
type CallResult struct {
	Result map[string]any
	Err    string
}

// Failed reports whether the call produced an error marker instead of a result.
func (r CallResult) Failed() bool {
	return r.Err != ""
}

// Bool returns the named result field as a bool, false when absent.
func (r CallResult) Bool(key string) bool {
	v, _ := r.Result[key].(bool)
	return v
}

// Float returns the named result field as a float64 and whether it was present.
func (r CallResult) Float(key string) (float64, bool) {
	v, ok := r.Result[key].(float64)
	return v, ok
}

// String returns the named result field as a string, empty when absent.
func (r CallResult) String(key string) string {
	v, _ := r.Result[key].(string)
	return v
}

// Strings returns the named result field as a string slice.
func (r CallResult) Strings(key string) []string {
	raw, ok := r.Result[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Caller invokes a named tool with arguments.
type Caller interface {
	Call(ctx context.Context, tool string, arguments map[string]any, correlationID, workflowID string) CallResult
}

// Client calls the tool invocation HTTP API. Outbound calls are rate limited
// and bounded by the configured timeout.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

type callRequest struct {
	Tool          string         `json:"tool"`
	Arguments     map[string]any `json:"arguments"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	WorkflowID    string         `json:"workflow_id,omitempty"`
}

type callResponse struct {
	Tool          string         `json:"tool"`
	Result        map[string]any `json:"result"`
	CorrelationID string         `json:"correlation_id"`
	AuditHash     string         `json:"audit_hash"`
}

// Call executes the named tool. Any transport, timeout or server failure is
// folded into an error-marked CallResult.
func (c *Client) Call(ctx context.Context, tool string, arguments map[string]any, correlationID, workflowID string) CallResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return CallResult{Err: err.Error()}
	}

	body, err := json.Marshal(callRequest{
		Tool:          tool,
		Arguments:     arguments,
		CorrelationID: correlationID,
		WorkflowID:    workflowID,
	})
	if err != nil {
		return CallResult{Err: fmt.Sprintf("failed to marshal call: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return CallResult{Err: fmt.Sprintf("failed to build call request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return CallResult{Err: fmt.Sprintf("tool call %s failed: %v", tool, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CallResult{Err: fmt.Sprintf("tool call %s returned status %d", tool, resp.StatusCode)}
	}

	var out callResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CallResult{Err: fmt.Sprintf("failed to decode tool response: %v", err)}
	}

	if msg, ok := out.Result["error"].(string); ok && msg != "" {
		return CallResult{Result: out.Result, Err: msg}
	}
	return CallResult{Result: out.Result}
}

package toolsrv

import (
	"sync"
	"time"
)

// CallStats counts served tool calls. It is constructed once at startup and
// injected into the server; correlation ids stay request scoped and are
// never stored here, so concurrent runs cannot interfere.
type CallStats struct {
	mu        sync.Mutex
	calls     int64
	startedAt time.Time
}

func NewCallStats() *CallStats {
	return &CallStats{startedAt: time.Now().UTC()}
}

func (s *CallStats) Inc() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

// Snapshot returns the counters for the /state debug endpoint.
func (s *CallStats) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"total_calls": s.calls,
		"started_at":  s.startedAt.Format(time.RFC3339Nano),
	}
}

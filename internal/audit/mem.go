package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tradeops/arbiter/internal/models"
)

// MemLedger is an in-memory ledger for local development and tests.
// Safe for concurrent use.
type MemLedger struct {
	mu      sync.Mutex
	nextID  int64
	entries []models.AuditEntry
	hub     *Broadcaster
}

func NewMemLedger(hub *Broadcaster) *MemLedger {
	return &MemLedger{nextID: 1, hub: hub}
}

func (l *MemLedger) Record(_ context.Context, kind, refID string, data map[string]any, correlationID string) (string, error) {
	hash, err := Hash(kind, refID, data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit data: %w", err)
	}

	l.mu.Lock()
	entry := models.AuditEntry{
		AuditID:       l.nextID,
		Kind:          kind,
		RefID:         refID,
		Data:          string(raw),
		Hash:          hash,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
	l.nextID++
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.hub != nil {
		l.hub.Notify(entry)
	}
	return hash, nil
}

func (l *MemLedger) List(_ context.Context, limit int) ([]models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]models.AuditEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

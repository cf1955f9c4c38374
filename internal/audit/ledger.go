package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tradeops/arbiter/internal/models"
)

// Ledger persists audit entries in Postgres. Entries are append-only:
// nothing in this package updates or deletes a row once written.
type Ledger struct {
	db  *gorm.DB
	hub *Broadcaster
}

// NewLedger creates a database-backed ledger. hub may be nil when no live
// audit feed is wanted.
func NewLedger(db *gorm.DB, hub *Broadcaster) *Ledger {
	return &Ledger{db: db, hub: hub}
}

func (l *Ledger) Record(ctx context.Context, kind, refID string, data map[string]any, correlationID string) (string, error) {
	hash, err := Hash(kind, refID, data)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit data: %w", err)
	}

	entry := models.AuditEntry{
		Kind:          kind,
		RefID:         refID,
		Data:          string(raw),
		Hash:          hash,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return "", fmt.Errorf("failed to append audit entry: %w", err)
	}

	if l.hub != nil {
		l.hub.Notify(entry)
	}
	return hash, nil
}

func (l *Ledger) List(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := l.db.WithContext(ctx).
		Order("audit_id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

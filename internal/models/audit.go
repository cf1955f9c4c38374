package models

import "time"

// AuditEntry is an append-only, hash-verifiable record of a decision-relevant
// fact. Entries are never mutated or deleted; the hash is recomputable from
// (kind, ref_id, data) by any verifier.
type AuditEntry struct {
	// AuditID is assigned monotonically by the database.
	AuditID int64 `gorm:"column:audit_id;primaryKey;autoIncrement" json:"audit_id"`

	// Kind is the category tag, e.g. "agent.plan", "order.filled".
	Kind string `gorm:"column:kind" json:"kind"`

	// RefID is the entity the entry concerns: workflow id, order id or symbol.
	RefID string `gorm:"column:ref_id" json:"ref_id"`

	// Data is the structured payload, stored as JSON.
	Data string `gorm:"column:data" json:"data"`

	// Hash is the sha256 digest over the canonical form of {kind, ref_id, data}.
	Hash string `gorm:"column:hash" json:"hash"`

	// CorrelationID threads all entries produced by one logical operation.
	CorrelationID string `gorm:"column:correlation_id" json:"correlation_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_logs"
}

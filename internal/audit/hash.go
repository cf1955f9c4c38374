// Package audit implements the append-only, hash-verifiable audit ledger.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tradeops/arbiter/internal/models"
)

// Recorder appends one audit entry and returns its digest.
// Recording the same fact twice yields two entries with identical hash
// but distinct audit ids; callers are responsible for not double-emitting.
type Recorder interface {
	Record(ctx context.Context, kind, refID string, data map[string]any, correlationID string) (string, error)
}

// Lister returns the most recent entries, descending by audit id.
type Lister interface {
	List(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Hash computes the sha256 digest over the canonical JSON serialization of
// {kind, ref_id, data}. encoding/json emits map keys sorted, recursively,
// so any verifier holding the three fields reproduces the digest.
func Hash(kind, refID string, data map[string]any) (string, error) {
	raw, err := json.Marshal(map[string]any{
		"data":   data,
		"kind":   kind,
		"ref_id": refID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize audit payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/bus"
)

// PublishingRecorder records through the wrapped Recorder and then publishes
// an audit.logged event carrying the same hash and correlation id.
// Publish failure does not roll back the recorded entry: ledger durability
// is independent of bus delivery.
type PublishingRecorder struct {
	next      Recorder
	publisher bus.Publisher
	logger    *logrus.Logger
}

func NewPublishingRecorder(next Recorder, publisher bus.Publisher, logger *logrus.Logger) *PublishingRecorder {
	return &PublishingRecorder{next: next, publisher: publisher, logger: logger}
}

func (r *PublishingRecorder) Record(ctx context.Context, kind, refID string, data map[string]any, correlationID string) (string, error) {
	hash, err := r.next.Record(ctx, kind, refID, data, correlationID)
	if err != nil {
		return "", err
	}

	event := bus.NewEvent(bus.TopicAuditLogged, correlationID, map[string]any{
		"kind":   kind,
		"ref_id": refID,
		"hash":   hash,
		"data":   data,
	})
	if err := r.publisher.Publish(bus.TopicAuditLogged, event); err != nil {
		r.logger.Warnf("Failed to publish audit.logged event: %v", err)
	}
	return hash, nil
}

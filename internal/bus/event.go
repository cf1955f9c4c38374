// Package bus provides the event bus abstraction and its Kafka implementation.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Topics published or consumed by the system.
const (
	TopicMarketPrices       = "market.prices"
	TopicSignalsGenerated   = "signals.generated"
	TopicRiskBreach         = "risk.breach"
	TopicWorkflowRequested  = "workflow.requested"
	TopicGenaiReviewCreated = "genai.review.created"
	TopicWorkflowApproved   = "workflow.approved"
	TopicOrdersFilled       = "orders.filled"
	TopicAuditLogged        = "audit.logged"
)

// Event is the message shape shared by every topic.
type Event struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	CorrelationID string         `json:"correlation_id"`
	Payload       map[string]any `json:"payload"`
}

// NewEvent builds an event with a fresh id and a UTC timestamp.
func NewEvent(eventType, correlationID string, payload map[string]any) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// Publisher delivers events to the bus. Consumers assume at-least-once delivery.
type Publisher interface {
	Publish(topic string, event Event) error
}

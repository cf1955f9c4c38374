// Package notifier consumes workflow, order and audit events from the bus
// and surfaces them in the logs. Delivery is at-least-once: offsets are
// committed after each handled message; a handler failure is logged, backed
// off briefly and skipped, never quarantined.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/tradeops/arbiter/internal/bus"
)

// Topics watched by the notifier.
var Topics = []string{
	bus.TopicWorkflowRequested,
	bus.TopicGenaiReviewCreated,
	bus.TopicWorkflowApproved,
	bus.TopicOrdersFilled,
	bus.TopicRiskBreach,
	bus.TopicAuditLogged,
}

const handlerBackoff = 250 * time.Millisecond

type Notifier struct {
	consumer *kafka.Consumer
	logger   *logrus.Logger
}

func New(broker, groupID string, logger *logrus.Logger) (*Notifier, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  broker,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &Notifier{consumer: consumer, logger: logger}, nil
}

// Start consumes until the context is cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	if err := n.consumer.SubscribeTopics(Topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	n.logger.Infof("Notifier started, topics=%v", Topics)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Shutting down notifier...")
			if err := n.consumer.Close(); err != nil {
				n.logger.Errorf("Error closing consumer: %v", err)
				return err
			}
			n.logger.Info("Notifier shut down cleanly")
			return nil
		default:
			msg, err := n.consumer.ReadMessage(time.Second)
			if err != nil {
				if kerr, ok := err.(kafka.Error); ok && kerr.IsTimeout() {
					continue
				}
				n.logger.Errorf("Error fetching message: %v", err)
				continue
			}

			if err := n.handle(msg); err != nil {
				n.logger.Errorf("Handler error topic=%s offset=%v: %v",
					*msg.TopicPartition.Topic, msg.TopicPartition.Offset, err)
				time.Sleep(handlerBackoff)
			}

			if _, err := n.consumer.CommitMessage(msg); err != nil {
				n.logger.Warnf("Failed to commit offset: %v", err)
			}
		}
	}
}

func (n *Notifier) handle(msg *kafka.Message) error {
	var event bus.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	n.logger.WithField("correlation_id", event.CorrelationID).
		Infof("NOTIFY topic=%s type=%s payload=%v",
			*msg.TopicPartition.Topic, event.EventType, event.Payload)
	return nil
}

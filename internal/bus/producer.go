package bus

import (
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher publishes events to Kafka. Workflow-scoped events are keyed
// by workflow id so the request, approval and fill of one workflow land on
// the same partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *logrus.Logger
}

// NewKafkaPublisher creates a producer connected to the given broker and
// starts the delivery report loop.
func NewKafkaPublisher(broker string, logger *logrus.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer, logger: logger}
	p.startDeliveryReport()
	logger.Info("Kafka producer initialized successfully")
	return p, nil
}

// startDeliveryReport watches the producer event channel and logs failed deliveries.
func (p *KafkaPublisher) startDeliveryReport() {
	go func() {
		for e := range p.producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.logger.Errorf("Event delivery failed: %v", ev.TopicPartition.Error)
				}
			}
		}
	}()
}

// messageKey picks the partition key for an event. Workflow events carry a
// workflow_id, audit events a ref_id; the correlation id is the fallback.
func messageKey(event Event) string {
	if id, ok := event.Payload["workflow_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := event.Payload["ref_id"].(string); ok && id != "" {
		return id
	}
	return event.CorrelationID
}

// Publish serializes the event as JSON and produces it to the topic.
func (p *KafkaPublisher) Publish(topic string, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(messageKey(event)),
		Value:          value,
	}, nil)
}

// Close flushes pending messages and closes the producer.
func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}

package bus

import "github.com/sirupsen/logrus"

// NopPublisher logs events instead of publishing them. Used when no broker
// is configured (local development) and in tests.
type NopPublisher struct {
	logger *logrus.Logger
}

func NewNopPublisher(logger *logrus.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) Publish(topic string, event Event) error {
	p.logger.WithField("topic", topic).Debugf("event dropped (no broker): %s", event.EventType)
	return nil
}

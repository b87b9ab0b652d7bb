package kafka

import "context"

// NoopProducer drops every event. Used when Kafka is disabled.
type NoopProducer struct{}

func (NoopProducer) ProduceBroadcastStarted(context.Context, string, string) error { return nil }

func (NoopProducer) ProduceBroadcastStopped(context.Context, string, string, string) error {
	return nil
}

func (NoopProducer) Close() error { return nil }

// New returns a Confluent producer when enabled, otherwise a NoopProducer.
func New(enabled bool, brokers, topic string, partitions int, instanceID string) (BroadcastEventProducer, error) {
	if !enabled {
		return NoopProducer{}, nil
	}
	return NewConfluentProducer(brokers, topic, partitions, instanceID)
}

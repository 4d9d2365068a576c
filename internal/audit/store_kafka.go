package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"relaydesk/internal/platform/kafka/producer"
)

// KafkaStore publishes lifecycle events to a Kafka topic, keyed by tenant so
// one tenant's events stay ordered within a partition.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaStore wraps a producer as an audit sink.
func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}

	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.TenantID.String()),
		Value: value,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}

package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// AutoCreateTopic lets the broker create Topic on first write.
	AutoCreateTopic bool
}

// KafkaPublisher writes messages to a Kafka topic, keyed by aggregate so that
// events of one order stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchSize:    100,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,

			AllowAutoTopicCreation: cfg.AutoCreateTopic,
		},
	}
}

// Publish writes msgs synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, msgs ...Message) error {
	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafka.Message{
			Key:   []byte(m.Key),
			Value: m.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(m.EventID.String())},
				{Key: "event_type", Value: []byte(m.Type)},
			},
		}
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		return errors.Wrap(err, "write kafka messages")
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

package messaging

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaProducer publishes event records to a Kafka topic. Writes are
// synchronous: Send returns only after the broker acknowledges, which the
// publisher relies on for in-order delivery.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer builds a producer for the given brokers and topic.
// Messages are keyed by event id, so all records for one id land on the
// same partition.
func NewKafkaProducer(brokers []string, topic string, timeout time.Duration) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: timeout,
			Compression:  kafka.Lz4,
		},
	}
}

func (p *KafkaProducer) Send(ctx context.Context, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

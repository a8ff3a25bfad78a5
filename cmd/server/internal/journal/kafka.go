// Package journal publishes accepted trades to a kafka audit topic.
package journal

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Writer is the kafka surface the journal needs; *kafka.Writer satisfies
// it and tests substitute a mock.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka keys every journal record by user id so a consumer sees one
// user's trades in order.
type Kafka struct {
	writer Writer
	logger *zap.Logger
}

func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: w, logger: logger}
}

// NewKafkaWithWriter wires an existing writer; used by tests.
func NewKafkaWithWriter(w Writer, logger *zap.Logger) *Kafka {
	return &Kafka{writer: w, logger: logger}
}

func (k *Kafka) Publish(ctx context.Context, t *models.Trade) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.UserID),
		Value: payload,
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

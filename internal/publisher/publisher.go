// Package publisher announces committed transactions on Kafka for the sales statistics consumer.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "cafe.transactions"

	EventTransactionCommitted = "transaction.committed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(topic string, brokers ...string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &Publisher{writer: w}
}

type committedEvent struct {
	TransactionID string            `json:"transaction_id"`
	Total         int64             `json:"total"`
	Items         []domain.CartLine `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
}

// PublishTransaction writes one transaction.committed message keyed by transaction id.
func (p *Publisher) PublishTransaction(ctx context.Context, tx *domain.Transaction) error {
	payload, err := json.Marshal(committedEvent{
		TransactionID: tx.ID.String(),
		Total:         tx.Total,
		Items:         domain.CloneLines(tx.Lines),
		CreatedAt:     tx.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(tx.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTransactionCommitted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

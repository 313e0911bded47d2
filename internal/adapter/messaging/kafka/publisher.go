// Package kafka publishes payment lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qris-gateway/config"
	"qris-gateway/internal/core/domain"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Publisher implements ports.EventPublisher with a synchronous producer.
// Messages are keyed by payment ID so every event for one intent lands on
// the same partition in order.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// DefaultTimeout bounds broker round trips when none is configured.
const DefaultTimeout = 3 * time.Second

// NewSaramaConfig returns the producer settings the publisher relies on.
// Events are sent on the request path, so every network wait is capped by
// timeout and a failed send is retried once.
func NewSaramaConfig(clientID string, timeout time.Duration) *sarama.Config {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Net.DialTimeout = timeout
	cfg.Net.ReadTimeout = timeout
	cfg.Net.WriteTimeout = timeout
	cfg.Metadata.Retry.Max = 1
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Timeout = timeout
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	return cfg
}

// NewPublisher dials the configured brokers.
func NewPublisher(cfg config.KafkaConfig, log zerolog.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg.ClientID, cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic, log), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PaymentID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka: send %s: %w", event.Type, err)
	}

	p.log.Debug().
		Str("event", event.Type).
		Str("payment_id", event.PaymentID.String()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("payment event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event domain.PaymentEvent) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

// Package mq wraps the Kafka writer used for outbound domain events.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON messages to a single topic.
type Producer struct {
	w *kafka.Writer
}

// NewProducer builds a producer. Messages with the same key land on the same
// partition; RequireAll waits for in-sync replicas.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish marshals value and writes it synchronously.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	if p == nil || p.w == nil {
		return errors.New("mq: producer not configured")
	}
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	})
}

// Topic returns the destination topic.
func (p *Producer) Topic() string {
	if p == nil || p.w == nil {
		return ""
	}
	return p.w.Topic
}

// Close flushes pending writes and releases the writer.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

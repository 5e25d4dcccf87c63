package flashsale

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusChanged is emitted whenever a stored status moves.
type StatusChanged struct {
	EventID     string    `json:"event_id"`
	FlashSaleID int64     `json:"flash_sale_id"`
	SKU         string    `json:"sku"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Source      Source    `json:"source"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newStatusChanged(sale FlashSale, from, to Status, source Source, at time.Time) StatusChanged {
	return StatusChanged{
		EventID:     uuid.NewString(),
		FlashSaleID: sale.ID,
		SKU:         sale.SKU,
		From:        from,
		To:          to,
		Source:      source,
		OccurredAt:  at,
	}
}

// EventPublisher delivers status change events.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
}

// MessageProducer is the transport a KafkaPublisher writes through.
type MessageProducer interface {
	Publish(ctx context.Context, key string, value any) error
}

// KafkaPublisher writes events keyed by SKU so one SKU's events stay ordered.
type KafkaPublisher struct {
	producer MessageProducer
}

// NewKafkaPublisher wraps producer.
func NewKafkaPublisher(producer MessageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// PublishStatusChanged implements EventPublisher.
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	return p.producer.Publish(ctx, evt.SKU, evt)
}

// NopPublisher drops events.
type NopPublisher struct{}

// PublishStatusChanged implements EventPublisher.
func (NopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

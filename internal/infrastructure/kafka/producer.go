package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes inventory events. Messages are keyed by SKU so one
// item's events land on one partition in commit order.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, events []inventory.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := encodeEvents(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeEvents(events []inventory.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.SKU),
			Value: data,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: headerEventType, Value: []byte(e.Type)},
			},
		})
	}
	return msgs, nil
}

// DecodeEvent parses a message value written by Producer.
func DecodeEvent(value []byte) (inventory.Event, error) {
	var e inventory.Event
	if err := json.Unmarshal(value, &e); err != nil {
		return inventory.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

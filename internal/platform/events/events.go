// Package events publishes domain events to Kafka. Topics are named
// "<prefix>.<event type>" and messages are keyed by aggregate so that events
// for one doctor land on the same partition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Event types emitted by the practice services.
const (
	SlotsCreated        = "slots.created"
	SlotsReplaced       = "slots.replaced"
	SlotDeleted         = "slot.deleted"
	BookingCreated      = "booking.created"
	BookingStatusChange = "booking.status_changed"
	LedgerUpdated       = "ledger.updated"
)

// publishTimeout bounds a best-effort publish on the request path.
var publishTimeout = 2 * time.Second

type Event struct {
	Type    string
	Key     string
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	prefix string
	logger zerolog.Logger
}

// New returns a Kafka publisher, or a Nop publisher when no brokers are set.
func New(brokers []string, prefix string, logger zerolog.Logger) Publisher {
	if len(brokers) == 0 {
		logger.Warn().Msg("event publishing disabled (no kafka brokers configured)")
		return Nop{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           publishTimeout,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
	}
	return newKafkaPublisher(w, prefix, logger)
}

func newKafkaPublisher(w messageWriter, prefix string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

func (p *KafkaPublisher) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	eventID := uuid.NewString()
	msg := kafka.Message{
		Topic: p.Topic(ev.Type),
		Key:   []byte(ev.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	p.logger.Debug().Str("event_id", eventID).Str("topic", msg.Topic).Str("key", ev.Key).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// PublishBestEffort logs instead of failing and gives up after
// publishTimeout. Used after a transaction has already committed, where a
// broker outage must neither surface to nor stall the caller.
func PublishBestEffort(ctx context.Context, pub Publisher, logger zerolog.Logger, ev Event) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("event_type", ev.Type).Str("key", ev.Key).Msg("event publish failed")
	}
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string { return HeaderValue(c.headers, key) }

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

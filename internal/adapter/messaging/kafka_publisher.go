package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/blood-service/internal/core/domain"
)

const (
	EventDemandCreated = "DemandCreated"

	batchTimeout = 10 * time.Millisecond

	// PublishTimeout bounds how long a demand request waits on the broker.
	PublishTimeout = 2 * time.Second
)

// DemandCreatedEvent is the payload published for every stored demand.
type DemandCreatedEvent struct {
	Type       string        `json:"type"`
	DemandID   string        `json:"demand_id"`
	BloodType  string        `json:"blood_type"`
	RegionName string        `json:"region_name,omitempty"`
	CreatedAt  string        `json:"created_at"`
	Demand     domain.Demand `json:"demand"`
}

type messageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher publishes DemandCreated events keyed by blood type, so all
// events for one blood type land on the same partition.
type KafkaPublisher struct {
	writer     messageWriter
	propagator propagation.TextMapPropagator
	timeout    time.Duration
}

// NewKafkaPublisher builds a traced writer for topic. Each publish opens a
// producer span under tp and carries the W3C trace context in the message
// headers.
func NewKafkaPublisher(broker, topic, clientID string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	baseWriter := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		WriteTimeout:           PublishTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka writer: %w", err)
	}

	return &KafkaPublisher{
		writer:     writer,
		propagator: propagation.TraceContext{},
		timeout:    PublishTimeout,
	}, nil
}

func (p *KafkaPublisher) PublishDemandCreated(ctx context.Context, demand domain.Demand) error {
	msg, err := demandCreatedMessage(demand)
	if err != nil {
		return err
	}
	p.propagator.Inject(ctx, headerCarrier{msg: &msg})

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", EventDemandCreated, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func demandCreatedMessage(demand domain.Demand) (kafka.Message, error) {
	value, err := json.Marshal(DemandCreatedEvent{
		Type:       EventDemandCreated,
		DemandID:   demand.ID,
		BloodType:  demand.BloodType,
		RegionName: demand.RegionName,
		CreatedAt:  demand.CreatedAt.UTC().Format(domain.CreatedAtLayout),
		Demand:     demand,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", EventDemandCreated, err)
	}

	return kafka.Message{
		Key:   []byte(demand.BloodType),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventDemandCreated)},
		},
		Time: demand.CreatedAt,
	}, nil
}

// headerCarrier adapts kafka message headers to a TextMapCarrier. Set
// replaces any header with the same key.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	headers := c.msg.Headers[:0:0]
	for _, h := range c.msg.Headers {
		if h.Key != key {
			headers = append(headers, h)
		}
	}
	c.msg.Headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

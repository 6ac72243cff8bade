package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current client event schema version
const SchemaVersion = "1.0"

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
	"none":   0,
}

// NewProducer builds a writer keyed by client id so events of one client stay ordered on
// a partition. Unknown compression names fall back to snappy.
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	codec, ok := codecs[cfg.Compression]
	if !ok {
		codec = kafka.Snappy
	}

	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            codec,
		AllowAutoTopicCreation: true,
	}, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer over an existing writer. The writer must not set
// its own Topic.
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ClientEvent is an event about one client or a tenant's client base
type ClientEvent struct {
	EventType      string          `json:"event_type"`
	TenantID       string          `json:"tenant_id"`
	ClientID       string          `json:"client_id,omitempty"`
	RelatedClients []string        `json:"related_clients,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// key keeps every event of a client, or of a tenant when there is no client, on one partition
func (e *ClientEvent) key() string {
	if e.ClientID != "" {
		return e.ClientID
	}
	return e.TenantID
}

// PublishClientEvent publishes a client event to Kafka
func (p *Producer) PublishClientEvent(ctx context.Context, event *ClientEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishClientEvent")
	defer span.End()

	msg, err := p.message(ctx, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish client event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"tenant_id":  event.TenantID,
		"client_id":  event.ClientID,
	}).Debug("Published client event")

	return nil
}

// PublishClientEvents publishes multiple client events in a batch
func (p *Producer) PublishClientEvents(ctx context.Context, events []*ClientEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishClientEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := p.message(ctx, event)
		if err != nil {
			return err
		}
		messages[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish client events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published client events batch")

	return nil
}

func (p *Producer) message(ctx context.Context, event *ClientEvent) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "tenant_id", Value: []byte(event.TenantID)},
		{Key: "schema_version", Value: []byte(SchemaVersion)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.key()),
		Value:   data,
		Headers: headers,
	}, nil
}

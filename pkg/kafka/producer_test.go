package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func headerMap(msg kafka.Message) map[string]string {
	out := map[string]string{}
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestProducer_PublishClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   *ClientEvent
		wantKey string
	}{
		{
			name:    "keyed by client",
			event:   &ClientEvent{EventType: "client.merged", TenantID: "t1", ClientID: "s", RelatedClients: []string{"d1"}},
			wantKey: "s",
		},
		{
			name:    "keyed by tenant",
			event:   &ClientEvent{EventType: "client.duplicates_detected", TenantID: "t1"},
			wantKey: "t1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeWriter{}
			producer := NewProducerWithWriter(writer, "clover.clients", testLogger())

			require.NoError(t, producer.PublishClientEvent(context.Background(), tt.event))

			require.Len(t, writer.messages, 1)
			msg := writer.messages[0]
			assert.Equal(t, "clover.clients", msg.Topic)
			assert.Equal(t, tt.wantKey, string(msg.Key))

			headers := headerMap(msg)
			assert.Equal(t, tt.event.EventType, headers["event_type"])
			assert.Equal(t, "t1", headers["tenant_id"])
			assert.Equal(t, SchemaVersion, headers["schema_version"])

			var decoded ClientEvent
			require.NoError(t, json.Unmarshal(msg.Value, &decoded))
			assert.Equal(t, tt.event.EventType, decoded.EventType)
			assert.False(t, decoded.Timestamp.IsZero())
		})
	}
}

func TestProducer_PublishClientEvent_Error(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	producer := NewProducerWithWriter(writer, "clover.clients", testLogger())

	err := producer.PublishClientEvent(context.Background(), &ClientEvent{EventType: "client.merged", TenantID: "t1"})

	assert.EqualError(t, err, "leader not available")
}

func TestProducer_PublishClientEvents(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, "clover.clients", testLogger())

	require.NoError(t, producer.PublishClientEvents(context.Background(), nil))
	assert.Empty(t, writer.messages)

	require.NoError(t, producer.PublishClientEvents(context.Background(), []*ClientEvent{
		{EventType: "client.merged", TenantID: "t1", ClientID: "a"},
		{EventType: "client.merged", TenantID: "t1", ClientID: "b"},
	}))
	require.Len(t, writer.messages, 2)
	assert.Equal(t, "b", string(writer.messages[1].Key))

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}

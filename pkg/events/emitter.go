// Package events emits client lifecycle events produced by deduplication and merges
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Event types
const (
	ClientMerged       = "client.merged"
	ClientMergeFailed  = "client.merge_failed"
	DuplicatesDetected = "client.duplicates_detected"
)

// Publisher sends client events to the broker
type Publisher interface {
	PublishClientEvent(ctx context.Context, event *kafka.ClientEvent) error
}

// Emitter handles event emission for clover
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitMergeResult emits client.merged for a successful merge and client.merge_failed
// otherwise. The full result is the event payload.
func (e *Emitter) EmitMergeResult(ctx context.Context, tenantID string, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeResult")
	defer span.End()

	eventType := ClientMerged
	if !result.Success {
		eventType = ClientMergeFailed
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	event := &kafka.ClientEvent{
		EventType:      eventType,
		TenantID:       tenantID,
		ClientID:       result.SurvivorID,
		RelatedClients: result.DuplicateIDs,
		Data:           data,
	}

	if err := e.publisher.PublishClientEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}

// EmitDuplicatesDetected emits the per-tier summary of a detection run
func (e *Emitter) EmitDuplicatesDetected(ctx context.Context, tenantID string, summary models.DuplicateSummary) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicatesDetected")
	defer span.End()

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	event := &kafka.ClientEvent{
		EventType: DuplicatesDetected,
		TenantID:  tenantID,
		Data:      data,
	}

	if err := e.publisher.PublishClientEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit client.duplicates_detected event")
		return err
	}

	return nil
}

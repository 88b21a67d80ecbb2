package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"trawler/pkg/logging"
)

// LifecycleEvent records one content-event state change for downstream
// consumers (analytics, the review UI's activity feed).
type LifecycleEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	TenantID   string    `json:"tenant_id"`
	ProfileID  string    `json:"profile_id,omitempty"`
	ContentID  string    `json:"content_id"`
	ExternalID string    `json:"external_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types emitted by the pipeline.
const (
	TypeContentIngested  = "content.ingested"
	TypeStatusTransition = "content.status_transition"
)

// Producer publishes lifecycle events to Kafka. A nil Producer is valid and
// drops all events, so the pipeline can run without a broker.
type Producer struct {
	client *kgo.Client
	topic  string
	logger logging.Logger
}

// NewProducer creates a lifecycle event producer.
func NewProducer(brokers []string, topic string, logger logging.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("trawler"),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Producer{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// Close shuts down the underlying Kafka client.
func (p *Producer) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Close()
}

// Client returns the underlying kgo client for health checks.
func (p *Producer) Client() *kgo.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// Emit publishes one lifecycle event. Emission is best-effort: a failed
// publish is logged and dropped, never surfaced to the pipeline.
func (p *Producer) Emit(event LifecycleEvent) {
	if p == nil || p.client == nil {
		return
	}

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal lifecycle event")
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ContentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.WithError(err).WithFields(logging.Fields{
			"event_type": event.EventType,
			"content_id": event.ContentID,
		}).Warn("Failed to publish lifecycle event")
	}
}

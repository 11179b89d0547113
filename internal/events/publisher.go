package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

const (
	// StreamName is the name of the journal audit stream.
	StreamName = "JOURNAL"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "journal"
)

// Publisher publishes lifecycle events to JetStream. A nil Publisher is
// valid and publishes nothing, so callers never need to branch on whether
// the event stream is configured.
type Publisher struct {
	client *Client
	logger *logger.Logger
}

// NewPublisher creates a publisher over an established NATS client.
func NewPublisher(client *Client, log *logger.Logger) *Publisher {
	return &Publisher{client: client, logger: log}
}

// EnsureStream ensures the journal stream exists with proper configuration.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	if p == nil || p.client == nil {
		return nil
	}

	js := p.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Reflection journal lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(eventType model.EventType) string {
	return fmt.Sprintf("%s.event.%s", SubjectPrefix, eventType)
}

// Publish publishes an event, best-effort. Failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, event *model.JournalEvent) {
	if p == nil || p.client == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	ack, err := p.client.JetStream().Publish(ctx, EventSubject(event.Type), data)
	if err != nil {
		p.logger.Warn("failed to publish event", "type", event.Type, "error", err)
		return
	}

	event.Sequence = ack.Sequence
}

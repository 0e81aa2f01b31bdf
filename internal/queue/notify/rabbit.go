package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/michaelayoade/isp-framework/shared/rabbitmq"
)

// RabbitSink publishes job lifecycle events to a RabbitMQ exchange as JSON
// messages. The event name travels in the envelope so consumers can route
// without inspecting the payload.
type RabbitSink struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewRabbitSink creates a RabbitSink on top of an established client.
func NewRabbitSink(client *rabbitmq.Client, logger *slog.Logger) *RabbitSink {
	return &RabbitSink{
		client: client,
		logger: logger,
	}
}

type envelope struct {
	Event   string `json:"event"`
	Payload Event  `json:"payload"`
}

// Notify publishes one event. Publish retries are handled by the client.
func (s *RabbitSink) Notify(ctx context.Context, event string, payload Event) error {
	body, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Job event published",
		slog.String("event", event),
		slog.String("job_id", payload.JobID),
	)

	return nil
}

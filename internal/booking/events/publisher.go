// Package events bridges lifecycle transitions onto the message broker. The
// api service publishes after a transition commits; the notify worker
// consumes and runs the fan-out, keeping delivery out of the request path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/shared/rabbitmq"
)

// Publisher emits job events to RabbitMQ.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher over an established broker client.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish serializes the event and sends it with retry. Persistence of the
// transition has already happened; the caller decides whether a failure here
// is fatal.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("type", event.Type),
		slog.String("job_id", event.JobID),
	)

	return nil
}

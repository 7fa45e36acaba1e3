/**
 * @description
 * Event publishing boundary for the engine. Components emit their lifecycle
 * events through this interface; the AMQP producer in pkg/rabbitmq is the
 * production implementation and tests substitute a recording publisher.
 *
 * Emission is best-effort: a failed publish is logged and never fails the
 * operation that produced it, since the state change has already committed.
 */
package engine

import (
	"context"
	"log/slog"
)

// Publisher delivers engine events to the subscription_events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return nil
}

func emit(ctx context.Context, p Publisher, logger *slog.Logger, routingKey string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, event); err != nil {
		logger.Warn("event publish failed", "routing_key", routingKey, "error", err)
	}
}

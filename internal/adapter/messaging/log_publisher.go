package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// LogPublisher records events in the log when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

var _ port.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...domain.OrderEvent) error {
	for _, ev := range events {
		p.logger.Info().
			Str("event", string(ev.Type)).
			Str("order_id", ev.OrderID).
			Str("customer_id", ev.CustomerID).
			Str("from", ev.From.String()).
			Str("status", ev.To.String()).
			Msg("order event")
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

package port

import (
	"context"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.OrderEvent) error
	Close() error
}

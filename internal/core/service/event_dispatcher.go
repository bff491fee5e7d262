package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

const publishTimeout = 5 * time.Second

// EventDispatcher queues order events emitted after a commit and publishes
// them from a pool of workers. Events never affect the state they describe.
type EventDispatcher struct {
	publisher port.EventPublisher
	queue     chan domain.OrderEvent
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewEventDispatcher(publisher port.EventPublisher, queueSize int, logger zerolog.Logger) *EventDispatcher {
	return &EventDispatcher{
		publisher: publisher,
		queue:     make(chan domain.OrderEvent, queueSize),
		logger:    logger.With().Str("component", "event_dispatcher").Logger(),
	}
}

// Emit enqueues events. It is safe on a nil dispatcher and after Close.
func (d *EventDispatcher) Emit(ctx context.Context, events ...domain.OrderEvent) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, ev := range events {
		select {
		case d.queue <- ev:
		case <-ctx.Done():
			d.logger.Warn().Str("order_id", ev.OrderID).Str("event", string(ev.Type)).Msg("dropped event: context done")
			return
		}
	}
}

func (d *EventDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info().Int("workers", workers).Msg("started event workers")
}

func (d *EventDispatcher) workerLoop(id int) {
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := d.publisher.Publish(ctx, ev); err != nil {
			d.logger.Error().Err(err).
				Int("worker", id).
				Str("order_id", ev.OrderID).
				Str("event", string(ev.Type)).
				Msg("failed to publish order event")
		} else {
			d.logger.Debug().Int("worker", id).Str("order_id", ev.OrderID).Str("event", string(ev.Type)).Msg("published order event")
		}

		cancel()
	}
}

// Close stops accepting events, drains the queue and waits for the workers.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/port"
)

// CartSweeper cancels draft carts that have not been touched for longer than
// ttl. Carts that already carry payment proof are never swept.
type CartSweeper struct {
	orders    port.OrderRepository
	lifecycle *OrderService
	ttl       time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewCartSweeper(orders port.OrderRepository, lifecycle *OrderService, ttl, interval time.Duration, logger zerolog.Logger) *CartSweeper {
	return &CartSweeper{
		orders:    orders,
		lifecycle: lifecycle,
		ttl:       ttl,
		interval:  interval,
		logger:    logger.With().Str("component", "cart_sweeper").Logger(),
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is done.
func (s *CartSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("stale cart sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("stale cart sweep failed")
			}
		}
	}
}

// Sweep cancels every stale cart once and returns how many were cancelled.
func (s *CartSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	carts, err := s.orders.ListStaleCarts(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, cart := range carts {
		order, err := s.lifecycle.expire(ctx, cart.ID, cutoff)
		if err != nil {
			// Someone else moved the cart on; the next tick sees the new state.
			s.logger.Warn().Err(err).Str("order_id", cart.ID).Msg("skipped stale cart")
			continue
		}
		if order.Status.IsTerminal() {
			swept++
		}
	}

	if swept > 0 {
		s.logger.Info().Int("count", swept).Msg("cancelled stale carts")
	}
	return swept, nil
}

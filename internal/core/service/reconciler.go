package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// Reconciler turns an approved order into stock consumption. Either every
// stock row the order needs is decremented and the order moves to preparing,
// or nothing changes.
type Reconciler struct {
	tx     port.Transactor
	logger zerolog.Logger
	now    func() time.Time
}

func NewReconciler(tx port.Transactor, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		tx:     tx,
		logger: logger.With().Str("component", "reconciler").Logger(),
		now:    time.Now,
	}
}

// Reconcile consumes stock for orderID. It returns ErrAlreadyApproved when the
// order has already been committed by an earlier call.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) (*domain.Order, domain.Requirements, error) {
	var (
		approved *domain.Order
		consumed domain.Requirements
	)

	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %s: %w", orderID, err)
		}
		if order.Status.IsCommitted() {
			return domain.ErrAlreadyApproved
		}
		if order.Status != domain.StatusAwaitingReview {
			return domain.NewStateError("approve", order.Status)
		}

		boms, err := tx.BillsOfMaterials(ctx, domain.PizzaIDs(order.Items))
		if err != nil {
			return fmt.Errorf("load bills of materials: %w", err)
		}
		req, err := domain.ComputeRequirements(order.Items, boms)
		if err != nil {
			return err
		}

		levels, err := tx.LockStock(ctx, req.Keys())
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		if shortages := req.Shortages(levels); len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}

		if err := tx.ApplyStockDeltas(ctx, req.Deltas()); err != nil {
			return fmt.Errorf("apply stock deltas: %w", err)
		}

		if err := order.TransitionTo(domain.StatusPreparing, "approve"); err != nil {
			return err
		}
		order.UpdatedAt = r.now()
		if err := tx.UpdateOrderStatus(ctx, order); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		approved = order
		consumed = req
		return nil
	})
	if err != nil {
		var negative *domain.NegativeStockError
		if errors.As(err, &negative) {
			// Shortages are checked under lock first, so this means the store
			// changed underneath the transaction.
			r.logger.Error().Err(err).Str("order_id", orderID).Str("stock_key", negative.Key.String()).Msg("stock went negative during reconciliation")
		}
		return nil, nil, err
	}

	return approved, consumed, nil
}

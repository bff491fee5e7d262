package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

const defaultGuardTTL = 30 * time.Second

type ApprovalResult struct {
	Order            *domain.Order
	Consumed         domain.Requirements
	AlreadyProcessed bool
}

// OrderService owns every lifecycle transition after checkout.
type OrderService struct {
	orders     port.OrderRepository
	reconciler *Reconciler
	cache      port.CacheRepository // optional approval guard
	events     *EventDispatcher
	logger     zerolog.Logger
	guardTTL   time.Duration
	retryLimit int
	now        func() time.Time
}

type OrderServiceOption func(*OrderService)

func WithApprovalGuard(cache port.CacheRepository, ttl time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		s.cache = cache
		if ttl > 0 {
			s.guardTTL = ttl
		}
	}
}

func WithRetryLimit(n int) OrderServiceOption {
	return func(s *OrderService) {
		if n > 0 {
			s.retryLimit = n
		}
	}
}

func NewOrderService(orders port.OrderRepository, reconciler *Reconciler, events *EventDispatcher, logger zerolog.Logger, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		orders:     orders,
		reconciler: reconciler,
		events:     events,
		logger:     logger.With().Str("component", "orders").Logger(),
		guardTTL:   defaultGuardTTL,
		retryLimit: defaultRetryLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve commits stock for an order awaiting review and moves it to
// preparing. Approving an order that is already past review is not an error:
// the result reports AlreadyProcessed and no stock is touched.
func (s *OrderService) Approve(ctx context.Context, orderID string, staff domain.Actor) (*ApprovalResult, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}

	if s.cache != nil {
		key := "approve:" + orderID
		token, ok, err := s.cache.AcquireGuard(ctx, key, s.guardTTL)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("order_id", orderID).Msg("approval guard unavailable, continuing without it")
		case !ok:
			// The holder is mid-approval; the order row lock orders us after it.
			s.logger.Debug().Str("order_id", orderID).Msg("approval guard held, waiting on order lock")
		default:
			defer func() {
				if err := s.cache.ReleaseGuard(context.WithoutCancel(ctx), key, token); err != nil {
					s.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to release approval guard")
				}
			}()
		}
	}

	order, consumed, err := s.reconciler.Reconcile(ctx, orderID)
	if errors.Is(err, domain.ErrAlreadyApproved) {
		current, getErr := s.orders.GetOrder(ctx, orderID)
		if getErr != nil {
			return nil, fmt.Errorf("get order %s: %w", orderID, getErr)
		}
		s.logger.Info().Str("order_id", orderID).Str("status", current.Status.String()).Msg("approval is a no-op, order already processed")
		return &ApprovalResult{Order: current, AlreadyProcessed: true}, nil
	}
	if err != nil {
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.logger.Info().Str("order_id", orderID).Int("shortages", len(stockErr.Shortages)).Msg("approval refused: insufficient stock")
		}
		return nil, err
	}

	s.logger.Info().Str("order_id", orderID).Str("actor", staff.ID).Int("stock_rows", len(consumed)).Msg("order approved")
	s.events.Emit(ctx, domain.NewOrderEvent(domain.EventApproved, order, domain.StatusAwaitingReview, staff.ID, order.UpdatedAt))

	return &ApprovalResult{Order: order, Consumed: consumed}, nil
}

// Reject refuses the payment proof. It never touches stock.
func (s *OrderService) Reject(ctx context.Context, orderID string, staff domain.Actor, reason string) (*domain.Order, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, orderID, staff.ID, domain.StatusRejected, "reject", domain.EventRejected, func(o *domain.Order) error {
		o.StatusNote = reason
		return nil
	})
}

// Cancel is only available to the order's owner and only before preparation.
// Orders owned by someone else are reported as not found.
func (s *OrderService) Cancel(ctx context.Context, customer domain.Actor, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, customer.ID, domain.StatusCancelled, "cancel", domain.EventCancelled, func(o *domain.Order) error {
		if o.CustomerID != customer.ID {
			return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *OrderService) MarkDelivering(ctx context.Context, orderID string, staff domain.Actor) (*domain.Order, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	return s.transition(ctx, orderID, staff.ID, domain.StatusDelivering, "mark delivering", domain.EventDelivering, nil)
}

func (s *OrderService) MarkSuccess(ctx context.Context, orderID string, staff domain.Actor) (*domain.Order, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	return s.transition(ctx, orderID, staff.ID, domain.StatusSuccess, "complete", domain.EventCompleted, nil)
}

// expire cancels an abandoned cart on behalf of the system.
func (s *OrderService) expire(ctx context.Context, orderID string, cutoff time.Time) (*domain.Order, error) {
	return s.transition(ctx, orderID, "system", domain.StatusCancelled, "expire", domain.EventCancelled, func(o *domain.Order) error {
		if o.Status != domain.StatusDraft || o.PaymentProof != "" || o.UpdatedAt.After(cutoff) {
			return errNothingToSave
		}
		o.StatusNote = "cart expired"
		return nil
	})
}

// GetOrder returns an order visible to actor: staff see every order,
// customers only their own.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() && order.CustomerID != actor.ID {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// CustomerOrders returns the customer's order history, newest first. The
// active cart is not part of the history.
func (s *OrderService) CustomerOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", customerID, err)
	}

	history := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.StatusDraft {
			continue
		}
		history = append(history, o)
	}
	sortNewestFirst(history)
	return history, nil
}

// PendingReview is the staff queue of submitted orders, oldest first.
func (s *OrderService) PendingReview(ctx context.Context, staff domain.Actor) ([]domain.Order, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrdersByStatus(ctx, domain.StatusAwaitingReview)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (s *OrderService) OrdersByStatus(ctx context.Context, staff domain.Actor, statuses ...domain.Status) ([]domain.Order, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = domain.AllStatuses
	}
	orders, err := s.orders.ListOrdersByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// transition applies a status change with no stock side effect. check runs on
// the freshly read order before the state machine is consulted.
func (s *OrderService) transition(ctx context.Context, orderID, actor string, to domain.Status, op string, event domain.EventType, check func(*domain.Order) error) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		order, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("get order %s: %w", orderID, err)
		}
		from := order.Status

		if check != nil {
			if err := check(order); err != nil {
				if errors.Is(err, errNothingToSave) {
					return order, nil
				}
				return nil, err
			}
		}
		if err := order.TransitionTo(to, op); err != nil {
			return nil, err
		}

		order.UpdatedAt = s.now()
		err = s.orders.SaveOrder(ctx, order)
		if err == nil {
			s.logger.Info().
				Str("order_id", orderID).
				Str("actor", actor).
				Str("from", from.String()).
				Str("status", to.String()).
				Msg("order status changed")
			s.events.Emit(ctx, domain.NewOrderEvent(event, order, from, actor, order.UpdatedAt))
			return order, nil
		}

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			return nil, fmt.Errorf("save order %s: %w", orderID, err)
		}
		lastErr = err
	}
	return nil, lastErr
}

func requireStaff(actor domain.Actor) error {
	if !actor.Role.IsStaff() {
		return fmt.Errorf("role %q: %w", actor.Role, domain.ErrForbidden)
	}
	return nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

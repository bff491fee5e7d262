package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

const defaultRetryLimit = 3

type CartService struct {
	orders     port.OrderRepository
	catalog    port.CatalogRepository
	events     *EventDispatcher
	logger     zerolog.Logger
	retryLimit int
	now        func() time.Time
}

func NewCartService(orders port.OrderRepository, catalog port.CatalogRepository, events *EventDispatcher, logger zerolog.Logger, retryLimit int) *CartService {
	if retryLimit <= 0 {
		retryLimit = defaultRetryLimit
	}
	return &CartService{
		orders:     orders,
		catalog:    catalog,
		events:     events,
		logger:     logger.With().Str("component", "cart").Logger(),
		retryLimit: retryLimit,
		now:        time.Now,
	}
}

// GetOrCreateActiveCart returns the customer's draft order, creating an empty
// one if none exists. Concurrent callers converge on the same cart because
// the store rejects a second draft for the same customer.
func (s *CartService) GetOrCreateActiveCart(ctx context.Context, customerID string) (*domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer id is required")
	}

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		cart, err := s.orders.FindActiveCart(ctx, customerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("find active cart: %w", err)
		}

		now := s.now()
		cart = domain.NewCart(uuid.NewString(), customerID, now)
		err = s.orders.CreateCart(ctx, cart)
		if err == nil {
			s.logger.Info().Str("customer_id", customerID).Str("order_id", cart.ID).Msg("cart created")
			s.events.Emit(ctx, domain.NewOrderEvent(domain.EventCartCreated, cart, "", customerID, now))
			return cart, nil
		}

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		// Lost the race to a concurrent request; read its cart.
	}

	return nil, &domain.ConflictError{Resource: "cart of customer " + customerID}
}

// CartView returns the active cart, or an unsaved empty one if the customer has
// not started shopping yet.
func (s *CartService) CartView(ctx context.Context, customerID string) (*domain.Order, error) {
	cart, err := s.orders.FindActiveCart(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart("", customerID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, customerID string, ref domain.ProductRef, quantity int, unitPrice decimal.Decimal) (*domain.Order, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 || quantity > domain.MaxItemQuantity {
		return nil, domain.NewValidationErrorf("quantity must be between 1 and %d", domain.MaxItemQuantity)
	}
	if unitPrice.IsNegative() {
		return nil, domain.NewValidationError("unit price cannot be negative")
	}

	name, err := s.productName(ctx, ref)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, customerID, true, func(cart *domain.Order) error {
		return cart.AddItem(ref, name, quantity, unitPrice)
	})
}

// AddProduct adds a product at its current catalog price.
func (s *CartService) AddProduct(ctx context.Context, customerID string, ref domain.ProductRef, quantity int) (*domain.Order, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	price, err := s.productPrice(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.AddItem(ctx, customerID, ref, quantity, price)
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, customerID string, ref domain.ProductRef, quantity int) (*domain.Order, error) {
	if quantity <= 0 || quantity > domain.MaxItemQuantity {
		return nil, domain.NewValidationErrorf("quantity must be between 1 and %d", domain.MaxItemQuantity)
	}
	return s.mutate(ctx, customerID, false, func(cart *domain.Order) error {
		return cart.UpdateItemQuantity(ref, quantity)
	})
}

// RemoveItem is idempotent: removing an absent item, or removing from a
// customer with no cart, succeeds.
func (s *CartService) RemoveItem(ctx context.Context, customerID string, ref domain.ProductRef) (*domain.Order, error) {
	cart, err := s.mutate(ctx, customerID, false, func(cart *domain.Order) error {
		removed, err := cart.RemoveItem(ref)
		if err != nil {
			return err
		}
		if !removed {
			return errNothingToSave
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart("", customerID, s.now()), nil
	}
	return cart, err
}

func (s *CartService) AttachAddressAndTotal(ctx context.Context, customerID string, addr domain.Address) (*domain.Order, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, customerID, false, func(cart *domain.Order) error {
		return cart.AttachAddress(addr)
	})
}

// AttachPaymentProof submits the customer's cart for staff review.
func (s *CartService) AttachPaymentProof(ctx context.Context, customerID, proofRef string) (*domain.Order, error) {
	if strings.TrimSpace(proofRef) == "" {
		return nil, domain.NewValidationError("payment proof reference is required")
	}

	order, err := s.mutate(ctx, customerID, false, func(cart *domain.Order) error {
		return cart.AttachPaymentProof(proofRef)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("customer_id", customerID).
		Str("order_id", order.ID).
		Str("total", order.Total.StringFixed(2)).
		Msg("payment proof attached, awaiting review")
	s.events.Emit(ctx, domain.NewOrderEvent(domain.EventSubmitted, order, domain.StatusDraft, customerID, order.UpdatedAt))

	return order, nil
}

var errNothingToSave = errors.New("nothing to save")

// mutate runs a read-modify-write on the active cart, retrying a bounded number
// of times when a concurrent request saved the cart first.
func (s *CartService) mutate(ctx context.Context, customerID string, create bool, apply func(*domain.Order) error) (*domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer id is required")
	}

	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		var (
			cart *domain.Order
			err  error
		)
		if create {
			cart, err = s.GetOrCreateActiveCart(ctx, customerID)
		} else {
			cart, err = s.orders.FindActiveCart(ctx, customerID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("active cart of %s: %w", customerID, domain.ErrNotFound)
			}
		}
		if err != nil {
			return nil, err
		}

		if err := apply(cart); err != nil {
			if errors.Is(err, errNothingToSave) {
				return cart, nil
			}
			return nil, err
		}

		cart.UpdatedAt = s.now()
		err = s.orders.SaveOrder(ctx, cart)
		if err == nil {
			return cart, nil
		}

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		lastErr = err
		s.logger.Debug().Str("customer_id", customerID).Int("attempt", attempt+1).Msg("cart save conflict, retrying")
	}

	return nil, lastErr
}

func (s *CartService) productName(ctx context.Context, ref domain.ProductRef) (string, error) {
	switch ref.Type {
	case domain.ProductTypePizza:
		p, err := s.catalog.GetPizza(ctx, ref.ID)
		if err != nil {
			return "", fmt.Errorf("pizza %d: %w", ref.ID, err)
		}
		return p.Name, nil
	default:
		m, err := s.catalog.GetMiscItem(ctx, ref.ID)
		if err != nil {
			return "", fmt.Errorf("misc item %d: %w", ref.ID, err)
		}
		return m.Name, nil
	}
}

func (s *CartService) productPrice(ctx context.Context, ref domain.ProductRef) (decimal.Decimal, error) {
	switch ref.Type {
	case domain.ProductTypePizza:
		p, err := s.catalog.GetPizza(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("pizza %d: %w", ref.ID, err)
		}
		return p.Price, nil
	default:
		m, err := s.catalog.GetMiscItem(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("misc item %d: %w", ref.ID, err)
		}
		return m.Price, nil
	}
}

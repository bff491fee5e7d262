package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// InventoryService is the single-row entry point for staff stock edits. Stock
// consumed by orders goes through the Reconciler instead.
type InventoryService struct {
	repo   port.InventoryRepository
	logger zerolog.Logger
}

func NewInventoryService(repo port.InventoryRepository, logger zerolog.Logger) *InventoryService {
	return &InventoryService{
		repo:   repo,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

func (s *InventoryService) GetStock(ctx context.Context, keys ...domain.StockKey) (map[domain.StockKey]domain.StockLevel, error) {
	for _, k := range keys {
		if !k.Kind.Valid() {
			return nil, domain.NewValidationErrorf("unknown stock kind %q", k.Kind)
		}
	}
	levels, err := s.repo.GetStock(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return levels, nil
}

// Adjust applies a signed delta. A delta that would take the row below zero
// is rejected with NegativeStockError and the row is left unchanged.
func (s *InventoryService) Adjust(ctx context.Context, staff domain.Actor, key domain.StockKey, delta int) (domain.StockLevel, error) {
	if err := requireStaff(staff); err != nil {
		return domain.StockLevel{}, err
	}
	if !key.Kind.Valid() {
		return domain.StockLevel{}, domain.NewValidationErrorf("unknown stock kind %q", key.Kind)
	}
	if key.ID <= 0 {
		return domain.StockLevel{}, domain.NewValidationError("stock id is required")
	}
	if delta == 0 {
		return domain.StockLevel{}, domain.NewValidationError("delta must not be zero")
	}

	level, err := s.repo.AdjustStock(ctx, key, delta)
	if err != nil {
		var negative *domain.NegativeStockError
		if errors.As(err, &negative) {
			s.logger.Info().Str("stock_key", key.String()).Int("delta", delta).Int("current", negative.Current).Msg("stock adjustment refused")
			return domain.StockLevel{}, err
		}
		return domain.StockLevel{}, fmt.Errorf("adjust stock %s: %w", key, err)
	}

	s.logger.Info().
		Str("stock_key", key.String()).
		Str("actor", staff.ID).
		Int("delta", delta).
		Int("quantity", level.Quantity).
		Msg("stock adjusted")
	return level, nil
}

func (s *InventoryService) Increase(ctx context.Context, staff domain.Actor, key domain.StockKey, amount int) (domain.StockLevel, error) {
	if amount <= 0 {
		return domain.StockLevel{}, domain.NewValidationError("amount must be positive")
	}
	return s.Adjust(ctx, staff, key, amount)
}

func (s *InventoryService) Decrease(ctx context.Context, staff domain.Actor, key domain.StockKey, amount int) (domain.StockLevel, error) {
	if amount <= 0 {
		return domain.StockLevel{}, domain.NewValidationError("amount must be positive")
	}
	return s.Adjust(ctx, staff, key, -amount)
}

func (s *InventoryService) ListStock(ctx context.Context, staff domain.Actor) ([]domain.StockLevel, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Key.Less(levels[j].Key) })
	return levels, nil
}

// LowStock lists rows at or below their threshold, emptiest first.
func (s *InventoryService) LowStock(ctx context.Context, staff domain.Actor) ([]domain.StockLevel, error) {
	levels, err := s.ListStock(ctx, staff)
	if err != nil {
		return nil, err
	}

	low := make([]domain.StockLevel, 0)
	for _, l := range levels {
		if l.IsLow() {
			low = append(low, l)
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].Quantity < low[j].Quantity })
	return low, nil
}

package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

func TestInventory_AdjustNeverGoesNegative(t *testing.T) {
	f := newFixture(t, 10, 3)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	expected := 10
	for i := 0; i < 500; i++ {
		delta := rng.Intn(21) - 10
		if delta == 0 {
			continue
		}
		level, err := f.inventory.Adjust(ctx, staff, cheeseKey, delta)
		if expected+delta < 0 {
			var negative *domain.NegativeStockError
			require.ErrorAs(t, err, &negative)
			assert.Equal(t, expected, negative.Current)
		} else {
			require.NoError(t, err)
			expected += delta
			assert.Equal(t, expected, level.Quantity)
		}
		require.Equal(t, expected, f.stock(t, cheeseKey))
	}
}

func TestInventory_ConcurrentDecreasesStopAtZero(t *testing.T) {
	f := newFixture(t, 25, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.inventory.Decrease(context.Background(), staff, cheeseKey, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, succeeded)
	assert.Equal(t, 0, f.stock(t, cheeseKey))
}

func TestInventory_IncreaseAndDecrease(t *testing.T) {
	f := newFixture(t, 5, 3)
	ctx := context.Background()

	level, err := f.inventory.Increase(ctx, admin, drinkKey, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, level.Quantity)

	level, err = f.inventory.Decrease(ctx, staff, drinkKey, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, level.Quantity)

	var validation *domain.ValidationError
	_, err = f.inventory.Increase(ctx, staff, drinkKey, 0)
	assert.ErrorAs(t, err, &validation)
	_, err = f.inventory.Decrease(ctx, staff, drinkKey, -3)
	assert.ErrorAs(t, err, &validation)
}

func TestInventory_AdjustValidation(t *testing.T) {
	f := newFixture(t, 5, 3)
	ctx := context.Background()

	_, err := f.inventory.Adjust(ctx, domain.Actor{ID: "c", Role: domain.RoleCustomer}, cheeseKey, 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	var validation *domain.ValidationError
	_, err = f.inventory.Adjust(ctx, staff, cheeseKey, 0)
	assert.ErrorAs(t, err, &validation)
	_, err = f.inventory.Adjust(ctx, staff, domain.StockKey{Kind: "topping", ID: 1}, 1)
	assert.ErrorAs(t, err, &validation)

	_, err = f.inventory.Adjust(ctx, staff, domain.StockKey{Kind: domain.StockKindMisc, ID: 99}, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventory_LowStock(t *testing.T) {
	f := newFixture(t, 5, 0)
	ctx := context.Background()

	low, err := f.inventory.LowStock(ctx, staff)
	require.NoError(t, err)

	keys := make([]domain.StockKey, 0, len(low))
	for _, l := range low {
		keys = append(keys, l.Key)
	}
	assert.ElementsMatch(t, []domain.StockKey{crustKey, drinkKey}, keys)
	assert.NotContains(t, keys, cheeseKey)

	_, err = f.inventory.LowStock(ctx, domain.Actor{ID: "c", Role: domain.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestInventory_ListStockIsOrdered(t *testing.T) {
	f := newFixture(t, 5, 3)

	levels, err := f.inventory.ListStock(context.Background(), staff)

	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, cheeseKey, levels[0].Key)
	assert.Equal(t, crustKey, levels[1].Key)
	assert.Equal(t, drinkKey, levels[2].Key)
}

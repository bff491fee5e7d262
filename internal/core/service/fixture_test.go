package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
)

const (
	cheeseID int64 = 1
	crustID  int64 = 2
	pizzaID  int64 = 1
	drinkID  int64 = 1
)

var (
	staff     = domain.Actor{ID: "staff-1", Role: domain.RoleEmployee}
	admin     = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	cheeseKey = domain.StockKey{Kind: domain.StockKindIngredient, ID: cheeseID}
	crustKey  = domain.StockKey{Kind: domain.StockKindIngredient, ID: crustID}
	drinkKey  = domain.StockKey{Kind: domain.StockKindMisc, ID: drinkID}
	pizzaRef  = domain.ProductRef{Type: domain.ProductTypePizza, ID: pizzaID}
	drinkRef  = domain.ProductRef{Type: domain.ProductTypeMisc, ID: drinkID}
)

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store     *storage.MemoryAdapter
	published *recordingPublisher
	events    *EventDispatcher
	carts     *CartService
	orders    *OrderService
	inventory *InventoryService
	catalog   *CatalogService
}

// newFixture builds the services over an in-memory store holding one pizza
// that needs 2 cheese and 1 untracked crust, and one drink.
func newFixture(t *testing.T, cheese, drinks int, opts ...OrderServiceOption) *fixture {
	t.Helper()

	store := storage.NewMemoryAdapter()
	store.AddIngredient(domain.Ingredient{ID: cheeseID, Name: "cheese", Unit: "unit", Quantity: cheese, Trackable: true, LowStockThreshold: 1, Version: 1})
	store.AddIngredient(domain.Ingredient{ID: crustID, Name: "original_M", Unit: "piece", Quantity: 0, Trackable: false, Version: 1})
	store.AddPizza(domain.Pizza{
		ID:    pizzaID,
		Name:  "Cheese Pizza",
		Price: decimal.NewFromInt(100),
		BOM: []domain.BOMEntry{
			{IngredientID: cheeseID, Quantity: 2},
			{IngredientID: crustID, Quantity: 1},
		},
	})
	store.AddMiscItem(domain.MiscItem{ID: drinkID, Name: "Cola", Price: decimal.NewFromInt(49), Quantity: drinks, LowStockThreshold: 1, Version: 1})

	logger := zerolog.Nop()
	published := &recordingPublisher{}
	events := NewEventDispatcher(published, 100, logger)
	events.Start(1)
	t.Cleanup(events.Close)

	return &fixture{
		store:     store,
		published: published,
		events:    events,
		carts:     NewCartService(store, store, events, logger, 3),
		orders:    NewOrderService(store, NewReconciler(store, logger), events, logger, opts...),
		inventory: NewInventoryService(store, logger),
		catalog:   NewCatalogService(store, StandardPricing{}, logger),
	}
}

// submit fills customerID's cart and attaches payment proof.
func (f *fixture) submit(t *testing.T, customerID string, pizzas, drinks int) *domain.Order {
	t.Helper()
	ctx := context.Background()

	if pizzas > 0 {
		_, err := f.carts.AddProduct(ctx, customerID, pizzaRef, pizzas)
		require.NoError(t, err)
	}
	if drinks > 0 {
		_, err := f.carts.AddProduct(ctx, customerID, drinkRef, drinks)
		require.NoError(t, err)
	}
	order, err := f.carts.AttachPaymentProof(ctx, customerID, "https://proofs.example/"+customerID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingReview, order.Status)
	return order
}

func (f *fixture) stock(t *testing.T, key domain.StockKey) int {
	t.Helper()
	levels, err := f.store.GetStock(context.Background(), []domain.StockKey{key})
	require.NoError(t, err)
	return levels[key].Quantity
}

func (f *fixture) status(t *testing.T, orderID string) domain.Status {
	t.Helper()
	order, err := f.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order.Status
}

// fixedClock returns a clock that reads t and can be moved forward.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

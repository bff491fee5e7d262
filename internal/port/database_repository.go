package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// FindActiveCart returns domain.ErrNotFound when the customer has no draft.
	FindActiveCart(ctx context.Context, customerID string) (*domain.Order, error)

	// CreateCart inserts a new draft; it fails with a ConflictError if the
	// customer already has one (unique constraint).
	CreateCart(ctx context.Context, cart *domain.Order) error

	// SaveOrder persists items, address, proof, total and status with a
	// version check, bumping order.Version on success.
	SaveOrder(ctx context.Context, order *domain.Order) error

	ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListOrdersByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Order, error)
	ListStaleCarts(ctx context.Context, updatedBefore time.Time) ([]domain.Order, error)
}

type CatalogRepository interface {
	GetPizza(ctx context.Context, id int64) (*domain.Pizza, error)
	GetMiscItem(ctx context.Context, id int64) (*domain.MiscItem, error)
	ListPizzas(ctx context.Context) ([]domain.Pizza, error)
	ListMiscItems(ctx context.Context) ([]domain.MiscItem, error)
	FindIngredientByName(ctx context.Context, name string) (*domain.Ingredient, error)
	CreatePizza(ctx context.Context, pizza *domain.Pizza) error
	UpdatePrice(ctx context.Context, ref domain.ProductRef, price decimal.Decimal) error
}

type InventoryRepository interface {
	GetStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error)
	ListStock(ctx context.Context) ([]domain.StockLevel, error)

	// AdjustStock applies a single signed delta atomically and returns the new
	// level, or a NegativeStockError leaving the row unchanged.
	AdjustStock(ctx context.Context, key domain.StockKey, delta int) (domain.StockLevel, error)
}

// Transactor runs fn as one atomic unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the only place multi-row stock changes are exposed.
type Tx interface {
	// LockOrder reads the order and holds it until the unit ends.
	LockOrder(ctx context.Context, orderID string) (*domain.Order, error)

	BillsOfMaterials(ctx context.Context, pizzaIDs []int64) (map[int64][]domain.BOMEntry, error)

	// LockStock reads the rows for keys in one consistent snapshot and holds
	// them until the unit ends. Missing rows are absent from the result.
	LockStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error)

	// ApplyStockDeltas applies all deltas or none.
	ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) error

	UpdateOrderStatus(ctx context.Context, order *domain.Order) error
}

type DatabaseRepository interface {
	OrderRepository
	CatalogRepository
	InventoryRepository
	Transactor

	Ping(ctx context.Context) error
}

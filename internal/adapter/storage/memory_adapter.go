package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// MemoryAdapter keeps the whole store in process. A unit of work holds the
// store lock for its duration and stages its writes until commit, so it has
// the same all-or-nothing behaviour as the MySQL adapter.
type MemoryAdapter struct {
	mu sync.Mutex

	orders      map[string]*domain.Order
	pizzas      map[int64]domain.Pizza
	misc        map[int64]domain.MiscItem
	ingredients map[int64]domain.Ingredient
	stock       map[domain.StockKey]domain.StockLevel

	nextPizzaID int64
}

var _ port.DatabaseRepository = (*MemoryAdapter)(nil)

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		orders:      make(map[string]*domain.Order),
		pizzas:      make(map[int64]domain.Pizza),
		misc:        make(map[int64]domain.MiscItem),
		ingredients: make(map[int64]domain.Ingredient),
		stock:       make(map[domain.StockKey]domain.StockLevel),
		nextPizzaID: 1,
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddIngredient registers an ingredient and its stock row.
func (m *MemoryAdapter) AddIngredient(ing domain.Ingredient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ingredients[ing.ID] = ing
	m.stock[ing.Key()] = domain.StockLevel{
		Key:               ing.Key(),
		Name:              ing.Name,
		Unit:              ing.Unit,
		Quantity:          ing.Quantity,
		LowStockThreshold: ing.LowStockThreshold,
		Version:           ing.Version,
		UpdatedAt:         ing.UpdatedAt,
	}
}

// AddMiscItem registers a sellable item and its stock row.
func (m *MemoryAdapter) AddMiscItem(item domain.MiscItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.misc[item.ID] = item
	m.stock[item.Key()] = domain.StockLevel{
		Key:               item.Key(),
		Name:              item.Name,
		Unit:              "piece",
		Quantity:          item.Quantity,
		LowStockThreshold: item.LowStockThreshold,
		Version:           item.Version,
	}
}

// AddPizza registers a pizza with a fixed id.
func (m *MemoryAdapter) AddPizza(p domain.Pizza) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pizzas[p.ID] = clonePizza(p)
	if p.ID >= m.nextPizzaID {
		m.nextPizzaID = p.ID + 1
	}
}

// ---- orders ----

func (m *MemoryAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (m *MemoryAdapter) FindActiveCart(ctx context.Context, customerID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o := m.activeCart(customerID); o != nil {
		return cloneOrder(o), nil
	}
	return nil, fmt.Errorf("cart of %s: %w", customerID, domain.ErrNotFound)
}

func (m *MemoryAdapter) activeCart(customerID string) *domain.Order {
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.Status == domain.StatusDraft {
			return o
		}
	}
	return nil
}

func (m *MemoryAdapter) CreateCart(ctx context.Context, cart *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeCart(cart.CustomerID) != nil {
		return &domain.ConflictError{Resource: "cart of customer " + cart.CustomerID, Err: ErrDuplicateCart}
	}
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	if _, exists := m.orders[cart.ID]; exists {
		return &domain.ConflictError{Resource: "order " + cart.ID, Err: ErrDuplicateCart}
	}
	cart.Version = 1
	m.orders[cart.ID] = cloneOrder(cart)
	return nil
}

func (m *MemoryAdapter) SaveOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrNotFound)
	}
	if current.Version != order.Version {
		return &domain.ConflictError{Resource: "order " + order.ID, Err: ErrOptimisticLock}
	}
	order.Version++
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryAdapter) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return m.listOrders(func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (m *MemoryAdapter) ListOrdersByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Order, error) {
	want := make(map[domain.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	return m.listOrders(func(o *domain.Order) bool { return want[o.Status] }), nil
}

func (m *MemoryAdapter) ListStaleCarts(ctx context.Context, updatedBefore time.Time) ([]domain.Order, error) {
	return m.listOrders(func(o *domain.Order) bool {
		return o.Status == domain.StatusDraft && o.PaymentProof == "" && o.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (m *MemoryAdapter) listOrders(match func(*domain.Order) bool) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Order, 0)
	for _, o := range m.orders {
		if match(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ---- catalog ----

func (m *MemoryAdapter) GetPizza(ctx context.Context, id int64) (*domain.Pizza, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pizzas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p = clonePizza(p)
	return &p, nil
}

func (m *MemoryAdapter) GetMiscItem(ctx context.Context, id int64) (*domain.MiscItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.misc[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item = m.withStock(item)
	return &item, nil
}

func (m *MemoryAdapter) withStock(item domain.MiscItem) domain.MiscItem {
	level := m.stock[item.Key()]
	item.Quantity = level.Quantity
	item.Version = level.Version
	return item
}

func (m *MemoryAdapter) ListPizzas(ctx context.Context) ([]domain.Pizza, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Pizza, 0, len(m.pizzas))
	for _, p := range m.pizzas {
		out = append(out, clonePizza(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) ListMiscItems(ctx context.Context) ([]domain.MiscItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.MiscItem, 0, len(m.misc))
	for _, item := range m.misc {
		out = append(out, m.withStock(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) FindIngredientByName(ctx context.Context, name string) (*domain.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ing := range m.ingredients {
		if strings.EqualFold(ing.Name, name) {
			ing.Quantity = m.stock[ing.Key()].Quantity
			return &ing, nil
		}
	}
	return nil, fmt.Errorf("ingredient %q: %w", name, domain.ErrNotFound)
}

func (m *MemoryAdapter) CreatePizza(ctx context.Context, pizza *domain.Pizza) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range pizza.BOM {
		if _, ok := m.ingredients[e.IngredientID]; !ok {
			return fmt.Errorf("ingredient %d: %w", e.IngredientID, domain.ErrNotFound)
		}
	}
	pizza.ID = m.nextPizzaID
	m.nextPizzaID++
	m.pizzas[pizza.ID] = clonePizza(*pizza)
	return nil
}

func (m *MemoryAdapter) UpdatePrice(ctx context.Context, ref domain.ProductRef, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ref.Type {
	case domain.ProductTypePizza:
		p, ok := m.pizzas[ref.ID]
		if !ok {
			return domain.ErrNotFound
		}
		p.Price = price
		m.pizzas[ref.ID] = p
	case domain.ProductTypeMisc:
		item, ok := m.misc[ref.ID]
		if !ok {
			return domain.ErrNotFound
		}
		item.Price = price
		m.misc[ref.ID] = item
	default:
		return domain.NewValidationErrorf("unknown product type %q", ref.Type)
	}
	return nil
}

// ---- inventory ----

func (m *MemoryAdapter) GetStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[domain.StockKey]domain.StockLevel, len(keys))
	for _, k := range keys {
		if level, ok := m.stock[k]; ok {
			out[k] = level
		}
	}
	return out, nil
}

func (m *MemoryAdapter) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.StockLevel, 0, len(m.stock))
	for _, level := range m.stock {
		out = append(out, level)
	}
	return out, nil
}

func (m *MemoryAdapter) AdjustStock(ctx context.Context, key domain.StockKey, delta int) (domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level, ok := m.stock[key]
	if !ok {
		return domain.StockLevel{}, fmt.Errorf("stock %s: %w", key, domain.ErrNotFound)
	}
	next, err := level.ApplyDelta(delta)
	if err != nil {
		return domain.StockLevel{}, err
	}
	level.Quantity = next
	level.Version++
	level.UpdatedAt = time.Now()
	m.stock[key] = level
	return level, nil
}

// ---- unit of work ----

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:  m,
		orders: make(map[string]*domain.Order),
		stock:  make(map[domain.StockKey]domain.StockLevel),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, o := range tx.orders {
		m.orders[id] = o
	}
	for k, level := range tx.stock {
		m.stock[k] = level
	}
	return nil
}

// memoryTx stages writes; reads see staged values first.
type memoryTx struct {
	store  *MemoryAdapter
	orders map[string]*domain.Order
	stock  map[domain.StockKey]domain.StockLevel
}

func (t *memoryTx) order(id string) (*domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	o, ok := t.store.orders[id]
	return o, ok
}

func (t *memoryTx) level(k domain.StockKey) (domain.StockLevel, bool) {
	if l, ok := t.stock[k]; ok {
		return l, true
	}
	l, ok := t.store.stock[k]
	return l, ok
}

func (t *memoryTx) LockOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := t.order(orderID)
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (t *memoryTx) BillsOfMaterials(ctx context.Context, pizzaIDs []int64) (map[int64][]domain.BOMEntry, error) {
	out := make(map[int64][]domain.BOMEntry, len(pizzaIDs))
	for _, id := range pizzaIDs {
		p, ok := t.store.pizzas[id]
		if !ok {
			continue
		}
		entries := make([]domain.BOMEntry, 0, len(p.BOM))
		for _, e := range p.BOM {
			ing, ok := t.store.ingredients[e.IngredientID]
			if !ok {
				return nil, fmt.Errorf("ingredient %d: %w", e.IngredientID, domain.ErrNotFound)
			}
			e.Trackable = ing.Trackable
			entries = append(entries, e)
		}
		out[id] = entries
	}
	return out, nil
}

func (t *memoryTx) LockStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error) {
	out := make(map[domain.StockKey]domain.StockLevel, len(keys))
	for _, k := range keys {
		if l, ok := t.level(k); ok {
			out[k] = l
		}
	}
	return out, nil
}

func (t *memoryTx) ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) error {
	staged := make(map[domain.StockKey]domain.StockLevel, len(deltas))
	now := time.Now()
	for _, d := range deltas {
		level, ok := staged[d.Key]
		if !ok {
			level, ok = t.level(d.Key)
		}
		if !ok {
			return fmt.Errorf("stock %s: %w", d.Key, domain.ErrNotFound)
		}
		next, err := level.ApplyDelta(d.Delta)
		if err != nil {
			return err
		}
		level.Quantity = next
		level.Version++
		level.UpdatedAt = now
		staged[d.Key] = level
	}
	for k, l := range staged {
		t.stock[k] = l
	}
	return nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	current, ok := t.order(order.ID)
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrNotFound)
	}
	if current.Version != order.Version {
		return &domain.ConflictError{Resource: "order " + order.ID, Err: ErrOptimisticLock}
	}
	order.Version++
	t.orders[order.ID] = cloneOrder(order)
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append(make([]domain.OrderItem, 0, len(o.Items)), o.Items...)
	if o.Address != nil {
		addr := *o.Address
		c.Address = &addr
	}
	return &c
}

func clonePizza(p domain.Pizza) domain.Pizza {
	p.BOM = append([]domain.BOMEntry(nil), p.BOM...)
	return p
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

var _ port.DatabaseRepository = (*MySQLAdapter)(nil)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// ---- orders ----

const orderColumns = `id, customer_id, status, total, payment_proof, status_note, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &status, &o.Total, &o.PaymentProof, &o.StatusNote, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	st, ok := domain.ParseStatus(status)
	if !ok {
		return o, fmt.Errorf("order %s has unknown status %q", o.ID, status)
	}
	o.Status = st
	o.Items = make([]domain.OrderItem, 0)
	return o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return getOrder(ctx, m.db, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
}

func getOrder(ctx context.Context, q querier, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	orders := []domain.Order{o}
	if err := hydrateOrders(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (m *MySQLAdapter) FindActiveCart(ctx context.Context, customerID string) (*domain.Order, error) {
	o, err := getOrder(ctx, m.db, `SELECT `+orderColumns+` FROM orders WHERE cart_owner = ?`, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cart of %s: %w", customerID, domain.ErrNotFound)
	}
	return o, err
}

func (m *MySQLAdapter) CreateCart(ctx context.Context, cart *domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, total, payment_proof, status_note, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', '', 1, ?, ?)`,
		cart.ID, cart.CustomerID, cart.Status, cart.Total, cart.CreatedAt, cart.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return &domain.ConflictError{Resource: "cart of customer " + cart.CustomerID, Err: ErrDuplicateCart}
	}
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	cart.Version = 1
	return nil
}

// SaveOrder rewrites the order row and its lines in one transaction, guarded
// by the version the caller read.
func (m *MySQLAdapter) SaveOrder(ctx context.Context, order *domain.Order) error {
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, total = ?, payment_proof = ?, status_note = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			order.Status, order.Total, order.PaymentProof, order.StatusNote, order.UpdatedAt,
			order.ID, order.Version,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := m.checkOrderUpdated(ctx, tx, result, order.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, order.ID); err != nil {
			return fmt.Errorf("clear order items: %w", err)
		}
		for i, item := range order.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, item_type, item_id, name, quantity, unit_price, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				order.ID, item.Product.Type, item.Product.ID, item.Name, item.Quantity, item.UnitPrice, i,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if order.Address != nil {
			a := order.Address
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_addresses
					(order_id, receiver_name, phone_no, house_no, village_no, street, sub_district, district, province, postal_code, country)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					receiver_name = VALUES(receiver_name), phone_no = VALUES(phone_no), house_no = VALUES(house_no),
					village_no = VALUES(village_no), street = VALUES(street), sub_district = VALUES(sub_district),
					district = VALUES(district), province = VALUES(province), postal_code = VALUES(postal_code),
					country = VALUES(country)`,
				order.ID, a.ReceiverName, a.Phone, a.HouseNo, a.VillageNo, a.Street, a.SubDistrict,
				a.District, a.Province, a.PostalCode, a.Country,
			)
			if err != nil {
				return fmt.Errorf("upsert order address: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return mapMySQLError("order "+order.ID, err)
	}
	order.Version++
	return nil
}

func (m *MySQLAdapter) checkOrderUpdated(ctx context.Context, q querier, result sql.Result, orderID string) error {
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return &domain.ConflictError{Resource: "order " + orderID, Err: ErrOptimisticLock}
}

func (m *MySQLAdapter) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return listOrders(ctx, m.db, `SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

func (m *MySQLAdapter) ListOrdersByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Order, error) {
	if len(statuses) == 0 {
		return []domain.Order{}, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status IN (` + placeholders(len(args)) + `) ORDER BY created_at DESC`
	return listOrders(ctx, m.db, query, args...)
}

func (m *MySQLAdapter) ListStaleCarts(ctx context.Context, updatedBefore time.Time) ([]domain.Order, error) {
	return listOrders(ctx, m.db, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = ? AND payment_proof = '' AND updated_at < ?
		ORDER BY updated_at`, domain.StatusDraft, updatedBefore)
}

func listOrders(ctx context.Context, q querier, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := hydrateOrders(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// hydrateOrders loads lines and addresses for orders in two queries.
func hydrateOrders(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[string]int, len(orders))
	ids := make([]any, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}
	in := placeholders(len(ids))

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, item_type, item_id, name, quantity, unit_price
		FROM order_items WHERE order_id IN (`+in+`) ORDER BY order_id, position`, ids...)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			kind    string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &kind, &item.Product.ID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		item.Product.Type = domain.ProductType(kind)
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT order_id, receiver_name, phone_no, house_no, village_no, street, sub_district, district, province, postal_code, country
		FROM order_addresses WHERE order_id IN (`+in+`)`, ids...)
	if err != nil {
		return fmt.Errorf("query order addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			a       domain.Address
		)
		if err := rows.Scan(&orderID, &a.ReceiverName, &a.Phone, &a.HouseNo, &a.VillageNo, &a.Street,
			&a.SubDistrict, &a.District, &a.Province, &a.PostalCode, &a.Country); err != nil {
			return fmt.Errorf("scan order address: %w", err)
		}
		orders[index[orderID]].Address = &a
	}
	return rows.Err()
}

// ---- catalog ----

func (m *MySQLAdapter) GetPizza(ctx context.Context, id int64) (*domain.Pizza, error) {
	var p domain.Pizza
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, created_by, created_at FROM pizzas WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query pizza: %w", err)
	}

	boms, err := billsOfMaterials(ctx, m.db, []int64{id}, "")
	if err != nil {
		return nil, err
	}
	p.BOM = boms[id]
	return &p, nil
}

func (m *MySQLAdapter) ListPizzas(ctx context.Context) ([]domain.Pizza, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, price, created_by, created_at FROM pizzas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query pizzas: %w", err)
	}
	defer rows.Close()

	pizzas := make([]domain.Pizza, 0)
	for rows.Next() {
		var p domain.Pizza
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pizza: %w", err)
		}
		pizzas = append(pizzas, p)
	}
	return pizzas, rows.Err()
}

func (m *MySQLAdapter) GetMiscItem(ctx context.Context, id int64) (*domain.MiscItem, error) {
	var item domain.MiscItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, low_stock_threshold, version FROM misc_items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.LowStockThreshold, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query misc item: %w", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) ListMiscItems(ctx context.Context) ([]domain.MiscItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, low_stock_threshold, version FROM misc_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query misc items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.MiscItem, 0)
	for rows.Next() {
		var item domain.MiscItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.LowStockThreshold, &item.Version); err != nil {
			return nil, fmt.Errorf("scan misc item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) FindIngredientByName(ctx context.Context, name string) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, unit, quantity, trackable, low_stock_threshold, version, updated_at
		FROM ingredients WHERE name = ?`, name,
	).Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.Quantity, &ing.Trackable, &ing.LowStockThreshold, &ing.Version, &ing.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ingredient %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query ingredient: %w", err)
	}
	return &ing, nil
}

func (m *MySQLAdapter) CreatePizza(ctx context.Context, pizza *domain.Pizza) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO pizzas (name, price, created_by, created_at) VALUES (?, ?, ?, ?)`,
			pizza.Name, pizza.Price, pizza.CreatedBy, pizza.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pizza: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("pizza id: %w", err)
		}

		for _, e := range pizza.BOM {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pizza_ingredients (pizza_id, ingredient_id, quantity) VALUES (?, ?, ?)`,
				id, e.IngredientID, e.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert pizza ingredient: %w", err)
			}
		}
		pizza.ID = id
		return nil
	})
}

func (m *MySQLAdapter) UpdatePrice(ctx context.Context, ref domain.ProductRef, price decimal.Decimal) error {
	var table string
	switch ref.Type {
	case domain.ProductTypePizza:
		table = "pizzas"
	case domain.ProductTypeMisc:
		table = "misc_items"
	default:
		return domain.NewValidationErrorf("unknown product type %q", ref.Type)
	}

	result, err := m.db.ExecContext(ctx, `UPDATE `+table+` SET price = ? WHERE id = ?`, price, ref.ID)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}
	// Zero rows also means the price was unchanged.
	var exists int
	if err := m.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, ref.ID).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return nil
}

// billsOfMaterials loads BOM lines with each ingredient's trackable flag.
// lock is appended to the query, e.g. "LOCK IN SHARE MODE".
func billsOfMaterials(ctx context.Context, q querier, pizzaIDs []int64, lock string) (map[int64][]domain.BOMEntry, error) {
	out := make(map[int64][]domain.BOMEntry, len(pizzaIDs))
	if len(pizzaIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(pizzaIDs))
	for i, id := range pizzaIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, `
		SELECT pi.pizza_id, pi.ingredient_id, pi.quantity, i.trackable
		FROM pizza_ingredients pi
		JOIN ingredients i ON i.id = pi.ingredient_id
		WHERE pi.pizza_id IN (`+placeholders(len(args))+`)
		ORDER BY pi.pizza_id, pi.ingredient_id `+lock, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills of materials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pizzaID int64
			e       domain.BOMEntry
		)
		if err := rows.Scan(&pizzaID, &e.IngredientID, &e.Quantity, &e.Trackable); err != nil {
			return nil, fmt.Errorf("scan bill of materials: %w", err)
		}
		out[pizzaID] = append(out[pizzaID], e)
	}
	return out, rows.Err()
}

// ---- inventory ----

func stockTable(kind domain.StockKind) (table, unit string, err error) {
	switch kind {
	case domain.StockKindIngredient:
		return "ingredients", "unit", nil
	case domain.StockKindMisc:
		return "misc_items", "'piece'", nil
	default:
		return "", "", domain.NewValidationErrorf("unknown stock kind %q", kind)
	}
}

// readStock reads the rows for keys grouped per table, ingredients before
// misc items and ascending id within a table. lock is appended to each query.
func readStock(ctx context.Context, q querier, keys []domain.StockKey, lock string) (map[domain.StockKey]domain.StockLevel, error) {
	byKind := make(map[domain.StockKind][]any)
	for _, k := range keys {
		byKind[k.Kind] = append(byKind[k.Kind], k.ID)
	}

	out := make(map[domain.StockKey]domain.StockLevel, len(keys))
	for _, kind := range []domain.StockKind{domain.StockKindIngredient, domain.StockKindMisc} {
		ids := byKind[kind]
		if len(ids) == 0 {
			continue
		}
		table, unit, err := stockTable(kind)
		if err != nil {
			return nil, err
		}
		levels, err := queryStock(ctx, q, kind, `
			SELECT id, name, `+unit+`, quantity, low_stock_threshold, version, updated_at
			FROM `+table+` WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id `+lock, ids...)
		if err != nil {
			return nil, err
		}
		for _, l := range levels {
			out[l.Key] = l
		}
	}
	return out, nil
}

func queryStock(ctx context.Context, q querier, kind domain.StockKind, query string, args ...any) ([]domain.StockLevel, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		l := domain.StockLevel{Key: domain.StockKey{Kind: kind}}
		if err := rows.Scan(&l.Key.ID, &l.Name, &l.Unit, &l.Quantity, &l.LowStockThreshold, &l.Version, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (m *MySQLAdapter) GetStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error) {
	return readStock(ctx, m.db, keys, "")
}

func (m *MySQLAdapter) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	for _, kind := range []domain.StockKind{domain.StockKindIngredient, domain.StockKindMisc} {
		table, unit, _ := stockTable(kind)
		levels, err := queryStock(ctx, m.db, kind, `
			SELECT id, name, `+unit+`, quantity, low_stock_threshold, version, updated_at
			FROM `+table+` ORDER BY id`)
		if err != nil {
			return nil, err
		}
		out = append(out, levels...)
	}
	return out, nil
}

// AdjustStock locks the row, checks the result stays non-negative and writes
// it back under a version guard.
func (m *MySQLAdapter) AdjustStock(ctx context.Context, key domain.StockKey, delta int) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		levels, err := readStock(ctx, tx, []domain.StockKey{key}, "FOR UPDATE")
		if err != nil {
			return err
		}
		current, ok := levels[key]
		if !ok {
			return fmt.Errorf("stock %s: %w", key, domain.ErrNotFound)
		}
		next, err := current.ApplyDelta(delta)
		if err != nil {
			return err
		}

		table, _, _ := stockTable(key.Kind)
		now := time.Now()
		result, err := tx.ExecContext(ctx, `
			UPDATE `+table+`
			SET quantity = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			next, now, key.ID, current.Version,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return &domain.ConflictError{Resource: "stock " + key.String(), Err: ErrOptimisticLock}
		}

		level = current
		level.Quantity = next
		level.Version++
		level.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.StockLevel{}, mapMySQLError("stock "+key.String(), err)
	}
	return level, nil
}

// ---- unit of work ----

func (m *MySQLAdapter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	err := m.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &mysqlTx{tx: tx})
	})
	if err != nil {
		return mapMySQLError("transaction", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return o, err
}

func (t *mysqlTx) BillsOfMaterials(ctx context.Context, pizzaIDs []int64) (map[int64][]domain.BOMEntry, error) {
	return billsOfMaterials(ctx, t.tx, pizzaIDs, "")
}

func (t *mysqlTx) LockStock(ctx context.Context, keys []domain.StockKey) (map[domain.StockKey]domain.StockLevel, error) {
	return readStock(ctx, t.tx, keys, "FOR UPDATE")
}

// ApplyStockDeltas issues one guarded update per row. A row that no longer
// has enough stock aborts the whole unit.
func (t *mysqlTx) ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) error {
	now := time.Now()
	for _, d := range deltas {
		table, _, err := stockTable(d.Key.Kind)
		if err != nil {
			return err
		}
		result, err := t.tx.ExecContext(ctx, `
			UPDATE `+table+`
			SET quantity = quantity + ?, version = version + 1, updated_at = ?
			WHERE id = ? AND quantity + ? >= 0`,
			d.Delta, now, d.Key.ID, d.Delta,
		)
		if err != nil {
			return fmt.Errorf("update stock %s: %w", d.Key, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return &domain.ConflictError{Resource: "stock " + d.Key.String(), Err: ErrOptimisticLock}
		}
	}
	return nil
}

func (t *mysqlTx) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, status_note = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		order.Status, order.StatusNote, order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &domain.ConflictError{Resource: "order " + order.ID, Err: ErrOptimisticLock}
	}
	order.Version++
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	carts   *service.CartService
	orders  *service.OrderService
	cleanup func()
}

var staff = domain.Actor{ID: "integration-staff", Role: domain.RoleEmployee}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/pizzeria?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	logger := zerolog.Nop()
	if err := storage.Migrate(context.Background(), db, logger); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)
	return &testEnv{
		redis:  rdb,
		mysql:  db,
		cache:  cache,
		db:     store,
		carts:  service.NewCartService(store, store, nil, logger, 5),
		orders: service.NewOrderService(store, service.NewReconciler(store, logger), nil, logger, service.WithApprovalGuard(cache, 10*time.Second)),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

// seedMiscItem inserts a sellable item with its own stock row.
func (env *testEnv) seedMiscItem(t *testing.T, stock int) domain.StockKey {
	t.Helper()
	res, err := env.mysql.ExecContext(context.Background(), `
		INSERT INTO misc_items (name, price, quantity) VALUES (?, 49, ?)`,
		"integration-cola-"+uuid.NewString()[:8], stock)
	if err != nil {
		t.Fatalf("seed misc item: %v", err)
	}
	id, _ := res.LastInsertId()
	return domain.StockKey{Kind: domain.StockKindMisc, ID: id}
}

func (env *testEnv) submit(t *testing.T, key domain.StockKey, quantity int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	customer := "integration-customer-" + uuid.NewString()
	ref := domain.ProductRef{Type: domain.ProductTypeMisc, ID: key.ID}

	if _, err := env.carts.AddProduct(ctx, customer, ref, quantity); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := env.carts.AttachAddressAndTotal(ctx, customer, domain.Address{
		ReceiverName: "Integration", Phone: "0800000000", HouseNo: "1",
		District: "Pathum Wan", Province: "Bangkok", PostalCode: "10330",
	}); err != nil {
		t.Fatalf("attach address: %v", err)
	}
	order, err := env.carts.AttachPaymentProof(ctx, customer, "proof://"+customer)
	if err != nil {
		t.Fatalf("attach payment proof: %v", err)
	}
	return order
}

func (env *testEnv) stockOf(t *testing.T, key domain.StockKey) int {
	t.Helper()
	var qty int
	err := env.mysql.QueryRowContext(context.Background(), `SELECT quantity FROM misc_items WHERE id = ?`, key.ID).Scan(&qty)
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return qty
}

func TestIntegration_FullOrderLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	key := env.seedMiscItem(t, 5)
	order := env.submit(t, key, 2)

	if order.Status != domain.StatusAwaitingReview {
		t.Fatalf("expected awaiting_review, got %s", order.Status)
	}
	if env.stockOf(t, key) != 5 {
		t.Fatal("stock must not move before approval")
	}

	result, err := env.orders.Approve(ctx, order.ID, staff)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if result.Order.Status != domain.StatusPreparing {
		t.Errorf("expected preparing, got %s", result.Order.Status)
	}
	if got := env.stockOf(t, key); got != 3 {
		t.Errorf("expected stock 3 after approval, got %d", got)
	}

	again, err := env.orders.Approve(ctx, order.ID, staff)
	if err != nil {
		t.Fatalf("second approve failed: %v", err)
	}
	if !again.AlreadyProcessed {
		t.Error("second approve should be a no-op")
	}

	if _, err := env.orders.MarkDelivering(ctx, order.ID, staff); err != nil {
		t.Fatalf("mark delivering: %v", err)
	}
	done, err := env.orders.MarkSuccess(ctx, order.ID, staff)
	if err != nil {
		t.Fatalf("mark success: %v", err)
	}
	if done.Status != domain.StatusSuccess {
		t.Errorf("expected success, got %s", done.Status)
	}
	if got := env.stockOf(t, key); got != 3 {
		t.Errorf("stock moved after approval: %d", got)
	}
}

func TestIntegration_InsufficientStockLeavesOrderPending(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	key := env.seedMiscItem(t, 1)
	order := env.submit(t, key, 2)

	_, err := env.orders.Approve(ctx, order.ID, staff)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	stored, _ := env.db.GetOrder(ctx, order.ID)
	if stored.Status != domain.StatusAwaitingReview {
		t.Errorf("expected awaiting_review, got %s", stored.Status)
	}
	if got := env.stockOf(t, key); got != 1 {
		t.Errorf("expected stock 1, got %d", got)
	}
}

func TestIntegration_ConcurrentApprovals(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	initialStock := 10
	totalOrders := 25
	clicks := 4
	key := env.seedMiscItem(t, initialStock)

	orders := make([]*domain.Order, 0, totalOrders)
	for i := 0; i < totalOrders; i++ {
		orders = append(orders, env.submit(t, key, 1))
	}

	var wg sync.WaitGroup
	var approved, refused atomic.Int32

	for _, order := range orders {
		for c := 0; c < clicks; c++ {
			wg.Add(1)
			go func(orderID string) {
				defer wg.Done()
				for attempt := 0; attempt < 100; attempt++ {
					result, err := env.orders.Approve(ctx, orderID, staff)
					var conflict *domain.ConflictError
					var stockErr *domain.InsufficientStockError
					switch {
					case err == nil:
						if !result.AlreadyProcessed {
							approved.Add(1)
						}
						return
					case errors.As(err, &stockErr):
						refused.Add(1)
						return
					case errors.As(err, &conflict):
						time.Sleep(20 * time.Millisecond)
					default:
						t.Errorf("unexpected error: %v", err)
						return
					}
				}
			}(order.ID)
		}
	}

	wg.Wait()

	t.Logf("Approved: %d, Refused: %d", approved.Load(), refused.Load())

	if int(approved.Load()) != initialStock {
		t.Errorf("expected %d approvals, got %d", initialStock, approved.Load())
	}
	if got := env.stockOf(t, key); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}

	var preparing int
	for _, order := range orders {
		stored, err := env.db.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if stored.Status == domain.StatusPreparing {
			preparing++
		}
	}
	if preparing != initialStock {
		t.Errorf("expected %d preparing orders, got %d", initialStock, preparing)
	}
}

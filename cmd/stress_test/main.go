package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/adapter/messaging"
	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
	"github.com/rl1809/pizzeria/internal/port"
)

const (
	initialStock   = 20
	totalOrders    = 50
	duplicateClick = 3 // approvals fired per order
	queueSize      = 1000
)

var staff = domain.Actor{ID: "stress-staff", Role: domain.RoleEmployee}

func main() {
	ctx := context.Background()
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	store, itemID, cleanup, err := openStore(ctx, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer cleanup()

	events := service.NewEventDispatcher(messaging.NewLogPublisher(logger), queueSize, logger)
	events.Start(2)
	defer events.Close()

	carts := service.NewCartService(store, store, events, logger, 3)
	orders := service.NewOrderService(store, service.NewReconciler(store, logger), events, logger)

	// Every customer checks out one unit of the same item.
	ref := domain.ProductRef{Type: domain.ProductTypeMisc, ID: itemID}
	orderIDs := make([]string, 0, totalOrders)
	for i := 0; i < totalOrders; i++ {
		customer := fmt.Sprintf("stress-customer-%d-%d", time.Now().UnixNano(), i)
		if _, err := carts.AddProduct(ctx, customer, ref, 1); err != nil {
			logger.Fatal().Err(err).Msg("add to cart")
		}
		order, err := carts.AttachPaymentProof(ctx, customer, "proof://"+customer)
		if err != nil {
			logger.Fatal().Err(err).Msg("attach payment proof")
		}
		orderIDs = append(orderIDs, order.ID)
	}

	// Counters
	var (
		approved     atomic.Int32
		noop         atomic.Int32
		insufficient atomic.Int32
		conflicts    atomic.Int32
		failed       atomic.Int32
	)

	// Fire every approval at once, several per order
	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range orderIDs {
		for c := 0; c < duplicateClick; c++ {
			wg.Add(1)
			go func(orderID string) {
				defer wg.Done()

				result, err := orders.Approve(ctx, orderID, staff)
				var stockErr *domain.InsufficientStockError
				var conflict *domain.ConflictError
				switch {
				case err == nil && result.AlreadyProcessed:
					noop.Add(1)
				case err == nil:
					approved.Add(1)
				case errors.As(err, &stockErr):
					insufficient.Add(1)
				case errors.As(err, &conflict):
					conflicts.Add(1)
				default:
					failed.Add(1)
					logger.Error().Err(err).Str("order_id", orderID).Msg("approve failed")
				}
			}(id)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	levels, err := store.GetStock(ctx, []domain.StockKey{{Kind: domain.StockKindMisc, ID: itemID}})
	if err != nil {
		logger.Fatal().Err(err).Msg("read final stock")
	}
	finalStock := levels[domain.StockKey{Kind: domain.StockKindMisc, ID: itemID}].Quantity

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:     %d\n", initialStock)
	fmt.Printf("Orders:            %d (x%d approvals)\n", totalOrders, duplicateClick)
	fmt.Printf("Approved:          %d\n", approved.Load())
	fmt.Printf("Already processed: %d\n", noop.Load())
	fmt.Printf("Insufficient:      %d\n", insufficient.Load())
	fmt.Printf("Conflicts:         %d\n", conflicts.Load())
	fmt.Printf("Failed:            %d\n", failed.Load())
	fmt.Printf("Final Stock:       %d\n", finalStock)
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if approved.Load() != initialStock {
		fmt.Printf("FAIL: expected %d approvals, got %d\n", initialStock, approved.Load())
		ok = false
	}
	if finalStock != initialStock-int(approved.Load()) || finalStock < 0 {
		fmt.Printf("FAIL: stock %d does not match %d approvals\n", finalStock, approved.Load())
		ok = false
	}
	if failed.Load() > 0 {
		fmt.Printf("FAIL: %d unexpected errors\n", failed.Load())
		ok = false
	}
	if ok {
		fmt.Printf("PASS: exactly %d orders consumed stock, none twice\n", initialStock)
		return
	}
	os.Exit(1)
}

// openStore uses MySQL when MYSQL_DSN is set and the in-memory store
// otherwise. It returns the id of a misc item stocked with initialStock.
func openStore(ctx context.Context, logger zerolog.Logger) (port.DatabaseRepository, int64, func(), error) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		mem := storage.NewMemoryAdapter()
		mem.AddMiscItem(domain.MiscItem{ID: 1, Name: "Stress Cola", Price: decimal.NewFromInt(35), Quantity: initialStock, Version: 1})
		return mem, 1, func() {}, nil
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, 0, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, 0, nil, err
	}
	if err := storage.Migrate(ctx, db, logger); err != nil {
		return nil, 0, nil, err
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO misc_items (name, price, quantity, low_stock_threshold, version)
		VALUES ('Stress Cola', 35, ?, 0, 1)`, initialStock)
	if err != nil {
		return nil, 0, nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, 0, nil, err
	}
	return storage.NewMySQLAdapter(db), id, func() { db.Close() }, nil
}

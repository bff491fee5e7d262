package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
)

type lifecycleTestContext struct {
	store    *storage.MemoryAdapter
	carts    *CartService
	orders   *OrderService
	cheese   domain.Ingredient
	drinks   map[string]domain.MiscItem
	pizzas   map[string]int64
	orderID  string
	approval *ApprovalResult
	err      error
}

func (c *lifecycleTestContext) reset() {
	logger := zerolog.Nop()
	c.store = storage.NewMemoryAdapter()
	c.carts = NewCartService(c.store, c.store, nil, logger, 3)
	c.orders = NewOrderService(c.store, NewReconciler(c.store, logger), nil, logger)
	c.drinks = make(map[string]domain.MiscItem)
	c.pizzas = make(map[string]int64)
	c.orderID = ""
	c.approval = nil
	c.err = nil
}

func (c *lifecycleTestContext) theShopStocks(cheese int, drink string, drinks int) error {
	c.cheese = domain.Ingredient{ID: 1, Name: "cheese", Unit: "unit", Quantity: cheese, Trackable: true, Version: 1}
	c.store.AddIngredient(c.cheese)
	item := domain.MiscItem{ID: 1, Name: drink, Price: decimal.NewFromInt(35), Quantity: drinks, Version: 1}
	c.store.AddMiscItem(item)
	c.drinks[drink] = item
	return nil
}

func (c *lifecycleTestContext) thePizzaUsesCheese(name string, qty int) error {
	id := int64(len(c.pizzas) + 1)
	c.store.AddPizza(domain.Pizza{
		ID:    id,
		Name:  name,
		Price: decimal.NewFromInt(299),
		BOM:   []domain.BOMEntry{{IngredientID: c.cheese.ID, Quantity: qty}},
	})
	c.pizzas[name] = id
	return nil
}

func (c *lifecycleTestContext) customerHasInTheCart(customer string, pizzas int, pizza string, drinks int, drink string) error {
	ctx := context.Background()
	if pizzas > 0 {
		id, ok := c.pizzas[pizza]
		if !ok {
			return fmt.Errorf("unknown pizza %q", pizza)
		}
		if _, err := c.carts.AddProduct(ctx, customer, domain.ProductRef{Type: domain.ProductTypePizza, ID: id}, pizzas); err != nil {
			return err
		}
	}
	if drinks > 0 {
		item, ok := c.drinks[drink]
		if !ok {
			return fmt.Errorf("unknown item %q", drink)
		}
		if _, err := c.carts.AddProduct(ctx, customer, item.Ref(), drinks); err != nil {
			return err
		}
	}
	return nil
}

func (c *lifecycleTestContext) customerUploadsPaymentProof(customer string) error {
	order, err := c.carts.AttachPaymentProof(context.Background(), customer, "proof://"+customer)
	if err != nil {
		return err
	}
	c.orderID = order.ID
	return nil
}

func (c *lifecycleTestContext) staffApprovesTheOrder() error {
	c.approval, c.err = c.orders.Approve(context.Background(), c.orderID, domain.Actor{ID: "staff", Role: domain.RoleEmployee})
	return nil
}

func (c *lifecycleTestContext) staffRejectsTheOrder(reason string) error {
	_, err := c.orders.Reject(context.Background(), c.orderID, domain.Actor{ID: "staff", Role: domain.RoleEmployee}, reason)
	return err
}

func (c *lifecycleTestContext) staffMarksTheOrderDelivering() error {
	_, err := c.orders.MarkDelivering(context.Background(), c.orderID, domain.Actor{ID: "staff", Role: domain.RoleEmployee})
	return err
}

func (c *lifecycleTestContext) staffMarksTheOrderComplete() error {
	_, err := c.orders.MarkSuccess(context.Background(), c.orderID, domain.Actor{ID: "staff", Role: domain.RoleEmployee})
	return err
}

func (c *lifecycleTestContext) customerCancelsTheOrder(customer string) error {
	_, c.err = c.orders.Cancel(context.Background(), domain.Actor{ID: customer, Role: domain.RoleCustomer}, c.orderID)
	return nil
}

func (c *lifecycleTestContext) theApprovalSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected approval to succeed, got %v", c.err)
	}
	if c.approval.AlreadyProcessed {
		return fmt.Errorf("expected a fresh approval, got a no-op")
	}
	return nil
}

func (c *lifecycleTestContext) theApprovalReportsAlreadyProcessed() error {
	if c.err != nil {
		return fmt.Errorf("expected a no-op, got %v", c.err)
	}
	if !c.approval.AlreadyProcessed {
		return fmt.Errorf("expected the approval to report already processed")
	}
	return nil
}

func (c *lifecycleTestContext) theOperationFailsWithReason(reason string) error {
	if c.err == nil {
		return fmt.Errorf("expected failure %q, got success", reason)
	}
	if got := domain.CodeOf(c.err); string(got) != reason {
		return fmt.Errorf("expected reason %q, got %q (%v)", reason, got, c.err)
	}
	return nil
}

func (c *lifecycleTestContext) quantity(key domain.StockKey) (int, error) {
	levels, err := c.store.GetStock(context.Background(), []domain.StockKey{key})
	if err != nil {
		return 0, err
	}
	return levels[key].Quantity, nil
}

func (c *lifecycleTestContext) theCheeseStockIs(want int) error {
	got, err := c.quantity(c.cheese.Key())
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected cheese stock %d, got %d", want, got)
	}
	return nil
}

func (c *lifecycleTestContext) theItemStockIs(name string, want int) error {
	got, err := c.quantity(c.drinks[name].Key())
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected %s stock %d, got %d", name, want, got)
	}
	return nil
}

func (c *lifecycleTestContext) theOrderStatusIs(want string) error {
	order, err := c.store.GetOrder(context.Background(), c.orderID)
	if err != nil {
		return err
	}
	if string(order.Status) != want {
		return fmt.Errorf("expected status %s, got %s", want, order.Status)
	}
	return nil
}

func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the shop stocks (\d+) units of cheese and (\d+) units of "([^"]*)"$`, func(cheese, drinks int, drink string) error {
		return tc.theShopStocks(cheese, drink, drinks)
	})
	ctx.Step(`^the pizza "([^"]*)" uses (\d+) units of cheese$`, tc.thePizzaUsesCheese)
	ctx.Step(`^customer "([^"]*)" has (\d+) "([^"]*)" and (\d+) "([^"]*)" in the cart$`, tc.customerHasInTheCart)

	// When steps
	ctx.Step(`^customer "([^"]*)" uploads payment proof$`, tc.customerUploadsPaymentProof)
	ctx.Step(`^staff approves the order$`, tc.staffApprovesTheOrder)
	ctx.Step(`^staff rejects the order because "([^"]*)"$`, tc.staffRejectsTheOrder)
	ctx.Step(`^staff marks the order delivering$`, tc.staffMarksTheOrderDelivering)
	ctx.Step(`^staff marks the order complete$`, tc.staffMarksTheOrderComplete)
	ctx.Step(`^customer "([^"]*)" cancels the order$`, tc.customerCancelsTheOrder)

	// Then steps
	ctx.Step(`^the approval succeeds$`, tc.theApprovalSucceeds)
	ctx.Step(`^the approval reports the order as already processed$`, tc.theApprovalReportsAlreadyProcessed)
	ctx.Step(`^the (?:approval|cancellation) fails with reason "([^"]*)"$`, tc.theOperationFailsWithReason)
	ctx.Step(`^the cheese stock is (\d+)$`, tc.theCheeseStockIs)
	ctx.Step(`^the "([^"]*)" stock is (\d+)$`, tc.theItemStockIs)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/core/domain"
)

func TestStandardPricing(t *testing.T) {
	tests := []struct {
		name string
		req  CustomPizzaRequest
		want int64
	}{
		{"original medium two toppings", CustomPizzaRequest{Dough: "original", Size: "M", Toppings: []string{"cheese", "ham"}}, 339},
		{"cheese crust large four toppings", CustomPizzaRequest{Dough: "cheese_crust", Size: "L", Toppings: []string{"a", "b", "c", "d"}}, 473},
		{"sausage crust xl no toppings", CustomPizzaRequest{Dough: "sausage_crust", Size: "XL"}, 464},
		{"crispy small three toppings", CustomPizzaRequest{Dough: "crispy", Size: "S", Toppings: []string{"a", "b", "c"}}, 299},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StandardPricing{}.Price(tt.req)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}

	_, err := StandardPricing{}.Price(CustomPizzaRequest{Dough: "original", Size: "XXL"})
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func newSeededCatalog(t *testing.T) (*CatalogService, *storage.MemoryAdapter) {
	t.Helper()
	store := storage.NewMemoryAdapter()
	storage.SeedDemo(store)
	return NewCatalogService(store, nil, zerolog.Nop()), store
}

func TestCatalog_CreatePizzaBuildsBOM(t *testing.T) {
	catalog, store := newSeededCatalog(t)
	ctx := context.Background()

	pizza, err := catalog.CreatePizza(ctx, "customer-c", CustomPizzaRequest{
		Name:     " My Pizza ",
		Dough:    "cheese_crust",
		Size:     "L",
		Sauce:    "tomato_sauce",
		Toppings: []string{"cheese", "ham", "cheese"},
	})
	require.NoError(t, err)

	assert.Equal(t, "My Pizza", pizza.Name)
	assert.Equal(t, "customer-c", pizza.CreatedBy)
	assert.True(t, pizza.Price.Equal(decimal.NewFromInt(424)), "got %s", pizza.Price)

	byName := make(map[string]domain.BOMEntry)
	for _, e := range pizza.BOM {
		ing := ingredientByID(t, store, e.IngredientID)
		byName[ing] = e
	}
	require.Len(t, byName, 4)
	assert.Equal(t, crustQuantity, byName["cheese_crust_L"].Quantity)
	assert.False(t, byName["cheese_crust_L"].Trackable)
	assert.Equal(t, sauceQuantity, byName["tomato_sauce"].Quantity)
	assert.Equal(t, 2*toppingQuantity, byName["cheese"].Quantity)
	assert.True(t, byName["cheese"].Trackable)
	assert.Equal(t, toppingQuantity, byName["ham"].Quantity)

	stored, err := store.GetPizza(ctx, pizza.ID)
	require.NoError(t, err)
	assert.Equal(t, pizza.Name, stored.Name)
}

func TestCatalog_BlankToppingsAreNotPriced(t *testing.T) {
	catalog, _ := newSeededCatalog(t)

	pizza, err := catalog.CreatePizza(context.Background(), "customer-c", CustomPizzaRequest{
		Name:     "Sparse",
		Dough:    "cheese_crust",
		Size:     "L",
		Sauce:    "tomato_sauce",
		Toppings: []string{" ", "cheese", "", "ham", "cheese", "  "},
	})
	require.NoError(t, err)

	assert.True(t, pizza.Price.Equal(decimal.NewFromInt(424)), "got %s", pizza.Price)
	assert.Len(t, pizza.BOM, 4)
}

func ingredientByID(t *testing.T, store *storage.MemoryAdapter, id int64) string {
	t.Helper()
	levels, err := store.GetStock(context.Background(), []domain.StockKey{{Kind: domain.StockKindIngredient, ID: id}})
	require.NoError(t, err)
	return levels[domain.StockKey{Kind: domain.StockKindIngredient, ID: id}].Name
}

func TestCatalog_CreatePizzaRejectsUnknownSelections(t *testing.T) {
	catalog, _ := newSeededCatalog(t)
	ctx := context.Background()
	var validation *domain.ValidationError

	_, err := catalog.CreatePizza(ctx, "c", CustomPizzaRequest{Name: "x", Dough: "original", Size: "M", Sauce: "mayo"})
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "mayo")

	_, err = catalog.CreatePizza(ctx, "c", CustomPizzaRequest{Name: "x", Dough: "original", Size: "M"})
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "sauce")
}

func TestCatalog_MenuAndProduct(t *testing.T) {
	catalog, _ := newSeededCatalog(t)
	ctx := context.Background()

	menu, err := catalog.Menu(ctx)
	require.NoError(t, err)
	assert.Len(t, menu.Pizzas, 2)
	assert.Len(t, menu.MiscItems, 2)

	product, err := catalog.Product(ctx, domain.ProductRef{Type: domain.ProductTypeMisc, ID: 2})
	require.NoError(t, err)
	assert.Equal(t, "Garlic Bread", product.Name)

	_, err = catalog.Product(ctx, domain.ProductRef{Type: domain.ProductTypePizza, ID: 99})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_UpdatePrice(t *testing.T) {
	catalog, _ := newSeededCatalog(t)
	ctx := context.Background()
	ref := domain.ProductRef{Type: domain.ProductTypePizza, ID: 1}

	require.NoError(t, catalog.UpdatePrice(ctx, staff, ref, decimal.NewFromInt(319)))
	product, err := catalog.Product(ctx, ref)
	require.NoError(t, err)
	assert.True(t, product.Price.Equal(decimal.NewFromInt(319)))

	err = catalog.UpdatePrice(ctx, domain.Actor{ID: "c", Role: domain.RoleCustomer}, ref, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = catalog.UpdatePrice(ctx, staff, ref, decimal.NewFromInt(-1))
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

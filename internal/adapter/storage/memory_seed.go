package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// SeedDemo loads a small menu into an empty in-memory store: crusts for every
// dough and size (base stock, not tracked), sauces, toppings, two house pizzas
// and a few drinks.
func SeedDemo(m *MemoryAdapter) {
	now := time.Now()
	var id int64 = 1
	byName := make(map[string]int64)

	add := func(name, unit string, qty int, trackable bool, threshold int) {
		m.AddIngredient(domain.Ingredient{
			ID:                id,
			Name:              name,
			Unit:              unit,
			Quantity:          qty,
			Trackable:         trackable,
			LowStockThreshold: threshold,
			Version:           1,
			UpdatedAt:         now,
		})
		byName[name] = id
		id++
	}

	for _, dough := range []string{"original", "crispy", "cheese_crust", "sausage_crust"} {
		for _, size := range []string{"S", "M", "L", "XL"} {
			add(fmt.Sprintf("%s_%s", dough, size), "piece", 1000, false, 0)
		}
	}
	add("tomato_sauce", "g", 10000, true, 1000)
	add("bbq_sauce", "g", 5000, true, 1000)
	for _, topping := range []string{"cheese", "pepperoni", "ham", "pineapple", "mushroom", "onion", "bacon"} {
		add(topping, "g", 5000, true, 500)
	}

	bom := func(entries map[string]int) []domain.BOMEntry {
		out := make([]domain.BOMEntry, 0, len(entries))
		for name, qty := range entries {
			out = append(out, domain.BOMEntry{IngredientID: byName[name], Quantity: qty})
		}
		return out
	}

	m.AddPizza(domain.Pizza{
		ID:        1,
		Name:      "Margherita",
		Price:     decimal.NewFromInt(299),
		BOM:       bom(map[string]int{"original_M": 1, "tomato_sauce": 250, "cheese": 100}),
		CreatedAt: now,
	})
	m.AddPizza(domain.Pizza{
		ID:        2,
		Name:      "Hawaiian",
		Price:     decimal.NewFromInt(349),
		BOM:       bom(map[string]int{"original_M": 1, "tomato_sauce": 250, "cheese": 50, "ham": 50, "pineapple": 50}),
		CreatedAt: now,
	})

	m.AddMiscItem(domain.MiscItem{ID: 1, Name: "Cola", Price: decimal.NewFromInt(35), Quantity: 100, LowStockThreshold: 10, Version: 1})
	m.AddMiscItem(domain.MiscItem{ID: 2, Name: "Garlic Bread", Price: decimal.NewFromInt(79), Quantity: 40, LowStockThreshold: 5, Version: 1})
}

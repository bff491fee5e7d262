package service

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// PriceCalculator prices a custom pizza from its selections.
type PriceCalculator interface {
	Price(req CustomPizzaRequest) (decimal.Decimal, error)
}

var sizeFactors = map[string]decimal.Decimal{
	"S":  decimal.RequireFromString("1"),
	"M":  decimal.RequireFromString("1.4"),
	"L":  decimal.RequireFromString("1.8"),
	"XL": decimal.RequireFromString("2.2"),
}

var premiumDoughs = map[string]bool{
	"cheese_crust":  true,
	"sausage_crust": true,
}

var (
	doughBase     = decimal.NewFromInt(150)
	sizeBase      = decimal.NewFromInt(100)
	toppingBase   = decimal.NewFromInt(49)
	premiumFactor = decimal.RequireFromString("1.3")
)

// StandardPricing is the storefront's default formula:
// floor(150*dough + 100*size + max(toppings-2, 1)*49).
type StandardPricing struct{}

func (StandardPricing) Price(req CustomPizzaRequest) (decimal.Decimal, error) {
	size, ok := sizeFactors[req.Size]
	if !ok {
		return decimal.Zero, domain.NewValidationErrorf("unknown size %q", req.Size)
	}

	dough := decimal.NewFromInt(1)
	if premiumDoughs[req.Dough] {
		dough = premiumFactor
	}

	toppings := len(req.Toppings) - 2
	if toppings < 1 {
		toppings = 1
	}

	price := doughBase.Mul(dough).
		Add(sizeBase.Mul(size)).
		Add(toppingBase.Mul(decimal.NewFromInt(int64(toppings))))
	return price.Floor(), nil
}

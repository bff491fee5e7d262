package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypePizza ProductType = "pizza"
	ProductTypeMisc  ProductType = "misc"
)

func (t ProductType) Valid() bool {
	return t == ProductTypePizza || t == ProductTypeMisc
}

type ProductRef struct {
	Type ProductType `json:"type"`
	ID   int64       `json:"id"`
}

func (r ProductRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

func (r ProductRef) Validate() error {
	if !r.Type.Valid() {
		return NewValidationError("product type must be pizza or misc")
	}
	if r.ID <= 0 {
		return NewValidationError("product id is required")
	}
	return nil
}

// BOMEntry is one line of a pizza's bill of materials.
type BOMEntry struct {
	IngredientID int64 `json:"ingredient_id"`
	Quantity     int   `json:"quantity"`
	Trackable    bool  `json:"trackable"`
}

type Pizza struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	BOM       []BOMEntry      `json:"bom,omitempty"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (p Pizza) Ref() ProductRef {
	return ProductRef{Type: ProductTypePizza, ID: p.ID}
}

type MiscItem struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Version           int             `json:"-"`
}

func (m MiscItem) Ref() ProductRef {
	return ProductRef{Type: ProductTypeMisc, ID: m.ID}
}

func (m MiscItem) Key() StockKey {
	return StockKey{Kind: StockKindMisc, ID: m.ID}
}

// Product is the catalog view shared by pizzas and misc items.
type Product struct {
	Ref   ProductRef      `json:"ref"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// NewUnitPrice converts an externally supplied price, rejecting NaN, infinities
// and negative values.
func NewUnitPrice(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, NewValidationError("unit price must be a finite number")
	}
	if v < 0 {
		return decimal.Zero, NewValidationError("unit price cannot be negative")
	}
	return decimal.NewFromFloat(v), nil
}

package domain

import (
	"fmt"
	"time"
)

type StockKind string

const (
	StockKindIngredient StockKind = "ingredient"
	StockKindMisc       StockKind = "misc"
)

func (k StockKind) Valid() bool {
	return k == StockKindIngredient || k == StockKindMisc
}

// StockKey identifies one stock row across the ingredient and misc tables.
type StockKey struct {
	Kind StockKind `json:"kind"`
	ID   int64     `json:"id"`
}

func (k StockKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Less orders keys so that multi-row locks are always taken in the same order.
func (k StockKey) Less(other StockKey) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.ID < other.ID
}

type Ingredient struct {
	ID                int64
	Name              string
	Unit              string
	Quantity          int
	Trackable         bool
	LowStockThreshold int
	Version           int // optimistic locking
	UpdatedAt         time.Time
}

func (i Ingredient) Key() StockKey {
	return StockKey{Kind: StockKindIngredient, ID: i.ID}
}

type StockLevel struct {
	Key               StockKey  `json:"key"`
	Name              string    `json:"name"`
	Unit              string    `json:"unit,omitempty"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Version           int       `json:"-"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (s StockLevel) IsLow() bool {
	return s.Quantity <= s.LowStockThreshold
}

// StockDelta is one signed change applied to a stock row.
type StockDelta struct {
	Key   StockKey `json:"key"`
	Delta int      `json:"delta"`
}

// ApplyDelta returns the new quantity or a NegativeStockError; the caller's
// level is never modified.
func (s StockLevel) ApplyDelta(delta int) (int, error) {
	next := s.Quantity + delta
	if next < 0 {
		return s.Quantity, &NegativeStockError{Key: s.Key, Current: s.Quantity, Delta: delta}
	}
	return next, nil
}

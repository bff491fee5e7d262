package domain

import (
	"math"
	"sort"
)

// maxRequirement matches the INT stock columns.
const maxRequirement = math.MaxInt32

// Requirements maps every stock row an order consumes to the amount it needs.
type Requirements map[StockKey]int

// ComputeRequirements expands pizzas through their bills of materials and adds
// misc items one to one. Ingredients that are not trackable are base stock and
// are left out.
func ComputeRequirements(items []OrderItem, boms map[int64][]BOMEntry) (Requirements, error) {
	req := make(Requirements)
	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > MaxItemQuantity {
			return nil, NewValidationErrorf("item %s has invalid quantity %d", item.Product, item.Quantity)
		}
		switch item.Product.Type {
		case ProductTypePizza:
			entries, ok := boms[item.Product.ID]
			if !ok {
				return nil, NewValidationErrorf("pizza %d has no bill of materials", item.Product.ID)
			}
			for _, e := range entries {
				if !e.Trackable {
					continue
				}
				if e.Quantity < 0 || e.Quantity > maxRequirement/item.Quantity {
					return nil, NewValidationErrorf("pizza %d needs an invalid amount of ingredient %d", item.Product.ID, e.IngredientID)
				}
				if err := req.add(StockKey{Kind: StockKindIngredient, ID: e.IngredientID}, item.Quantity*e.Quantity); err != nil {
					return nil, err
				}
			}
		case ProductTypeMisc:
			if err := req.add(StockKey{Kind: StockKindMisc, ID: item.Product.ID}, item.Quantity); err != nil {
				return nil, err
			}
		default:
			return nil, NewValidationErrorf("unknown product type %q", item.Product.Type)
		}
	}
	return req, nil
}

func (r Requirements) add(key StockKey, n int) error {
	if n > maxRequirement-r[key] {
		return NewValidationErrorf("requirement for %s is too large", key)
	}
	r[key] += n
	return nil
}

func (r Requirements) Keys() []StockKey {
	keys := make([]StockKey, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// PizzaIDs lists the distinct pizzas referenced by items.
func PizzaIDs(items []OrderItem) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, item := range items {
		if item.Product.Type != ProductTypePizza {
			continue
		}
		if _, ok := seen[item.Product.ID]; ok {
			continue
		}
		seen[item.Product.ID] = struct{}{}
		ids = append(ids, item.Product.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Shortages compares requirements against current stock. A row missing from
// levels counts as zero stock.
func (r Requirements) Shortages(levels map[StockKey]StockLevel) []Shortage {
	var out []Shortage
	for _, key := range r.Keys() {
		need := r[key]
		level := levels[key]
		if need > level.Quantity {
			out = append(out, Shortage{
				Key:       key,
				Name:      level.Name,
				Required:  need,
				Available: level.Quantity,
			})
		}
	}
	return out
}

// Deltas returns the decrements for the requirements in lock order.
func (r Requirements) Deltas() []StockDelta {
	keys := r.Keys()
	deltas := make([]StockDelta, 0, len(keys))
	for _, key := range keys {
		if r[key] == 0 {
			continue
		}
		deltas = append(deltas, StockDelta{Key: key, Delta: -r[key]})
	}
	return deltas
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// Bill-of-materials quantities for a custom pizza.
const (
	crustQuantity   = 1
	sauceQuantity   = 250
	toppingQuantity = 50
)

type CustomPizzaRequest struct {
	Name     string   `json:"pizza_name"`
	Dough    string   `json:"dough"`
	Size     string   `json:"size"`
	Sauce    string   `json:"sauce"`
	Toppings []string `json:"topping"`
}

func (r CustomPizzaRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "pizza_name")
	}
	if strings.TrimSpace(r.Dough) == "" {
		missing = append(missing, "dough")
	}
	if strings.TrimSpace(r.Size) == "" {
		missing = append(missing, "size")
	}
	if strings.TrimSpace(r.Sauce) == "" {
		missing = append(missing, "sauce")
	}
	if len(missing) > 0 {
		return domain.NewValidationErrorf("pizza is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// normalized trims every selection and drops blank toppings.
func (r CustomPizzaRequest) normalized() CustomPizzaRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Dough = strings.TrimSpace(r.Dough)
	r.Size = strings.TrimSpace(r.Size)
	r.Sauce = strings.TrimSpace(r.Sauce)
	toppings := make([]string, 0, len(r.Toppings))
	for _, t := range r.Toppings {
		if t = strings.TrimSpace(t); t != "" {
			toppings = append(toppings, t)
		}
	}
	r.Toppings = toppings
	return r
}

type Menu struct {
	Pizzas    []domain.Pizza    `json:"pizzas"`
	MiscItems []domain.MiscItem `json:"misc_items"`
}

type CatalogService struct {
	repo    port.CatalogRepository
	pricing PriceCalculator
	logger  zerolog.Logger
	now     func() time.Time
}

func NewCatalogService(repo port.CatalogRepository, pricing PriceCalculator, logger zerolog.Logger) *CatalogService {
	if pricing == nil {
		pricing = StandardPricing{}
	}
	return &CatalogService{
		repo:    repo,
		pricing: pricing,
		logger:  logger.With().Str("component", "catalog").Logger(),
		now:     time.Now,
	}
}

func (s *CatalogService) Menu(ctx context.Context) (*Menu, error) {
	pizzas, err := s.repo.ListPizzas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pizzas: %w", err)
	}
	misc, err := s.repo.ListMiscItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list misc items: %w", err)
	}
	return &Menu{Pizzas: pizzas, MiscItems: misc}, nil
}

// Product resolves the display name and current price of ref.
func (s *CatalogService) Product(ctx context.Context, ref domain.ProductRef) (domain.Product, error) {
	if err := ref.Validate(); err != nil {
		return domain.Product{}, err
	}
	switch ref.Type {
	case domain.ProductTypePizza:
		p, err := s.repo.GetPizza(ctx, ref.ID)
		if err != nil {
			return domain.Product{}, fmt.Errorf("pizza %d: %w", ref.ID, err)
		}
		return domain.Product{Ref: ref, Name: p.Name, Price: p.Price}, nil
	default:
		m, err := s.repo.GetMiscItem(ctx, ref.ID)
		if err != nil {
			return domain.Product{}, fmt.Errorf("misc item %d: %w", ref.ID, err)
		}
		return domain.Product{Ref: ref, Name: m.Name, Price: m.Price}, nil
	}
}

// CreatePizza prices a custom pizza and builds its bill of materials from the
// selected crust, sauce and toppings. Every selection must name a known
// ingredient.
func (s *CatalogService) CreatePizza(ctx context.Context, creatorID string, req CustomPizzaRequest) (*domain.Pizza, error) {
	req = req.normalized()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	price, err := s.pricing.Price(req)
	if err != nil {
		return nil, err
	}

	selections := []struct {
		name string
		qty  int
	}{
		{req.Dough + "_" + req.Size, crustQuantity},
		{req.Sauce, sauceQuantity},
	}
	for _, t := range req.Toppings {
		selections = append(selections, struct {
			name string
			qty  int
		}{t, toppingQuantity})
	}

	var bom []domain.BOMEntry
	index := make(map[int64]int)
	for _, sel := range selections {
		ing, err := s.repo.FindIngredientByName(ctx, sel.name)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationErrorf("unknown ingredient %q", sel.name)
		}
		if err != nil {
			return nil, fmt.Errorf("find ingredient %q: %w", sel.name, err)
		}
		if i, ok := index[ing.ID]; ok {
			bom[i].Quantity += sel.qty
			continue
		}
		index[ing.ID] = len(bom)
		bom = append(bom, domain.BOMEntry{IngredientID: ing.ID, Quantity: sel.qty, Trackable: ing.Trackable})
	}

	pizza := &domain.Pizza{
		Name:      strings.TrimSpace(req.Name),
		Price:     price,
		BOM:       bom,
		CreatedBy: creatorID,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreatePizza(ctx, pizza); err != nil {
		return nil, fmt.Errorf("create pizza: %w", err)
	}

	s.logger.Info().Int64("pizza_id", pizza.ID).Str("name", pizza.Name).Str("price", price.String()).Msg("custom pizza created")
	return pizza, nil
}

// UpdatePrice changes the catalog price. Lines already in carts or orders
// keep the price captured when they were added.
func (s *CatalogService) UpdatePrice(ctx context.Context, staff domain.Actor, ref domain.ProductRef, price decimal.Decimal) error {
	if err := requireStaff(staff); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if price.IsNegative() {
		return domain.NewValidationError("price cannot be negative")
	}
	if err := s.repo.UpdatePrice(ctx, ref, price); err != nil {
		return fmt.Errorf("update price of %s: %w", ref, err)
	}
	s.logger.Info().Str("product", ref.String()).Str("price", price.String()).Str("actor", staff.ID).Msg("price updated")
	return nil
}

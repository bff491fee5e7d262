package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
	"github.com/rl1809/pizzeria/internal/port"
)

type HTTPHandler struct {
	cart      *service.CartService
	orders    *service.OrderService
	inventory *service.InventoryService
	catalog   *service.CatalogService
	cache     port.CacheRepository // optional
	health    func(ctx context.Context) error
	logger    zerolog.Logger
}

type Services struct {
	Cart      *service.CartService
	Orders    *service.OrderService
	Inventory *service.InventoryService
	Catalog   *service.CatalogService
}

type ItemRequest struct {
	Type     domain.ProductType `json:"type"`
	ID       int64              `json:"id"`
	Quantity int                `json:"quantity"`
}

func (r ItemRequest) Ref() domain.ProductRef {
	return domain.ProductRef{Type: r.Type, ID: r.ID}
}

type AddressRequest struct {
	Address domain.Address `json:"address"`
}

type PaymentProofRequest struct {
	ProofRef string `json:"proof_ref"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AdjustStockRequest struct {
	Kind  domain.StockKind `json:"kind"`
	ID    int64            `json:"id"`
	Delta int              `json:"delta"`
}

type StockAmountRequest struct {
	Kind   domain.StockKind `json:"kind"`
	ID     int64            `json:"id"`
	Amount int              `json:"amount"`
}

type PriceRequest struct {
	Type  domain.ProductType `json:"type"`
	ID    int64              `json:"id"`
	Price float64            `json:"price"`
}

type ApprovalResponse struct {
	Order    *domain.Order       `json:"order"`
	Consumed []domain.StockDelta `json:"consumed,omitempty"`
}

func NewHTTPHandler(svc Services, cache port.CacheRepository, health func(ctx context.Context) error, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		cart:      svc.Cart,
		orders:    svc.Orders,
		inventory: svc.Inventory,
		catalog:   svc.Catalog,
		cache:     cache,
		health:    health,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

type RouterConfig struct {
	JWTSecret    []byte
	RateLimitRPS float64
}

// NewRouter builds the echo instance with every route registered.
func (h *HTTPHandler) NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(requestLogger(h.logger))
	e.Use(middleware.Recover())
	if cfg.RateLimitRPS > 0 {
		e.Use(rateLimiter(cfg.RateLimitRPS))
	}

	e.GET("/health", h.HealthCheck)

	api := e.Group("/api", jwtMiddleware(cfg.JWTSecret))
	api.GET("/menu", h.Menu)
	api.POST("/pizzas", h.CreatePizza)

	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", h.AddItem)
	api.PATCH("/cart/items", h.UpdateItem)
	api.DELETE("/cart/items", h.RemoveItem)
	api.POST("/cart/address", h.AttachAddress)
	api.POST("/cart/payment-proof", h.AttachPaymentProof, idempotent(h.cache, h.logger))

	api.GET("/orders", h.CustomerOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/cancel", h.Cancel)

	staff := api.Group("/staff", requireStaff)
	staff.GET("/orders", h.OrdersByStatus)
	staff.POST("/orders/:id/approve", h.Approve)
	staff.POST("/orders/:id/reject", h.Reject)
	staff.POST("/orders/:id/deliver", h.MarkDelivering)
	staff.POST("/orders/:id/complete", h.MarkSuccess)
	staff.GET("/stock", h.ListStock)
	staff.GET("/stock/low", h.LowStock)
	staff.POST("/stock/adjust", h.AdjustStock)
	staff.POST("/stock/increase", h.IncreaseStock)
	staff.POST("/stock/decrease", h.DecreaseStock)
	staff.PATCH("/products/price", h.UpdatePrice)

	return e
}

func (h *HTTPHandler) HealthCheck(c echo.Context) error {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs internal errors in full before reducing them to an outcome.
func (h *HTTPHandler) fail(c echo.Context, err error) error {
	status, out := Failure(err)
	if out.Code == domain.CodeInternal || out.Code == domain.CodeNegativeStock {
		h.logger.Error().Err(err).Str("path", c.Path()).Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Msg("request failed")
	}
	return c.JSON(status, out)
}

func (h *HTTPHandler) ok(c echo.Context, message string, data any) error {
	return c.JSON(Success(message, data))
}

func (h *HTTPHandler) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	return nil
}

// ---- catalog ----

func (h *HTTPHandler) Menu(c echo.Context) error {
	menu, err := h.catalog.Menu(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, menu)
}

func (h *HTTPHandler) CreatePizza(c echo.Context) error {
	var req service.CustomPizzaRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	pizza, err := h.catalog.CreatePizza(c.Request().Context(), actorFrom(c).ID, req)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "pizza created", pizza)
}

func (h *HTTPHandler) UpdatePrice(c echo.Context) error {
	var req PriceRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	price, err := domain.NewUnitPrice(req.Price)
	if err != nil {
		return h.fail(c, err)
	}
	ref := domain.ProductRef{Type: req.Type, ID: req.ID}
	if err := h.catalog.UpdatePrice(c.Request().Context(), actorFrom(c), ref, price); err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "price updated", nil)
}

// ---- cart ----

func (h *HTTPHandler) GetCart(c echo.Context) error {
	cart, err := h.cart.CartView(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, cartView(cart))
}

// The unit price is resolved from the catalog; clients never send it.
func (h *HTTPHandler) AddItem(c echo.Context) error {
	var req ItemRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	cart, err := h.cart.AddProduct(c.Request().Context(), actorFrom(c).ID, req.Ref(), req.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "item added", cartView(cart))
}

func (h *HTTPHandler) UpdateItem(c echo.Context) error {
	var req ItemRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	cart, err := h.cart.UpdateItemQuantity(c.Request().Context(), actorFrom(c).ID, req.Ref(), req.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "item updated", cartView(cart))
}

func (h *HTTPHandler) RemoveItem(c echo.Context) error {
	var req ItemRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	cart, err := h.cart.RemoveItem(c.Request().Context(), actorFrom(c).ID, req.Ref())
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "item removed", cartView(cart))
}

func (h *HTTPHandler) AttachAddress(c echo.Context) error {
	var req AddressRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	cart, err := h.cart.AttachAddressAndTotal(c.Request().Context(), actorFrom(c).ID, req.Address)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "address saved", cartView(cart))
}

func (h *HTTPHandler) AttachPaymentProof(c echo.Context) error {
	var req PaymentProofRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	order, err := h.cart.AttachPaymentProof(c.Request().Context(), actorFrom(c).ID, req.ProofRef)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "order submitted for review", order)
}

type CartView struct {
	*domain.Order
	Subtotal string `json:"subtotal"`
}

func cartView(cart *domain.Order) CartView {
	return CartView{Order: cart, Subtotal: cart.Subtotal().StringFixed(2)}
}

// ---- orders ----

func (h *HTTPHandler) CustomerOrders(c echo.Context) error {
	orders, err := h.orders.CustomerOrders(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(c echo.Context) error {
	order, err := h.orders.GetOrder(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) Cancel(c echo.Context) error {
	order, err := h.orders.Cancel(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "order cancelled", order)
}

func (h *HTTPHandler) OrdersByStatus(c echo.Context) error {
	var statuses []domain.Status
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, ok := domain.ParseStatus(strings.TrimSpace(s))
			if !ok {
				return h.fail(c, domain.NewValidationErrorf("unknown status %q", s))
			}
			statuses = append(statuses, st)
		}
	}

	actor := actorFrom(c)
	var (
		orders []domain.Order
		err    error
	)
	if len(statuses) == 1 && statuses[0] == domain.StatusAwaitingReview {
		orders, err = h.orders.PendingReview(c.Request().Context(), actor)
	} else {
		orders, err = h.orders.OrdersByStatus(c.Request().Context(), actor, statuses...)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *HTTPHandler) Approve(c echo.Context) error {
	result, err := h.orders.Approve(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	if result.AlreadyProcessed {
		return c.JSON(http.StatusOK, Outcome{
			Success: true,
			Code:    domain.CodeAlreadyProcessed,
			Message: "order was already approved",
			Data:    ApprovalResponse{Order: result.Order},
		})
	}
	return h.ok(c, "order approved", ApprovalResponse{Order: result.Order, Consumed: result.Consumed.Deltas()})
}

func (h *HTTPHandler) Reject(c echo.Context) error {
	var req RejectRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	order, err := h.orders.Reject(c.Request().Context(), c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "order rejected", order)
}

func (h *HTTPHandler) MarkDelivering(c echo.Context) error {
	order, err := h.orders.MarkDelivering(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "order out for delivery", order)
}

func (h *HTTPHandler) MarkSuccess(c echo.Context) error {
	order, err := h.orders.MarkSuccess(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "order completed", order)
}

// ---- stock ----

func (h *HTTPHandler) ListStock(c echo.Context) error {
	levels, err := h.inventory.ListStock(c.Request().Context(), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, levels)
}

func (h *HTTPHandler) LowStock(c echo.Context) error {
	levels, err := h.inventory.LowStock(c.Request().Context(), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, levels)
}

func (h *HTTPHandler) AdjustStock(c echo.Context) error {
	var req AdjustStockRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	key := domain.StockKey{Kind: req.Kind, ID: req.ID}
	level, err := h.inventory.Adjust(c.Request().Context(), actorFrom(c), key, req.Delta)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "stock adjusted", level)
}

func (h *HTTPHandler) IncreaseStock(c echo.Context) error {
	var req StockAmountRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	key := domain.StockKey{Kind: req.Kind, ID: req.ID}
	level, err := h.inventory.Increase(c.Request().Context(), actorFrom(c), key, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "stock increased", level)
}

func (h *HTTPHandler) DecreaseStock(c echo.Context) error {
	var req StockAmountRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	key := domain.StockKey{Kind: req.Kind, ID: req.ID}
	level, err := h.inventory.Decrease(c.Request().Context(), actorFrom(c), key, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return h.ok(c, "stock decreased", level)
}

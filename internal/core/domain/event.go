package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventCartCreated EventType = "order.cart_created"
	EventSubmitted   EventType = "order.submitted"
	EventApproved    EventType = "order.approved"
	EventRejected    EventType = "order.rejected"
	EventCancelled   EventType = "order.cancelled"
	EventDelivering  EventType = "order.delivering"
	EventCompleted   EventType = "order.completed"
)

type OrderEvent struct {
	Type       EventType       `json:"type"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	From       Status          `json:"from,omitempty"`
	To         Status          `json:"to"`
	Total      decimal.Decimal `json:"total"`
	Actor      string          `json:"actor,omitempty"`
	Note       string          `json:"note,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t EventType, order *Order, from Status, actor string, now time.Time) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		From:       from,
		To:         order.Status,
		Total:      order.Total,
		Actor:      actor,
		Note:       order.StatusNote,
		OccurredAt: now,
	}
}

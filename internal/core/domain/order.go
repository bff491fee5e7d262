package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity bounds a single cart line.
const MaxItemQuantity = 100

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return NewValidationError("quantity must be positive")
	}
	if quantity > MaxItemQuantity {
		return NewValidationErrorf("quantity cannot exceed %d", MaxItemQuantity)
	}
	return nil
}

type OrderItem struct {
	Product   ProductRef      `json:"product"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // captured when added, never repriced
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	ID           int64  `json:"id,omitempty"`
	ReceiverName string `json:"receiver_name"`
	Phone        string `json:"phone_no"`
	HouseNo      string `json:"house_no"`
	VillageNo    string `json:"village_no,omitempty"`
	Street       string `json:"street,omitempty"`
	SubDistrict  string `json:"sub_district,omitempty"`
	District     string `json:"district"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country,omitempty"`
}

func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.ReceiverName) == "" {
		missing = append(missing, "receiver_name")
	}
	if strings.TrimSpace(a.Phone) == "" {
		missing = append(missing, "phone_no")
	}
	if strings.TrimSpace(a.HouseNo) == "" {
		missing = append(missing, "house_no")
	}
	if strings.TrimSpace(a.District) == "" {
		missing = append(missing, "district")
	}
	if strings.TrimSpace(a.Province) == "" {
		missing = append(missing, "province")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if len(missing) > 0 {
		return NewValidationErrorf("address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Status       Status          `json:"status"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	PaymentProof string          `json:"payment_proof,omitempty"`
	Address      *Address        `json:"address,omitempty"`
	StatusNote   string          `json:"status_note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"-"` // optimistic locking
}

func NewCart(id, customerID string, now time.Time) *Order {
	return &Order{
		ID:         id,
		CustomerID: customerID,
		Status:     StatusDraft,
		Items:      make([]OrderItem, 0),
		Total:      decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (o *Order) IsCart() bool {
	return o.Status == StatusDraft
}

func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (o *Order) Item(ref ProductRef) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.Product == ref {
			return item, true
		}
	}
	return OrderItem{}, false
}

func (o *Order) requireCart(op string) error {
	if !o.IsCart() {
		return NewStateError(op, o.Status)
	}
	return nil
}

// AddItem appends a line or increments the existing line for the same product.
// An existing line keeps its original unit price.
func (o *Order) AddItem(ref ProductRef, name string, quantity int, unitPrice decimal.Decimal) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	if unitPrice.IsNegative() {
		return NewValidationError("unit price cannot be negative")
	}
	if err := o.requireCart("add item to"); err != nil {
		return err
	}

	for i := range o.Items {
		if o.Items[i].Product == ref {
			if err := validateQuantity(o.Items[i].Quantity + quantity); err != nil {
				return err
			}
			o.Items[i].Quantity += quantity
			return nil
		}
	}

	o.Items = append(o.Items, OrderItem{
		Product:   ref,
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	return nil
}

func (o *Order) UpdateItemQuantity(ref ProductRef, quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	if err := o.requireCart("update item in"); err != nil {
		return err
	}
	for i := range o.Items {
		if o.Items[i].Product == ref {
			o.Items[i].Quantity = quantity
			return nil
		}
	}
	return fmt.Errorf("cart item %s: %w", ref, ErrNotFound)
}

// RemoveItem reports whether a line was removed. Removing a product that is
// not in the cart succeeds without changes.
func (o *Order) RemoveItem(ref ProductRef) (bool, error) {
	if err := o.requireCart("remove item from"); err != nil {
		return false, err
	}
	for i := range o.Items {
		if o.Items[i].Product == ref {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// AttachAddress prices the cart from its current lines and records where it
// is delivered. The order stays a draft.
func (o *Order) AttachAddress(addr Address) error {
	if err := o.requireCart("set address on"); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return NewValidationError("cart is empty")
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	o.Address = &addr
	o.Total = o.Subtotal()
	return nil
}

// AttachPaymentProof submits the cart for staff review.
func (o *Order) AttachPaymentProof(proofRef string) error {
	if strings.TrimSpace(proofRef) == "" {
		return NewValidationError("payment proof reference is required")
	}
	if o.Status != StatusDraft || o.PaymentProof != "" {
		return NewStateError("attach payment proof to", o.Status)
	}
	if len(o.Items) == 0 {
		return NewValidationError("cart is empty")
	}
	o.Total = o.Subtotal()
	o.PaymentProof = proofRef
	o.Status = StatusAwaitingReview
	return nil
}

// TransitionTo moves the order along the lifecycle; op names the attempted
// action for error reporting.
func (o *Order) TransitionTo(to Status, op string) error {
	if !CanTransition(o.Status, to) {
		return NewStateError(op, o.Status)
	}
	o.Status = to
	return nil
}

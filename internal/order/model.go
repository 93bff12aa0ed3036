package order

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentSuspended PaymentMethod = "suspended"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentSuspended:
		return true
	}
	return false
}

// Order is immutable once inserted.
type Order struct {
	ID            uuid.UUID     `json:"id"`
	Items         []OrderItem   `json:"items"`
	TotalAmount   float64       `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CustomerID    *uuid.UUID    `json:"customer_id,omitempty"`
	RewardCardID  *uuid.UUID    `json:"reward_card_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type OrderItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	ApplyTaxes  bool      `json:"apply_taxes"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// ProductIDs returns the distinct product ids of the order, in item order.
func (o *Order) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(o.Items))
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

type NewOrderInput struct {
	Items         []OrderItem
	PaymentMethod PaymentMethod
	CustomerID    *uuid.UUID
	RewardCardID  *uuid.UUID
}

// NewOrder validates the input and builds an order with a fresh id and the
// computed total. Taxes are carried per item but not added to the total.
func NewOrder(in NewOrderInput, now time.Time) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !in.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	items := make([]OrderItem, len(in.Items))
	var total float64
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidPrice
		}
		items[i] = it
		total += it.Subtotal()
	}

	return &Order{
		ID:            uuid.New(),
		Items:         items,
		TotalAmount:   total,
		PaymentMethod: in.PaymentMethod,
		CustomerID:    in.CustomerID,
		RewardCardID:  in.RewardCardID,
		CreatedAt:     now,
	}, nil
}

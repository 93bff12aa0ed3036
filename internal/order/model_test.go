package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	pizza := uuid.New()

	t.Run("ComputesTotal", func(t *testing.T) {
		o, err := NewOrder(NewOrderInput{
			Items: []OrderItem{
				{ProductID: pizza, ProductName: "Margherita", Quantity: 3, UnitPrice: 9},
				{ProductID: uuid.New(), ProductName: "Water", Quantity: 1, UnitPrice: 1.5},
			},
			PaymentMethod: PaymentCash,
		}, now)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.Equal(t, 28.5, o.TotalAmount)
		assert.Equal(t, now, o.CreatedAt)
		assert.Len(t, o.Items, 2)
	})

	tests := []struct {
		name string
		in   NewOrderInput
		err  error
	}{
		{"NoItems", NewOrderInput{PaymentMethod: PaymentCash}, ErrEmptyOrder},
		{"ZeroQuantity", NewOrderInput{
			Items:         []OrderItem{{ProductID: pizza, Quantity: 0, UnitPrice: 1}},
			PaymentMethod: PaymentCash,
		}, ErrInvalidQuantity},
		{"NegativePrice", NewOrderInput{
			Items:         []OrderItem{{ProductID: pizza, Quantity: 1, UnitPrice: -1}},
			PaymentMethod: PaymentCard,
		}, ErrInvalidPrice},
		{"UnknownPayment", NewOrderInput{
			Items:         []OrderItem{{ProductID: pizza, Quantity: 1}},
			PaymentMethod: "barter",
		}, ErrInvalidPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.in, now)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestOrder_ProductIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	o := &Order{Items: []OrderItem{{ProductID: a}, {ProductID: b}, {ProductID: a}}}

	assert.Equal(t, []uuid.UUID{a, b}, o.ProductIDs())
}

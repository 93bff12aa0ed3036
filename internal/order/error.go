package order

import "errors"

var (
	// -- Validation & Input --
	ErrEmptyOrder           = errors.New("order has no items")
	ErrInvalidQuantity      = errors.New("item quantity must be at least 1")
	ErrInvalidPrice         = errors.New("item price must not be negative")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// -- Lookup --
	ErrOrderNotFound = errors.New("order not found")

	// -- Database --
	ErrStoreUnavailable = errors.New("order store unavailable")
)

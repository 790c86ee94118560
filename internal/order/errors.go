package order

import "errors"

var (
	// ErrOrderNotFound means the order id is unknown to the store.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderClosed means a mutation was attempted on a paid or cancelled
	// order. It is also returned on a repeated pay: payment is not
	// idempotent, callers must detect the paid state instead of retrying.
	ErrOrderClosed = errors.New("order is closed")

	// ErrValidation marks caller errors (non-positive quantity, blank ids).
	// Always wrapped with detail, matched with errors.Is.
	ErrValidation = errors.New("validation failed")
)

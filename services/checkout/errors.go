package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyClosed rejects a checkout on a cart that is closed or paid.
	// No gateway call is made.
	ErrAlreadyClosed = errors.New("cart is already closed")

	// ErrEmptyCart rejects a checkout on a cart with no lines.
	ErrEmptyCart = errors.New("cart has no items")
)

// PaymentFailedError reports a definitive decline. The cart stays active
// with paymentStatus=failed and may be retried as a new attempt.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	return "payment failed: " + e.Reason
}

// PaymentStatusUnknownError reports an ambiguous gateway outcome (timeout).
// The checkout left no state behind; a retry reuses the same idempotency
// key, so it cannot double-charge.
type PaymentStatusUnknownError struct {
	Err error
}

func (e *PaymentStatusUnknownError) Error() string {
	return "payment status unknown: " + e.Err.Error()
}

func (e *PaymentStatusUnknownError) Unwrap() error { return e.Err }

// StockConflictError means the charge was captured but stock disappeared
// between add-to-cart and checkout. PaymentID identifies the captured
// charge so an operator or automation can refund it; this package does not
// decide refund policy.
type StockConflictError struct {
	PaymentID string
	ProductID uint
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %d after payment %s was captured", e.ProductID, e.PaymentID)
}

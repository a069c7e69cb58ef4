// Package checkout coordinates the checkout saga: payment authorization,
// atomic stock decrement, cart closure and the confirmation email, across
// collaborators that fail independently.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tiendaluz/ecommerce-api/gateways/mail"
	"github.com/tiendaluz/ecommerce-api/gateways/payment"
	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/services/cart"
	"github.com/tiendaluz/ecommerce-api/store"
)

// closureRetries bounds the cart-closure retry loop on stores without
// multi-record transactions. After that the decrement is compensated.
const closureRetries = 3

type Orchestrator struct {
	store    store.Store
	gateway  payment.Gateway
	notifier mail.Notifier
	currency string
	logger   *slog.Logger
}

func New(st store.Store, gw payment.Gateway, notifier mail.Notifier, currency string) *Orchestrator {
	return &Orchestrator{
		store:    st,
		gateway:  gw,
		notifier: notifier,
		currency: currency,
		logger:   slog.Default().With("component", "checkout"),
	}
}

// Result is returned on a successful checkout.
type Result struct {
	PaymentID string       `json:"payment_id"`
	Cart      *models.Cart `json:"cart"`
}

// Checkout runs the saga for one cart. At most one in-flight checkout per
// cart is the caller's responsibility; concurrent checkouts over shared
// products are the ledger's.
func (o *Orchestrator) Checkout(ctx context.Context, cartID uint, paymentMethodID string) (*Result, error) {
	c, err := o.store.Carts().FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CartStatusClosed || c.PaymentStatus == models.PaymentStatusPaid {
		return nil, ErrAlreadyClosed
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Totals are recomputed from live catalog prices; the stored totals may
	// predate a price change.
	products, err := o.store.Products().FindByIDs(ctx, cart.ProductIDs(c.Items))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if err := cart.RecomputeTotals(c, products); err != nil {
		return nil, err
	}
	if err := o.store.Carts().Update(ctx, c); err != nil {
		return nil, fmt.Errorf("persist totals: %w", err)
	}

	// Same cart + same attempt generation → same key, so a client retry of
	// this attempt cannot double-charge.
	idempotencyKey := fmt.Sprintf("checkout-%d-%d", c.ID, c.CheckoutAttempts)
	o.logger.Info("authorizing payment", "cart_id", c.ID, "amount_cents", c.TotalCents, "key", idempotencyKey)

	auth, err := o.gateway.Authorize(ctx, c.TotalCents, o.currency, paymentMethodID, idempotencyKey)
	if err != nil {
		if errors.Is(err, payment.ErrStatusUnknown) {
			// Ambiguous: the charge may exist. Leave the cart untouched and
			// keep the generation, so the retry reuses the key.
			o.logger.Warn("payment outcome ambiguous", "cart_id", c.ID, "error", err)
			return nil, &PaymentStatusUnknownError{Err: err}
		}
		o.recordPaymentFailure(ctx, c)
		return nil, &PaymentFailedError{Reason: err.Error()}
	}
	if auth.Status != payment.StatusSucceeded {
		o.recordPaymentFailure(ctx, c)
		return nil, &PaymentFailedError{Reason: fmt.Sprintf("gateway declined payment %s", auth.PaymentID)}
	}

	items := cart.StockItems(c.Items)
	if err := o.commit(ctx, c, items, auth.PaymentID); err != nil {
		var short *store.InsufficientStockError
		if errors.As(err, &short) {
			// Customer is charged but stock is gone. Keep the payment
			// reference so the refund can be issued, fail the attempt.
			c.PaymentRef = auth.PaymentID
			o.recordPaymentFailure(ctx, c)
			o.logger.Error("stock conflict after capture", "cart_id", c.ID, "payment_id", auth.PaymentID, "product_id", short.ProductID)
			return nil, &StockConflictError{PaymentID: auth.PaymentID, ProductID: short.ProductID}
		}
		return nil, fmt.Errorf("commit checkout: %w", err)
	}

	o.notify(ctx, c)
	o.logger.Info("checkout completed", "cart_id", c.ID, "payment_id", auth.PaymentID, "total_cents", c.TotalCents)
	return &Result{PaymentID: auth.PaymentID, Cart: c}, nil
}

// commit decrements stock and closes the cart. With a transactional store
// both land in one unit. Otherwise stock goes first — decremented stock
// without a closed cart is the easier half-state to reconcile — and the
// closure write is retried; if it still fails the decrement is released.
func (o *Orchestrator) commit(ctx context.Context, c *models.Cart, items []store.StockItem, paymentID string) error {
	if atomicStore, ok := o.store.(store.AtomicStore); ok {
		err := atomicStore.Atomic(ctx, func(s store.Store) error {
			if err := s.Stock().ReserveAndDecrement(ctx, items); err != nil {
				return err
			}
			closeCart(c, paymentID)
			return s.Carts().Update(ctx, c)
		})
		if err != nil {
			reopenCart(c)
			return err
		}
		return nil
	}

	if err := o.store.Stock().ReserveAndDecrement(ctx, items); err != nil {
		return err
	}
	closeCart(c, paymentID)
	var err error
	for attempt := 1; attempt <= closureRetries; attempt++ {
		if err = o.store.Carts().Update(ctx, c); err == nil {
			return nil
		}
		o.logger.Warn("cart closure failed", "cart_id", c.ID, "attempt", attempt, "error", err)
	}
	reopenCart(c)
	if relErr := o.store.Stock().Release(ctx, items); relErr != nil {
		o.logger.Error("stock release failed, manual reconciliation needed", "cart_id", c.ID, "error", relErr)
	}
	return fmt.Errorf("close cart after stock commit (payment %s): %w", paymentID, err)
}

func closeCart(c *models.Cart, paymentID string) {
	now := time.Now()
	c.Status = models.CartStatusClosed
	c.PaymentStatus = models.PaymentStatusPaid
	c.PaymentRef = paymentID
	c.ClosedAt = &now
}

func reopenCart(c *models.Cart) {
	c.Status = models.CartStatusActive
	c.PaymentStatus = models.PaymentStatusPending
	c.PaymentRef = ""
	c.ClosedAt = nil
}

// recordPaymentFailure marks the attempt failed and bumps the idempotency
// generation so the next attempt charges under a fresh key.
func (o *Orchestrator) recordPaymentFailure(ctx context.Context, c *models.Cart) {
	c.PaymentStatus = models.PaymentStatusFailed
	c.CheckoutAttempts++
	if err := o.store.Carts().Update(ctx, c); err != nil {
		o.logger.Error("failed to record payment failure", "cart_id", c.ID, "error", err)
	}
}

// notify sends the confirmation email. Failures are logged, never surfaced:
// the checkout already succeeded.
func (o *Orchestrator) notify(ctx context.Context, c *models.Cart) {
	if c.User.Email == "" {
		return
	}
	body := fmt.Sprintf("Thank you for your purchase. Order total: %s %s.",
		cart.Money(c.TotalCents).StringFixed(2), o.currency)
	if err := o.notifier.Send(ctx, c.User.Email, "Purchase confirmation", body); err != nil {
		o.logger.Warn("confirmation email failed", "cart_id", c.ID, "error", err)
	}
}

package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendaluz/ecommerce-api/gateways/payment"
	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/store"
)

type fakeGateway struct {
	auth    *payment.Authorization
	err     error
	keys    []string
	amounts []int64
}

func (g *fakeGateway) Authorize(_ context.Context, amountCents int64, _, _, idempotencyKey string) (*payment.Authorization, error) {
	g.keys = append(g.keys, idempotencyKey)
	g.amounts = append(g.amounts, amountCents)
	if g.err != nil {
		return nil, g.err
	}
	return g.auth, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to, _, _ string) error {
	n.sent = append(n.sent, to)
	return n.err
}

func seed(t *testing.T) (*store.MemoryStore, *models.Cart) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Users().Save(ctx, &models.User{ID: "u1", Email: "buyer@example.com"}))
	require.NoError(t, s.Products().Save(ctx, &models.Product{ID: 1, Name: "Lamp", PriceCents: 10000, Stock: 5}))
	c := &models.Cart{
		UserID:        "u1",
		Status:        models.CartStatusActive,
		PaymentStatus: models.PaymentStatusPending,
		Items:         []models.LineItem{{ProductID: 1, Quantity: 2}},
	}
	require.NoError(t, s.Carts().Create(ctx, c))
	return s, c
}

func reload(t *testing.T, s store.Store, id uint) *models.Cart {
	t.Helper()
	c, err := s.Carts().FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func productStock(t *testing.T, s store.Store, id uint) int {
	t.Helper()
	p, err := s.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCheckout_Succeeds(t *testing.T) {
	s, c := seed(t)
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	notifier := &fakeNotifier{}
	o := New(s, gw, notifier, "MXN")

	res, err := o.Checkout(context.Background(), c.ID, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", res.PaymentID)

	saved := reload(t, s, c.ID)
	assert.Equal(t, models.CartStatusClosed, saved.Status)
	assert.Equal(t, models.PaymentStatusPaid, saved.PaymentStatus)
	assert.Equal(t, "pay_1", saved.PaymentRef)
	require.NotNil(t, saved.ClosedAt)

	// 2 × 10000 plus 16% tax.
	assert.Equal(t, int64(23200), saved.TotalCents)
	require.Len(t, gw.amounts, 1)
	assert.Equal(t, int64(23200), gw.amounts[0])

	assert.Equal(t, 3, productStock(t, s, 1))
	assert.Equal(t, []string{"buyer@example.com"}, notifier.sent)
}

func TestCheckout_RecomputesFromLivePrices(t *testing.T) {
	s, c := seed(t)
	// Price changed after the cart was built.
	require.NoError(t, s.Products().Save(context.Background(), &models.Product{ID: 1, Name: "Lamp", PriceCents: 5000, Stock: 5}))
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	require.NoError(t, err)

	// 2 × 5000 plus 16% tax, charged from the live price.
	assert.Equal(t, int64(11600), gw.amounts[0])
}

func TestCheckout_DeclineFailsAttemptAndRotatesKey(t *testing.T) {
	s, c := seed(t)
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusFailed}}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	var failed *PaymentFailedError
	require.ErrorAs(t, err, &failed)

	saved := reload(t, s, c.ID)
	assert.Equal(t, models.CartStatusActive, saved.Status)
	assert.Equal(t, models.PaymentStatusFailed, saved.PaymentStatus)
	assert.Equal(t, 1, saved.CheckoutAttempts)
	assert.Equal(t, 5, productStock(t, s, 1))

	// A definitive decline bumps the generation: the next attempt charges
	// under a fresh key.
	_, _ = o.Checkout(context.Background(), c.ID, "pm_card")
	require.Len(t, gw.keys, 2)
	assert.NotEqual(t, gw.keys[0], gw.keys[1])
}

func TestCheckout_UnknownStatusKeepsKey(t *testing.T) {
	s, c := seed(t)
	gw := &fakeGateway{err: payment.ErrStatusUnknown}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	var unknown *PaymentStatusUnknownError
	require.ErrorAs(t, err, &unknown)
	assert.ErrorIs(t, unknown.Err, payment.ErrStatusUnknown)

	// Ambiguous outcome: no state change, no generation bump.
	saved := reload(t, s, c.ID)
	assert.Equal(t, models.CartStatusActive, saved.Status)
	assert.Equal(t, models.PaymentStatusPending, saved.PaymentStatus)
	assert.Equal(t, 0, saved.CheckoutAttempts)

	// The retry reuses the same idempotency key, so the gateway can
	// deduplicate against the in-flight charge.
	_, _ = o.Checkout(context.Background(), c.ID, "pm_card")
	require.Len(t, gw.keys, 2)
	assert.Equal(t, gw.keys[0], gw.keys[1])
}

func TestCheckout_StockConflictAfterCapture(t *testing.T) {
	s, c := seed(t)
	// Someone else bought the last units between authorization and commit:
	// model it as stock already too low.
	require.NoError(t, s.Products().Save(context.Background(), &models.Product{ID: 1, Name: "Lamp", PriceCents: 10000, Stock: 1}))
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "pay_1", conflict.PaymentID)
	assert.Equal(t, uint(1), conflict.ProductID)

	saved := reload(t, s, c.ID)
	assert.Equal(t, models.CartStatusActive, saved.Status)
	assert.Equal(t, models.PaymentStatusFailed, saved.PaymentStatus)
	// The captured payment is kept on the cart for the refund.
	assert.Equal(t, "pay_1", saved.PaymentRef)
	assert.Equal(t, 1, saved.CheckoutAttempts)
	assert.Equal(t, 1, productStock(t, s, 1))
}

func TestCheckout_EmptyCart(t *testing.T) {
	s, _ := seed(t)
	empty := &models.Cart{UserID: "u1", Status: models.CartStatusActive, PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, s.Carts().Create(context.Background(), empty))
	o := New(s, &fakeGateway{}, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), empty.ID, "pm_card")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_AlreadyClosed(t *testing.T) {
	s, c := seed(t)
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	require.NoError(t, err)

	_, err = o.Checkout(context.Background(), c.ID, "pm_card")
	assert.ErrorIs(t, err, ErrAlreadyClosed)
	// No second charge.
	assert.Len(t, gw.keys, 1)
}

func TestCheckout_UnknownCart(t *testing.T) {
	s, _ := seed(t)
	o := New(s, &fakeGateway{}, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), 999, "pm_card")
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestCheckout_NotifierFailureDoesNotFailCheckout(t *testing.T) {
	s, c := seed(t)
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	o := New(s, gw, notifier, "MXN")

	res, err := o.Checkout(context.Background(), c.ID, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", res.PaymentID)
	assert.Equal(t, models.CartStatusClosed, reload(t, s, c.ID).Status)
}

// closureFailingStore wraps the memory store with a cart repository whose
// closure writes always fail, forcing the compensation path.
type closureFailingStore struct {
	*store.MemoryStore
	carts *closureFailingCarts
}

func newClosureFailingStore(m *store.MemoryStore) *closureFailingStore {
	return &closureFailingStore{MemoryStore: m, carts: &closureFailingCarts{inner: m.Carts()}}
}

func (s *closureFailingStore) Carts() store.CartRepository { return s.carts }

type closureFailingCarts struct {
	inner       store.CartRepository
	failedSaves int
}

func (r *closureFailingCarts) Update(ctx context.Context, c *models.Cart) error {
	if c.Status == models.CartStatusClosed {
		r.failedSaves++
		return errors.New("write timeout")
	}
	return r.inner.Update(ctx, c)
}

func (r *closureFailingCarts) FindByID(ctx context.Context, id uint) (*models.Cart, error) {
	return r.inner.FindByID(ctx, id)
}
func (r *closureFailingCarts) Create(ctx context.Context, c *models.Cart) error {
	return r.inner.Create(ctx, c)
}
func (r *closureFailingCarts) Delete(ctx context.Context, id uint) error {
	return r.inner.Delete(ctx, id)
}
func (r *closureFailingCarts) ClosedByUser(ctx context.Context, userID string) ([]models.Cart, error) {
	return r.inner.ClosedByUser(ctx, userID)
}
func (r *closureFailingCarts) AllClosed(ctx context.Context) ([]models.Cart, error) {
	return r.inner.AllClosed(ctx)
}

func TestCheckout_ReleasesStockWhenClosureKeepsFailing(t *testing.T) {
	mem, c := seed(t)
	s := newClosureFailingStore(mem)
	gw := &fakeGateway{auth: &payment.Authorization{PaymentID: "pay_1", Status: payment.StatusSucceeded}}
	o := New(s, gw, &fakeNotifier{}, "MXN")

	_, err := o.Checkout(context.Background(), c.ID, "pm_card")
	require.Error(t, err)

	// Closure was retried before compensating.
	assert.Equal(t, closureRetries, s.carts.failedSaves)
	// The decrement was released: the customer can be refunded and the
	// stock is back on the shelf.
	assert.Equal(t, 5, productStock(t, mem, 1))
	assert.Equal(t, models.CartStatusActive, reload(t, mem, c.ID).Status)
}

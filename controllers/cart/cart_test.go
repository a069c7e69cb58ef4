package cartControllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/store"
)

func newCartRouter(t *testing.T, uid string) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Products().Save(ctx, &models.Product{ID: 1, Name: "Mug", PriceCents: 10000, Stock: 5}))
	require.NoError(t, st.Carts().Create(ctx, &models.Cart{
		ID:            7,
		UserID:        "u1",
		Status:        models.CartStatusActive,
		PaymentStatus: models.PaymentStatusPending,
		Items:         []models.LineItem{{ProductID: 1, Quantity: 1}},
	}))

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("user_id", uid) })
	router.POST("/user/carts", CreateCart(st))
	router.GET("/user/carts/:id", GetCart(st))
	router.POST("/user/carts/:id/items", AddCartItem(st))
	router.DELETE("/user/carts/:id/items/:product_id", DeleteCartItem(st))
	router.DELETE("/user/carts/:id", DeleteCart(st))
	return router, st
}

func perform(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetCart_OwnCart(t *testing.T) {
	router, _ := newCartRouter(t, "u1")
	w := perform(router, http.MethodGet, "/user/carts/7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":7`)
}

func TestGetCart_ForeignCartAnswersNotFound(t *testing.T) {
	router, _ := newCartRouter(t, "u2")
	w := perform(router, http.MethodGet, "/user/carts/7", "")
	// Indistinguishable from a cart that does not exist.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddCartItem_ForeignCartAnswersNotFound(t *testing.T) {
	router, st := newCartRouter(t, "u2")
	w := perform(router, http.MethodPost, "/user/carts/7/items", `{"product_id":1,"quantity":2}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Nothing was added.
	cart, err := st.Carts().FindByID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestAddCartItem_MergesAndRecomputes(t *testing.T) {
	router, st := newCartRouter(t, "u1")
	w := perform(router, http.MethodPost, "/user/carts/7/items", `{"product_id":1,"quantity":2}`)
	assert.Equal(t, http.StatusOK, w.Code)

	cart, err := st.Carts().FindByID(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(30000), cart.SubtotalCents)
	assert.Equal(t, int64(34800), cart.TotalCents)
}

func TestDeleteCartItem_ForeignCartAnswersNotFound(t *testing.T) {
	router, _ := newCartRouter(t, "u2")
	w := perform(router, http.MethodDelete, "/user/carts/7/items/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteCart_ForeignCartAnswersNotFound(t *testing.T) {
	router, st := newCartRouter(t, "u2")
	w := perform(router, http.MethodDelete, "/user/carts/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Still there.
	_, err := st.Carts().FindByID(context.Background(), 7)
	assert.NoError(t, err)
}

func TestDeleteCart_OwnCart(t *testing.T) {
	router, st := newCartRouter(t, "u1")
	w := perform(router, http.MethodDelete, "/user/carts/7", "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := st.Carts().FindByID(context.Background(), 7)
	assert.ErrorIs(t, err, store.ErrCartNotFound)
}

func TestCreateCart_UsesAuthenticatedUser(t *testing.T) {
	router, st := newCartRouter(t, "u3")
	w := perform(router, http.MethodPost, "/user/carts", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	cart, err := st.Carts().FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "u3", cart.UserID)
	assert.Equal(t, models.CartStatusActive, cart.Status)
}

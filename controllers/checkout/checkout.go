package checkoutControllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiendaluz/ecommerce-api/services/checkout"
	"github.com/tiendaluz/ecommerce-api/store"
)

// Service is what the handler needs from the orchestrator.
type Service interface {
	Checkout(ctx context.Context, cartID uint, paymentMethodID string) (*checkout.Result, error)
}

type CheckoutInput struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

// POST /user/carts/:id/checkout
func CheckoutHandler(st store.Store, svc Service, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart id"})
			return
		}
		var input CheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		if !cartOwnedByCaller(c, st, uint(id)) {
			return
		}

		result, err := svc.Checkout(c.Request.Context(), uint(id), input.PaymentMethodID)
		if err != nil {
			writeCheckoutError(c, err)
			return
		}

		if hub != nil {
			hub.BroadcastCheckout(result)
		}
		c.JSON(http.StatusOK, result)
	}
}

// cartOwnedByCaller verifies the cart belongs to the authenticated user.
// Other users' carts answer 404, same as carts that do not exist.
func cartOwnedByCaller(c *gin.Context, st store.Store, id uint) bool {
	uid, _ := c.Get("user_id")
	owner, ok := uid.(string)
	if !ok || owner == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	cart, err := st.Carts().FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found", "code": "not_found"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return false
	}
	if cart.UserID != owner {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found", "code": "not_found"})
		return false
	}
	return true
}

// writeCheckoutError maps the saga's error taxonomy onto HTTP statuses.
func writeCheckoutError(c *gin.Context, err error) {
	var (
		paymentFailed *checkout.PaymentFailedError
		statusUnknown *checkout.PaymentStatusUnknownError
		stockConflict *checkout.StockConflictError
		insufficient  *store.InsufficientStockError
	)
	switch {
	case errors.Is(err, store.ErrCartNotFound), errors.Is(err, store.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, checkout.ErrAlreadyClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "already_closed"})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation"})
	case errors.As(err, &stockConflict):
		// 424: payment went through, the dependent stock step did not.
		c.JSON(http.StatusFailedDependency, gin.H{
			"error":      stockConflict.Error(),
			"code":       "stock_conflict",
			"payment_id": stockConflict.PaymentID,
			"product_id": stockConflict.ProductID,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":      insufficient.Error(),
			"code":       "insufficient_stock",
			"product_id": insufficient.ProductID,
		})
	case errors.As(err, &paymentFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": paymentFailed.Error(), "code": "payment_failed"})
	case errors.As(err, &statusUnknown):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": statusUnknown.Error(), "code": "payment_status_unknown"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

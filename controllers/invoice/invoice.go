package invoiceControllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiendaluz/ecommerce-api/services/invoice"
	"github.com/tiendaluz/ecommerce-api/store"
)

// Service is what the handler needs from the issuer.
type Service interface {
	Issue(ctx context.Context, cartID uint) (*invoice.Result, error)
}

// POST /user/carts/:id/invoice
func IssueHandler(st store.Store, svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart id"})
			return
		}
		if !cartOwnedByCaller(c, st, uint(id)) {
			return
		}

		result, err := svc.Issue(c.Request.Context(), uint(id))
		if err != nil {
			var genErr *invoice.GenerationError
			switch {
			case errors.Is(err, store.ErrCartNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
			case errors.Is(err, invoice.ErrInvalidState):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "invalid_state"})
			case errors.As(err, &genErr):
				c.JSON(http.StatusBadGateway, gin.H{
					"error": genErr.Error(),
					"code":  "invoice_generation",
					"step":  string(genErr.Step),
				})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
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

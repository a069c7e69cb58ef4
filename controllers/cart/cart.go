package cartControllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiendaluz/ecommerce-api/models"
	cartsvc "github.com/tiendaluz/ecommerce-api/services/cart"
	"github.com/tiendaluz/ecommerce-api/store"
)

type CartItemInput struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

func userID(c *gin.Context) (string, bool) {
	val, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	id, ok := val.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return id, true
}

func cartID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart id"})
		return 0, false
	}
	return uint(id), true
}

// loadOwnedCart fetches the cart and verifies it belongs to the
// authenticated user. Other users' carts answer 404, same as carts that do
// not exist.
func loadOwnedCart(c *gin.Context, st store.Store, uid string, id uint) (*models.Cart, bool) {
	cart, err := st.Carts().FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return nil, false
	}
	if cart.UserID != uid {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return nil, false
	}
	return cart, true
}

// POST /user/carts
func CreateCart(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		cart := models.Cart{
			UserID:        uid,
			Status:        models.CartStatusActive,
			PaymentStatus: models.PaymentStatusPending,
		}
		if err := st.Carts().Create(c.Request.Context(), &cart); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create cart"})
			return
		}
		c.JSON(http.StatusCreated, cart)
	}
}

// GET /user/carts/:id
func GetCart(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, ok := cartID(c)
		if !ok {
			return
		}
		cart, ok := loadOwnedCart(c, st, uid, id)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

// POST /user/carts/:id/items
// Merges the quantity into an existing line for the same product and
// recomputes totals from live catalog prices.
func AddCartItem(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, ok := cartID(c)
		if !ok {
			return
		}
		var input CartItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		ctx := c.Request.Context()
		cart, ok := loadOwnedCart(c, st, uid, id)
		if !ok {
			return
		}
		if cart.Status != models.CartStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "Cart is closed"})
			return
		}

		product, err := st.Products().FindByID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Product does not exist"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate product"})
			return
		}

		if err := cartsvc.AddLine(cart, product, input.Quantity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := recomputeAndSave(c, st, cart); err != nil {
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

// DELETE /user/carts/:id/items/:product_id
func DeleteCartItem(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, ok := cartID(c)
		if !ok {
			return
		}
		productID, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}

		cart, ok := loadOwnedCart(c, st, uid, id)
		if !ok {
			return
		}
		if cart.Status != models.CartStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "Cart is closed"})
			return
		}
		if !cartsvc.RemoveLine(cart, uint(productID)) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		if err := recomputeAndSave(c, st, cart); err != nil {
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

// DELETE /user/carts/:id
// Paid carts are an audit record and are never deleted.
func DeleteCart(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, ok := cartID(c)
		if !ok {
			return
		}
		if _, ok := loadOwnedCart(c, st, uid, id); !ok {
			return
		}
		err := st.Carts().Delete(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"message": "Cart deleted"})
		case errors.Is(err, store.ErrCartNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		case errors.Is(err, store.ErrCartPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "Paid carts cannot be deleted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete cart"})
		}
	}
}

// GET /user/carts/history
func GetCartHistory(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		carts, err := st.Carts().ClosedByUser(c.Request.Context(), uid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart history"})
			return
		}
		c.JSON(http.StatusOK, carts)
	}
}

// GET /admin/carts
func GetClosedCarts(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		carts, err := st.Carts().AllClosed(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch carts"})
			return
		}
		c.JSON(http.StatusOK, carts)
	}
}

func recomputeAndSave(c *gin.Context, st store.Store, cart *models.Cart) error {
	ctx := c.Request.Context()
	products, err := st.Products().FindByIDs(ctx, cartsvc.ProductIDs(cart.Items))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return err
	}
	if err := cartsvc.RecomputeTotals(cart, products); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute totals"})
		return err
	}
	if err := st.Carts().Update(ctx, cart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return err
	}
	return nil
}

package routes

import (
	"github.com/gin-gonic/gin"

	cartControllers "github.com/tiendaluz/ecommerce-api/controllers/cart"
	checkoutControllers "github.com/tiendaluz/ecommerce-api/controllers/checkout"
	invoiceControllers "github.com/tiendaluz/ecommerce-api/controllers/invoice"
	"github.com/tiendaluz/ecommerce-api/middleware"
)

func SetupUserRoutes(r *gin.Engine, deps Deps) {
	user := r.Group("/user")
	user.Use(middleware.ValidateToken)
	{
		user.POST("/carts", cartControllers.CreateCart(deps.Store))
		user.GET("/carts/history", cartControllers.GetCartHistory(deps.Store))
		user.GET("/carts/:id", cartControllers.GetCart(deps.Store))
		user.POST("/carts/:id/items", cartControllers.AddCartItem(deps.Store))
		user.DELETE("/carts/:id/items/:product_id", cartControllers.DeleteCartItem(deps.Store))
		user.DELETE("/carts/:id", cartControllers.DeleteCart(deps.Store))

		// Checkout saga and invoice issuance
		user.POST("/carts/:id/checkout", checkoutControllers.CheckoutHandler(deps.Store, deps.Checkout, deps.Hub))
		user.POST("/carts/:id/invoice", invoiceControllers.IssueHandler(deps.Store, deps.Invoices))
	}
}

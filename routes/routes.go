package routes

import (
	"github.com/gin-gonic/gin"

	checkoutControllers "github.com/tiendaluz/ecommerce-api/controllers/checkout"
	invoiceControllers "github.com/tiendaluz/ecommerce-api/controllers/invoice"
	"github.com/tiendaluz/ecommerce-api/store"
)

// Deps carries the wired services; adapters are constructed in main and
// injected here, never pulled from globals.
type Deps struct {
	Store    store.Store
	Checkout checkoutControllers.Service
	Invoices invoiceControllers.Service
	Hub      *checkoutControllers.Hub
}

// SetupRoutes is the single entry-point that wires up the user, admin and
// websocket route groups.
func SetupRoutes(r *gin.Engine, deps Deps) {
	// User routes (JWT-protected)
	SetupUserRoutes(r, deps)

	// Admin routes (API-key-protected)
	SetupAdminRoutes(r, deps)

	// Realtime checkout stream
	r.GET("/ws/checkouts", deps.Hub.Handler)
}

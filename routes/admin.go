package routes

import (
	"github.com/gin-gonic/gin"

	cartControllers "github.com/tiendaluz/ecommerce-api/controllers/cart"
	reportControllers "github.com/tiendaluz/ecommerce-api/controllers/report"
	"github.com/tiendaluz/ecommerce-api/middleware"
)

func SetupAdminRoutes(r *gin.Engine, deps Deps) {
	admin := r.Group("/admin")
	admin.Use(middleware.ValidateAPIKey)
	{
		admin.GET("/carts", cartControllers.GetClosedCarts(deps.Store))
		admin.GET("/reports/sales", reportControllers.ExportSalesToExcel(deps.Store))
	}
}

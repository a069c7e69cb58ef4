package reportControllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"

	cartsvc "github.com/tiendaluz/ecommerce-api/services/cart"
	"github.com/tiendaluz/ecommerce-api/store"
)

// GET /admin/reports/sales
// Exports every closed cart with its totals and payment reference.
func ExportSalesToExcel(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		carts, err := st.Carts().AllClosed(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch closed carts"})
			return
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Sales")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
			return
		}

		// Header row
		headers := []string{
			"CartID", "UserEmail", "Items", "Subtotal", "Tax", "Total",
			"PaymentStatus", "PaymentRef", "InvoiceID", "ClosedAt",
		}
		headerRow := sheet.AddRow()
		for _, h := range headers {
			headerRow.AddCell().SetValue(h)
		}

		// Data rows
		for _, cart := range carts {
			row := sheet.AddRow()

			row.AddCell().SetValue(cart.ID)
			row.AddCell().SetValue(cart.User.Email)

			itemCount := 0
			for _, item := range cart.Items {
				itemCount += item.Quantity
			}
			row.AddCell().SetValue(itemCount)

			row.AddCell().SetValue(cartsvc.Money(cart.SubtotalCents).StringFixed(2))
			row.AddCell().SetValue(cartsvc.Money(cart.TaxCents).StringFixed(2))
			row.AddCell().SetValue(cartsvc.Money(cart.TotalCents).StringFixed(2))
			row.AddCell().SetValue(string(cart.PaymentStatus))
			row.AddCell().SetValue(cart.PaymentRef)
			row.AddCell().SetValue(cart.InvoiceID)

			if cart.ClosedAt != nil {
				row.AddCell().SetValue(cart.ClosedAt.Format("2006-01-02 15:04:05"))
			} else {
				row.AddCell().SetValue("")
			}
		}

		// Set response headers for download
		c.Header("Content-Disposition", "attachment; filename=sales.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")

		// Write file to response
		if err := file.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
			return
		}
	}
}

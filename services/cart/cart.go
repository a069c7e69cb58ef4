// Package cart holds the cart aggregate: line mutation and totals math.
// It is pure computation; loading and persisting carts is the caller's job.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/store"
)

// TaxRatePercent is the IVA rate applied on top of tax-inclusive prices.
const TaxRatePercent = 16

var ErrInvalidQuantity = errors.New("quantity must be greater than zero")

// AddLine merges qty into an existing line for the same product or appends a
// new one. Adding a line does not reserve stock; reservation happens at
// checkout.
func AddLine(c *models.Cart, product *models.Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			c.Items[i].Quantity += qty
			c.Items[i].Product = *product
			return nil
		}
	}
	c.Items = append(c.Items, models.LineItem{
		CartID:    c.ID,
		ProductID: product.ID,
		Product:   *product,
		Quantity:  qty,
	})
	return nil
}

// RemoveLine drops the line for productID. Returns false when no such line
// exists.
func RemoveLine(c *models.Cart, productID uint) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// RecomputeTotals refreshes every line's product from the live catalog and
// recomputes subtotal, tax and total. Totals are never carried over from
// add-time prices.
func RecomputeTotals(c *models.Cart, products map[uint]*models.Product) error {
	var subtotal int64
	for i := range c.Items {
		product, ok := products[c.Items[i].ProductID]
		if !ok {
			return fmt.Errorf("%w: %d", store.ErrProductNotFound, c.Items[i].ProductID)
		}
		c.Items[i].Product = *product
		subtotal += product.PriceCents * int64(c.Items[i].Quantity)
	}
	c.SubtotalCents = subtotal
	c.TaxCents = TaxCents(subtotal)
	c.TotalCents = c.SubtotalCents + c.TaxCents
	return nil
}

// TaxCents returns the IVA on a subtotal, rounded half-up to the cent.
func TaxCents(subtotalCents int64) int64 {
	return (subtotalCents*TaxRatePercent + 50) / 100
}

// StockItems maps cart lines to ledger decrement requests.
func StockItems(items []models.LineItem) []store.StockItem {
	out := make([]store.StockItem, 0, len(items))
	for _, item := range items {
		out = append(out, store.StockItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// ProductIDs lists the distinct products referenced by the cart.
func ProductIDs(items []models.LineItem) []uint {
	ids := make([]uint, 0, len(items))
	seen := make(map[uint]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// Money renders minor units as a decimal amount for API responses and
// reports.
func Money(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

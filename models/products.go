package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// PriceCents is the tax-inclusive unit price in minor units. The
	// tax-exclusive price used on invoices is derived from it, never stored.
	PriceCents int64 `gorm:"not null" json:"price_cents"`

	// Stock never goes negative; it is only decremented inside the
	// ledger's atomic scope.
	Stock int `json:"stock"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Price returns the tax-inclusive unit price as a decimal amount.
func (p Product) Price() decimal.Decimal {
	return decimal.NewFromInt(p.PriceCents).Div(decimal.NewFromInt(100))
}

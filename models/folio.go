package models

// InvoiceFolio holds the next folio number for an invoice series. Folios are
// allocated under a row lock so they stay monotonic; random folios collide.
type InvoiceFolio struct {
	Series string `gorm:"primaryKey" json:"series"`
	Next   int64  `gorm:"not null;default:1" json:"next"`
}

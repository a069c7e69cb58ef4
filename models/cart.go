package models

import "time"

type CartStatus string
type PaymentStatus string

const (
	// Cart statuses: a cart stays active until checkout closes it; closed is terminal.
	CartStatusActive CartStatus = "active"
	CartStatusClosed CartStatus = "closed"

	// Payment statuses
	PaymentStatusPending PaymentStatus = "pending" // No definitive charge outcome yet
	PaymentStatusPaid    PaymentStatus = "paid"    // Charge captured, terminal
	PaymentStatusFailed  PaymentStatus = "failed"  // Last attempt failed, cart stays payable
)

type Cart struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	UserID string     `gorm:"index;not null" json:"user_id"`
	User   User       `gorm:"foreignKey:UserID" json:"user"`
	Items  []LineItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`

	// Totals in minor units. Invariant: TotalCents == SubtotalCents + TaxCents.
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`

	Status        CartStatus    `gorm:"type:VARCHAR(20);default:'active'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"payment_status"`

	// CheckoutAttempts is the idempotency generation: bumped after every
	// definitive payment failure so the next attempt charges under a new key.
	CheckoutAttempts int `json:"checkout_attempts"`

	// PaymentRef is the gateway's payment id for a captured charge. Also
	// recorded when the charge succeeded but stock ran out, so an operator
	// can issue the refund.
	PaymentRef string `json:"payment_ref,omitempty"`

	// Set once an invoice was issued. Re-issuing returns this artifact
	// instead of billing the tax authority twice.
	InvoiceID  string `json:"invoice_id,omitempty"`
	InvoiceURL string `json:"invoice_url,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type LineItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	CartID    uint    `gorm:"index" json:"cart_id"`
	ProductID uint    `gorm:"index" json:"product_id"`
	Product   Product `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int     `json:"quantity"`
}

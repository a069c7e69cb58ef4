package models

import "time"

type User struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Email string `gorm:"unique;not null" json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`

	// TaxID is the customer's tax-registry id (RFC). The generic public RFC
	// is used when the customer never registered one.
	TaxID string `json:"tax_id"`

	// TaxCustomerID is the customer's id at the invoicing provider.
	TaxCustomerID string `json:"tax_customer_id"`

	Address   Address   `gorm:"embedded" json:"address"`
	Carts     []Cart    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"carts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Address model embedded in User
type Address struct {
	Country    string `json:"country"`
	State      string `json:"state"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
}

// GenericTaxID is the placeholder RFC accepted by the tax authority for
// customers without a registered one.
const GenericTaxID = "XAXX010101000"

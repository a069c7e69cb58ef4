// Package invoice issues tax invoices for closed, paid carts: folio
// allocation, creation and stamping at the invoicing provider, document
// download and upload to the document store.
package invoice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/tiendaluz/ecommerce-api/gateways/docstore"
	"github.com/tiendaluz/ecommerce-api/gateways/taxinvoice"
	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/services/cart"
	"github.com/tiendaluz/ecommerce-api/store"
)

// PaymentFormSingle is the tax-authority code for payment in one exhibition.
const PaymentFormSingle = "01"

// DocumentFolder is where rendered invoices land in the document store.
const DocumentFolder = "invoices"

type Issuer struct {
	store  store.Store
	tax    taxinvoice.Service
	docs   docstore.Store
	series string
	logger *slog.Logger
}

func NewIssuer(st store.Store, tax taxinvoice.Service, docs docstore.Store, series string) *Issuer {
	return &Issuer{
		store:  st,
		tax:    tax,
		docs:   docs,
		series: series,
		logger: slog.Default().With("component", "invoice"),
	}
}

type Result struct {
	InvoiceID   string `json:"invoice_id"`
	DocumentURL string `json:"document_url"`
}

// Issue builds, stamps, and stores the invoice for a closed, paid cart.
// Calling it again for the same cart returns the recorded artifact instead
// of billing the tax authority a second time.
func (i *Issuer) Issue(ctx context.Context, cartID uint) (*Result, error) {
	c, err := i.store.Carts().FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CartStatusClosed || c.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrInvalidState
	}
	if c.InvoiceID != "" {
		return &Result{InvoiceID: c.InvoiceID, DocumentURL: c.InvoiceURL}, nil
	}

	folio, err := i.store.Folios().NextFolio(ctx, i.series)
	if err != nil {
		return nil, &GenerationError{Step: StepCreate, Err: fmt.Errorf("allocate folio: %w", err)}
	}

	created, err := i.tax.CreateInvoice(ctx, buildPayload(c, i.series, folio))
	if err != nil {
		return nil, &GenerationError{Step: StepCreate, Err: err}
	}

	// The provider may answer with a draft; issuance is only complete once
	// it reports a stamped invoice.
	if created.Status != taxinvoice.StatusStamped {
		created, err = i.tax.Finalize(ctx, created.ID)
		if err != nil {
			return nil, &GenerationError{Step: StepFinalize, Err: err}
		}
		if created.Status != taxinvoice.StatusStamped {
			return nil, &GenerationError{
				Step: StepFinalize,
				Err:  fmt.Errorf("invoice %s left in state %q", created.ID, created.Status),
			}
		}
	}

	url, err := i.storeDocument(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	c.InvoiceID = created.ID
	c.InvoiceURL = url
	if err := i.store.Carts().Update(ctx, c); err != nil {
		// Without the record a retry would stamp a second invoice, so this
		// is surfaced instead of swallowed.
		return nil, &GenerationError{Step: StepRecord, Err: fmt.Errorf("record invoice %s: %w", created.ID, err)}
	}

	i.logger.Info("invoice issued", "cart_id", c.ID, "invoice_id", created.ID, "series", i.series, "folio", folio)
	return &Result{InvoiceID: created.ID, DocumentURL: url}, nil
}

// storeDocument downloads the rendered PDF into a temp file, uploads it, and
// removes the temp file on every exit path.
func (i *Issuer) storeDocument(ctx context.Context, invoiceID string) (string, error) {
	stream, err := i.tax.DownloadDocument(ctx, invoiceID)
	if err != nil {
		return "", &GenerationError{Step: StepDownload, Err: err}
	}
	defer stream.Close()

	tmp, err := os.CreateTemp("", "invoice-*.pdf")
	if err != nil {
		return "", &GenerationError{Step: StepDownload, Err: err}
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := io.Copy(tmp, stream); err != nil {
		tmp.Close()
		return "", &GenerationError{Step: StepDownload, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &GenerationError{Step: StepDownload, Err: err}
	}

	url, err := i.docs.Upload(ctx, path, DocumentFolder)
	if err != nil {
		return "", &GenerationError{Step: StepUpload, Err: err}
	}
	return url, nil
}

// buildPayload derives per-line tax-exclusive prices from the stored
// tax-inclusive ones: priceExcl = priceIncl / 1.16, tax = priceExcl × 0.16 ×
// qty, both rounded to the cent. The derivation keeps invoice math in step
// with cart totals, which are computed on tax-inclusive prices.
func buildPayload(c *models.Cart, series string, folio int64) taxinvoice.Payload {
	rate := decimal.NewFromInt(cart.TaxRatePercent).Div(decimal.NewFromInt(100))
	divisor := decimal.NewFromInt(1).Add(rate)

	lines := make([]taxinvoice.Line, 0, len(c.Items))
	for _, item := range c.Items {
		unitExcl := item.Product.Price().DivRound(divisor, 2)
		lineTax := unitExcl.Mul(rate).Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		lines = append(lines, taxinvoice.Line{
			Description: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitExcl,
			Tax:         lineTax,
		})
	}

	taxID := c.User.TaxID
	if taxID == "" {
		taxID = models.GenericTaxID
	}
	return taxinvoice.Payload{
		CustomerID:  c.User.TaxCustomerID,
		CustomerTax: taxID,
		Lines:       lines,
		PaymentForm: PaymentFormSingle,
		Series:      series,
		Folio:       folio,
	}
}

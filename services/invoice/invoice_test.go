package invoice

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendaluz/ecommerce-api/gateways/taxinvoice"
	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/store"
)

type fakeTaxService struct {
	created     []taxinvoice.Payload
	createResp  *taxinvoice.Invoice
	createErr   error
	finalized   []string
	finalizeErr error
	downloaded  []string
	downloadErr error
}

func (f *fakeTaxService) CreateInvoice(_ context.Context, payload taxinvoice.Payload) (*taxinvoice.Invoice, error) {
	f.created = append(f.created, payload)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &taxinvoice.Invoice{ID: "inv_1", Status: taxinvoice.StatusStamped}, nil
}

func (f *fakeTaxService) Finalize(_ context.Context, id string) (*taxinvoice.Invoice, error) {
	f.finalized = append(f.finalized, id)
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &taxinvoice.Invoice{ID: id, Status: taxinvoice.StatusStamped}, nil
}

func (f *fakeTaxService) DownloadDocument(_ context.Context, id string) (io.ReadCloser, error) {
	f.downloaded = append(f.downloaded, id)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4 fake")), nil
}

type fakeDocStore struct {
	paths []string
	url   string
	err   error
}

func (f *fakeDocStore) Upload(_ context.Context, path, folder string) (string, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	if folder != DocumentFolder {
		return "", errors.New("unexpected folder")
	}
	return f.url, nil
}

func seedPaidCart(t *testing.T) (*store.MemoryStore, *models.Cart) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Users().Save(ctx, &models.User{
		ID: "u1", Email: "buyer@example.com", TaxID: "ABCD860315XXX", TaxCustomerID: "cus_7",
	}))
	require.NoError(t, s.Products().Save(ctx, &models.Product{ID: 1, Name: "Lamp", PriceCents: 10000, Stock: 5}))
	c := &models.Cart{
		UserID:        "u1",
		Status:        models.CartStatusClosed,
		PaymentStatus: models.PaymentStatusPaid,
		PaymentRef:    "pay_1",
		Items:         []models.LineItem{{ProductID: 1, Quantity: 2}},
	}
	require.NoError(t, s.Carts().Create(ctx, c))
	return s, c
}

func TestIssue_StampsAndStoresDocument(t *testing.T) {
	s, c := seedPaidCart(t)
	tax := &fakeTaxService{}
	docs := &fakeDocStore{url: "https://docs.example.com/invoices/inv_1.pdf"}
	issuer := NewIssuer(s, tax, docs, "A")

	res, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "inv_1", res.InvoiceID)
	assert.Equal(t, docs.url, res.DocumentURL)

	// Recorded on the cart for repeat reads.
	saved, err := s.Carts().FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "inv_1", saved.InvoiceID)
	assert.Equal(t, docs.url, saved.InvoiceURL)

	// Temp file was cleaned up after the upload.
	require.Len(t, docs.paths, 1)
	_, statErr := os.Stat(docs.paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestIssue_PayloadNumbers(t *testing.T) {
	s, c := seedPaidCart(t)
	tax := &fakeTaxService{}
	issuer := NewIssuer(s, tax, &fakeDocStore{url: "u"}, "A")

	_, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)

	require.Len(t, tax.created, 1)
	payload := tax.created[0]
	assert.Equal(t, "cus_7", payload.CustomerID)
	assert.Equal(t, "ABCD860315XXX", payload.CustomerTax)
	assert.Equal(t, PaymentFormSingle, payload.PaymentForm)
	assert.Equal(t, "A", payload.Series)
	assert.Equal(t, int64(1), payload.Folio)

	// 100.00 tax-inclusive → 86.21 exclusive, 27.59 IVA for two units.
	require.Len(t, payload.Lines, 1)
	line := payload.Lines[0]
	assert.Equal(t, "Lamp", line.Description)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("86.21")), "unit price %s", line.UnitPrice)
	assert.True(t, line.Tax.Equal(decimal.RequireFromString("27.59")), "tax %s", line.Tax)
}

func TestIssue_GenericTaxIDWhenUserHasNone(t *testing.T) {
	s, c := seedPaidCart(t)
	require.NoError(t, s.Users().Save(context.Background(), &models.User{ID: "u1", Email: "buyer@example.com"}))
	tax := &fakeTaxService{}
	issuer := NewIssuer(s, tax, &fakeDocStore{url: "u"}, "A")

	_, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenericTaxID, tax.created[0].CustomerTax)
}

func TestIssue_FinalizesDrafts(t *testing.T) {
	s, c := seedPaidCart(t)
	tax := &fakeTaxService{createResp: &taxinvoice.Invoice{ID: "inv_draft", Status: taxinvoice.StatusDraft}}
	issuer := NewIssuer(s, tax, &fakeDocStore{url: "u"}, "A")

	res, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "inv_draft", res.InvoiceID)
	assert.Equal(t, []string{"inv_draft"}, tax.finalized)
}

func TestIssue_RepeatReturnsRecordedArtifact(t *testing.T) {
	s, c := seedPaidCart(t)
	tax := &fakeTaxService{}
	issuer := NewIssuer(s, tax, &fakeDocStore{url: "https://docs.example.com/invoices/inv_1.pdf"}, "A")

	first, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)

	second, err := issuer.Issue(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// No second trip to the provider, no second folio.
	assert.Len(t, tax.created, 1)
	folio, err := s.Folios().NextFolio(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), folio)
}

func TestIssue_RejectsOpenCarts(t *testing.T) {
	s, _ := seedPaidCart(t)
	open := &models.Cart{
		UserID:        "u1",
		Status:        models.CartStatusActive,
		PaymentStatus: models.PaymentStatusPending,
		Items:         []models.LineItem{{ProductID: 1, Quantity: 1}},
	}
	require.NoError(t, s.Carts().Create(context.Background(), open))
	issuer := NewIssuer(s, &fakeTaxService{}, &fakeDocStore{url: "u"}, "A")

	_, err := issuer.Issue(context.Background(), open.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestIssue_StepErrors(t *testing.T) {
	cases := []struct {
		name string
		tax  *fakeTaxService
		docs *fakeDocStore
		step Step
	}{
		{
			name: "creation",
			tax:  &fakeTaxService{createErr: errors.New("bad request")},
			docs: &fakeDocStore{url: "u"},
			step: StepCreate,
		},
		{
			name: "finalization",
			tax: &fakeTaxService{
				createResp:  &taxinvoice.Invoice{ID: "inv_1", Status: taxinvoice.StatusDraft},
				finalizeErr: errors.New("stamping rejected"),
			},
			docs: &fakeDocStore{url: "u"},
			step: StepFinalize,
		},
		{
			name: "download",
			tax:  &fakeTaxService{downloadErr: errors.New("render timeout")},
			docs: &fakeDocStore{url: "u"},
			step: StepDownload,
		},
		{
			name: "upload",
			tax:  &fakeTaxService{},
			docs: &fakeDocStore{err: errors.New("storage unavailable")},
			step: StepUpload,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, c := seedPaidCart(t)
			issuer := NewIssuer(s, tc.tax, tc.docs, "A")

			_, err := issuer.Issue(context.Background(), c.ID)
			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tc.step, genErr.Step)

			// Nothing recorded, so the cart stays invoiceable.
			saved, ferr := s.Carts().FindByID(context.Background(), c.ID)
			require.NoError(t, ferr)
			assert.Empty(t, saved.InvoiceID)
		})
	}
}

func TestIssue_TempFileRemovedOnUploadFailure(t *testing.T) {
	s, c := seedPaidCart(t)
	docs := &fakeDocStore{err: errors.New("storage unavailable")}
	issuer := NewIssuer(s, &fakeTaxService{}, docs, "A")

	_, err := issuer.Issue(context.Background(), c.ID)
	require.Error(t, err)

	require.Len(t, docs.paths, 1)
	_, statErr := os.Stat(docs.paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

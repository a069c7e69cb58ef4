// Package taxinvoice is the adapter for the tax-invoicing provider
// (CFDI-style: invoices are created, stamped, and rendered as PDF).
package taxinvoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusStamped Status = "stamped"
)

// Line is one invoice position. UnitPrice is tax-exclusive; Tax is the per
// line IVA amount. Both are derived from the stored tax-inclusive price.
type Line struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Tax         decimal.Decimal `json:"tax"`
}

// Payload carries everything the provider needs to create an invoice.
type Payload struct {
	CustomerID  string `json:"customer_id"`
	CustomerTax string `json:"customer_tax_id"`
	Lines       []Line `json:"items"`
	PaymentForm string `json:"payment_form"`
	Series      string `json:"series"`
	Folio       int64  `json:"folio"`
}

type Invoice struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

type Service interface {
	CreateInvoice(ctx context.Context, payload Payload) (*Invoice, error)
	// Finalize promotes a draft invoice and requests stamping.
	Finalize(ctx context.Context, id string) (*Invoice, error)
	// DownloadDocument streams the rendered PDF. The caller closes it.
	DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error)
}

type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		APIURL:  os.Getenv("TAXINVOICE_API_URL"),
		APIKey:  os.Getenv("TAXINVOICE_API_KEY"),
		Timeout: 30 * time.Second,
	}
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return Config{}, errors.New("tax invoicing configuration missing")
	}
	return cfg, nil
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) CreateInvoice(ctx context.Context, payload Payload) (*Invoice, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode invoice payload: %w", err)
	}
	return c.postInvoice(ctx, c.cfg.APIURL+"/v2/invoices", bytes.NewBuffer(body))
}

func (c *Client) Finalize(ctx context.Context, id string) (*Invoice, error) {
	return c.postInvoice(ctx, c.cfg.APIURL+"/v2/invoices/"+id+"/stamp", nil)
}

func (c *Client) postInvoice(ctx context.Context, url string, body io.Reader) (*Invoice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("build invoicing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach tax invoicing service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tax invoicing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("tax invoicing service error (%d): %s", resp.StatusCode, raw)
	}

	var invoice Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("parse tax invoicing response: %w", err)
	}
	if invoice.ID == "" {
		return nil, fmt.Errorf("tax invoicing service returned no invoice id")
	}
	return &invoice, nil
}

func (c *Client) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"/v2/invoices/"+id+"/pdf", nil)
	if err != nil {
		return nil, fmt.Errorf("build invoice download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach tax invoicing service: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tax invoicing service error (%d): %s", resp.StatusCode, raw)
	}
	return resp.Body, nil
}

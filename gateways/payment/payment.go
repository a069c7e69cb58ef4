// Package payment is the gateway adapter for payment authorization.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrStatusUnknown marks an ambiguous outcome: the gateway may or may not
// have captured the charge. Callers must not retry with a new key.
var ErrStatusUnknown = errors.New("payment gateway did not answer in time, charge status unknown")

// Authorization is the gateway's answer to a charge attempt.
type Authorization struct {
	PaymentID string `json:"id"`
	Status    Status `json:"status"`
}

type Gateway interface {
	// Authorize charges amountCents under idempotencyKey. Re-sending the
	// same key never creates a second charge.
	Authorize(ctx context.Context, amountCents int64, currency, paymentMethodID, idempotencyKey string) (*Authorization, error)
}

type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// FromEnv reads the gateway configuration the way the rest of the app does.
func FromEnv() (Config, error) {
	cfg := Config{
		APIURL:  os.Getenv("PAYMENT_API_URL"),
		APIKey:  os.Getenv("PAYMENT_API_KEY"),
		Timeout: 10 * time.Second,
	}
	if raw := os.Getenv("PAYMENT_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PAYMENT_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return Config{}, errors.New("payment gateway configuration missing")
	}
	return cfg, nil
}

// Client talks to the gateway over HTTPS. Calls go through a circuit
// breaker so a dead gateway fails fast instead of stalling every checkout.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Authorization]
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*Authorization](gobreaker.Settings{
			Name: "payment-gateway",
		}),
	}
}

type chargeRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Authorize(ctx context.Context, amountCents int64, currency, paymentMethodID, idempotencyKey string) (*Authorization, error) {
	auth, err := c.breaker.Execute(func() (*Authorization, error) {
		return c.authorize(ctx, amountCents, currency, paymentMethodID, idempotencyKey)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Breaker rejected the call before anything was sent, so no
			// charge can exist. Safe to report as a plain failure.
			return nil, fmt.Errorf("payment gateway unavailable: %w", err)
		}
		return nil, err
	}
	return auth, nil
}

func (c *Client) authorize(ctx context.Context, amountCents int64, currency, paymentMethodID, idempotencyKey string) (*Authorization, error) {
	payload := chargeRequest{
		Amount:         decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)).StringFixed(2),
		Currency:       currency,
		PaymentMethod:  paymentMethodID,
		IdempotencyKey: idempotencyKey,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v1/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrStatusUnknown, err)
		}
		return nil, fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrStatusUnknown, err)
		}
		return nil, fmt.Errorf("read payment gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("payment gateway error (%d): %s", resp.StatusCode, raw)
	}

	var parsed chargeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse payment gateway response: %w", err)
	}
	if parsed.Error != nil {
		return &Authorization{PaymentID: parsed.ID, Status: StatusFailed}, nil
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("payment gateway returned no payment id")
	}
	return &Authorization{PaymentID: parsed.ID, Status: parsed.Status}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Package mail sends transactional email through the mail provider's HTTP
// API. Sending is best-effort: the checkout saga logs failures and moves on.
package mail

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
)

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	APIURL    string
	APIKey    string
	SecretKey string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		APIURL:    os.Getenv("MAIL_API_URL"),
		APIKey:    os.Getenv("MAIL_API_KEY"),
		SecretKey: os.Getenv("MAIL_SECRET_KEY"),
		FromEmail: os.Getenv("MAIL_FROM_EMAIL"),
		FromName:  os.Getenv("MAIL_FROM_NAME"),
		Timeout:   15 * time.Second,
	}
	if cfg.APIURL == "" || cfg.APIKey == "" || cfg.FromEmail == "" {
		return Config{}, errors.New("mail configuration missing")
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

type address struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type message struct {
	From     address   `json:"From"`
	To       []address `json:"To"`
	Subject  string    `json:"Subject"`
	TextPart string    `json:"TextPart"`
}

func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload := map[string]any{
		"Messages": []message{{
			From:     address{Email: c.cfg.FromEmail, Name: c.cfg.FromName},
			To:       []address{{Email: to}},
			Subject:  subject,
			TextPart: body,
		}},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewBuffer(raw))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach mail sender: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail sender error (%d): %s", resp.StatusCode, msg)
	}
	return nil
}

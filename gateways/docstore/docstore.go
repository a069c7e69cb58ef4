// Package docstore uploads rendered invoice documents to the external
// document store and hands back a public URL.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type Store interface {
	// Upload pushes the file at path into folder and returns its public URL.
	Upload(ctx context.Context, path, folder string) (string, error)
}

type Config struct {
	UploadURL string
	APIKey    string
	Timeout   time.Duration
}

func FromEnv() (Config, error) {
	cfg := Config{
		UploadURL: os.Getenv("DOCSTORE_UPLOAD_URL"),
		APIKey:    os.Getenv("DOCSTORE_API_KEY"),
		Timeout:   60 * time.Second,
	}
	if cfg.UploadURL == "" || cfg.APIKey == "" {
		return Config{}, errors.New("document store configuration missing")
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

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Upload(ctx context.Context, path, folder string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	if err := writer.WriteField("folder", folder); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach document store: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read document store response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document store error (%d): %s", resp.StatusCode, raw)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse document store response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("document store rejected upload: %s", parsed.Error.Message)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("document store returned empty URL")
	}
	return parsed.SecureURL, nil
}

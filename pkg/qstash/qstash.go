// Package qstash is a minimal QStash publish client used to push confirmed
// orders to the kitchen webhook.
package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	URL     string        `split_words:"true"`
	Token   string        `split_words:"true"`
	Webhook string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

// Enabled reports whether the deployment configured a QStash endpoint.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Webhook) != ""
}

type Client struct {
	baseURL    string
	token      string
	webhook    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	webhook := strings.TrimSpace(cfg.Webhook)
	if webhook == "" {
		return nil, errors.New("qstash webhook destination is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(cfg.Token),
		webhook: webhook,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues one JSON message for delivery to the configured webhook.
func (c *Client) Publish(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("qstash: marshal payload: %w", err)
	}

	endpoint := c.baseURL + "/v2/publish/" + url.PathEscape(c.webhook)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("qstash: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qstash: publish: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qstash: publish status=%d", resp.StatusCode)
	}
	return nil
}

// NotifyConfirmed implements the order notifier contract: one message per
// confirmed order, keyed by order id.
func (c *Client) NotifyConfirmed(ctx context.Context, orderID string, payload map[string]any) error {
	msg := map[string]any{
		"event":    "order_confirmed",
		"order_id": orderID,
		"payload":  payload,
	}
	return c.Publish(ctx, msg)
}

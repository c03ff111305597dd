// Package push is the HTTP client for the push-notification provider. It
// exposes the two operations this service needs: a per-device subscription
// lookup and a batched send.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

const (
	defaultTimeout = 10 * time.Second
	sendPath       = "/v1/messages"
	devicePath     = "/v1/devices/"
)

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client talks to the push provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a provider client. apiKey may be empty in development; the
// provider rejects unauthenticated sends with a 401 which surfaces in the
// dispatch summary.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// deviceResponse is the subscription-status lookup body.
type deviceResponse struct {
	Token      string `json:"token"`
	Subscribed bool   `json:"subscribed"`
}

// IsSubscribed checks whether a device is still subscribed at the OS level.
// An unknown device counts as unsubscribed.
func (c *Client) IsSubscribed(ctx context.Context, token string) (bool, error) {
	endpoint := c.baseURL + devicePath + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build device request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("device lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("device lookup: unexpected status %d", resp.StatusCode)
	}

	var device deviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&device); err != nil {
		return false, fmt.Errorf("decode device response: %w", err)
	}
	return device.Subscribed, nil
}

// sendRequest is the batched send body.
type sendRequest struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// sendResponse reports per-batch delivery counts.
type sendResponse struct {
	Accepted int `json:"accepted"`
	Failed   int `json:"failed"`
}

// SendBatch delivers one message to a batch of device tokens and returns the
// provider's accepted/failed counts.
func (c *Client) SendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, int, error) {
	payload, err := json.Marshal(sendRequest{
		Tokens: tokens,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return 0, 0, fmt.Errorf("send batch: unexpected status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, 0, fmt.Errorf("decode send response: %w", err)
	}
	return result.Accepted, result.Failed, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

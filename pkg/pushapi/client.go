package pushapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/repository"
)

var (
	_ repository.TokenStore   = (*Client)(nil)
	_ repository.ReceiptStore = (*Client)(nil)
)

// TokenSource returns the bearer token to act as userID
type TokenSource func(userID string) (string, error)

// Client talks to the push API on behalf of a device. Failures come back as
// repository.StoreError so retry logic can tell transient from permanent ones.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

// New creates a client for the API at baseURL (e.g. "http://localhost:8080")
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// Upsert registers token for userID
func (c *Client) Upsert(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error {
	body := map[string]string{"token": token, "platform": string(platform)}
	return c.do(ctx, "upsert device token", http.MethodPost, "/api/push/tokens", userID, body)
}

// Delete removes (userID, token)
func (c *Client) Delete(ctx context.Context, userID, token string) error {
	return c.do(ctx, "delete device token", http.MethodDelete, "/api/push/tokens/"+url.PathEscape(token), userID, nil)
}

// MarkRead records a read receipt; the server stamps the time
func (c *Client) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	return c.do(ctx, "mark notification read", http.MethodPost, "/api/push/notifications/"+url.PathEscape(notificationID)+"/read", userID, nil)
}

func (c *Client) do(ctx context.Context, op, method, path, userID string, body any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return repository.NewStoreError(repository.KindFatal, op, fmt.Errorf("encode request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return repository.NewStoreError(repository.KindFatal, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		bearer, err := c.tokens(userID)
		if err != nil {
			return repository.NewStoreError(repository.KindFatal, op, fmt.Errorf("access token for %s: %w", userID, err))
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return repository.NewStoreError(repository.KindTransient, op, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return statusError(op, resp.StatusCode, respBody)
}

// StatusError is a non-2xx answer from the API
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Status, e.Message)
}

func statusError(op string, status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	err := &StatusError{Status: status, Message: msg}

	switch {
	case payload.Kind == repository.KindFatal.String():
		// the server's store refused the write; a retry would fail the same way
		return repository.NewStoreError(repository.KindFatal, op, err)
	case status == http.StatusNotFound:
		return repository.ErrNotFound
	case status == http.StatusConflict:
		return repository.NewStoreError(repository.KindConflict, op, err)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return repository.NewStoreError(repository.KindTransient, op, err)
	default:
		return repository.NewStoreError(repository.KindFatal, op, err)
	}
}

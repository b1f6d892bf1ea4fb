// Package buildsvc is the HTTP client for the external build service, the
// process that compiles and packages game source into a playable bundle. The
// service itself is opaque to this codebase.
package buildsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gameforge/backend/pkg/gamelang"
)

// SecretHeader carries the shared secret on dispatch and webhook calls.
const SecretHeader = "X-Build-Secret"

// ErrNotConfigured is returned when the service URL or secret is missing.
// The orchestrator treats this as a startup error: builds fail closed rather
// than reporting optimistic success.
var ErrNotConfigured = errors.New("build service is not configured")

// Client dispatches build requests to the build service.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client

	attempts int
	backoff  time.Duration
}

// NewClient validates configuration and returns a dispatch client. Dispatch
// retries up to three times with exponential backoff before giving up.
func NewClient(baseURL, secret string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(secret) == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		attempts:   3,
		backoff:    500 * time.Millisecond,
	}, nil
}

// BuildRequest is the dispatch payload.
type BuildRequest struct {
	BuildID       string              `json:"buildId"`
	GameID        string              `json:"gameId"`
	Config        gamelang.GameConfig `json:"config"`
	GeneratedCode *string             `json:"generatedCode"`
	Language      string              `json:"language"`
}

// StatusUpdate is the terminal result the build service reports back on the
// webhook endpoint.
type StatusUpdate struct {
	BuildID    string `json:"buildId"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	BundlePath string `json:"bundlePath,omitempty"`
}

// Dispatch submits a build. A 2xx response means the service accepted the
// job; any non-2xx body is surfaced as failure text. Network errors are
// retried with backoff, then returned to the caller.
func (c *Client) Dispatch(ctx context.Context, req BuildRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal build request: %w", err)
	}

	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		var rejected *RejectedError
		if errors.As(lastErr, &rejected) {
			// The service answered; retrying the same payload will not help.
			return lastErr
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("dispatch failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	endpoint := c.baseURL + "/build"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(SecretHeader, c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call build service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &RejectedError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	return nil
}

// VerifySecret checks the shared secret on an incoming webhook request.
func (c *Client) VerifySecret(r *http.Request) bool {
	return r.Header.Get(SecretHeader) == c.secret
}

// RejectedError is a definitive rejection from the build service, as opposed
// to a transport failure.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("build service rejected request (status %d): %s", e.Status, e.Body)
}

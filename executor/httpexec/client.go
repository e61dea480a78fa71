// Package httpexec implements the offline.Executor interface against a
// document-store REST backend exposing an "events" collection with
// array-union and array-remove participant operations.
package httpexec

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

	offline "github.com/c0deZ3R0/go-offline-kit"
	queueErrors "github.com/c0deZ3R0/go-offline-kit/errors"
)

// Limits defines size limits for HTTP responses.
type Limits struct {
	MaxBodyBytes int64 // Maximum response body size in bytes
}

// Client performs event mutations over HTTP. It carries no offline
// awareness: every call either succeeds or returns a classified error.
type Client struct {
	baseURL string
	http    *http.Client
	limits  Limits
}

var _ offline.Executor = (*Client)(nil)

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) {
		c.http = cl
	}
}

// WithLimits sets the response size limits
func WithLimits(l Limits) ClientOption {
	return func(c *Client) {
		c.limits = l
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// NewClient creates an HTTP executor for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limits: Limits{
			MaxBodyBytes: 1 << 20, // 1MB
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the base URL for the client
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Create stores a new event document and returns its remote identifier.
func (c *Client) Create(ctx context.Context, payload map[string]interface{}) (string, error) {
	body, err := c.do(ctx, queueErrors.OpCreate, http.MethodPost, "/events", payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", queueErrors.NewValidationError(queueErrors.OpCreate, fmt.Errorf("decoding create response: %w", err))
	}
	return created.ID, nil
}

// Join performs an idempotent array-union add of userID into the event's
// participant set.
func (c *Client) Join(ctx context.Context, eventID, userID string) error {
	path := fmt.Sprintf("/events/%s/participants", url.PathEscape(eventID))
	_, err := c.do(ctx, queueErrors.OpJoin, http.MethodPost, path, map[string]interface{}{"user_id": userID})
	return err
}

// Leave performs an idempotent array-remove of userID from the event's
// participant set.
func (c *Client) Leave(ctx context.Context, eventID, userID string) error {
	path := fmt.Sprintf("/events/%s/participants/%s", url.PathEscape(eventID), url.PathEscape(userID))
	_, err := c.do(ctx, queueErrors.OpLeave, http.MethodDelete, path, nil)
	return err
}

// Update merges the given fields into the existing remote document.
func (c *Client) Update(ctx context.Context, eventID string, payload map[string]interface{}) error {
	path := fmt.Sprintf("/events/%s", url.PathEscape(eventID))
	_, err := c.do(ctx, queueErrors.OpUpdate, http.MethodPatch, path, payload)
	return err
}

// Delete removes the remote document. A 404 surfaces as a NOT_FOUND error;
// the queue treats that as success when replaying a queued delete.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/events/%s", url.PathEscape(eventID))
	_, err := c.do(ctx, queueErrors.OpDelete, http.MethodDelete, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, op queueErrors.Operation, method, path string, payload map[string]interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, queueErrors.NewValidationError(op, fmt.Errorf("encoding payload: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, queueErrors.NewValidationError(op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, queueErrors.Classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.limits.MaxBodyBytes))
	if err != nil {
		return nil, queueErrors.Classify(op, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	return nil, statusError(op, resp.StatusCode, body)
}

// statusError maps an HTTP status to the queue's error taxonomy. Network
// unreachability, timeouts and backend unavailability are transient;
// authorization, validation and not-found conditions are terminal.
func statusError(op queueErrors.Operation, status int, body []byte) error {
	cause := fmt.Errorf("backend returned %d: %s", status, truncate(body, 256))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return queueErrors.NewPermissionError(op, cause)
	case status == http.StatusNotFound:
		return queueErrors.NewNotFoundError(op, cause)
	case status == http.StatusRequestTimeout:
		return queueErrors.NewTimeout(op, cause)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return queueErrors.NewUnavailable(op, cause)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return queueErrors.NewValidationError(op, cause)
	default:
		return queueErrors.New(op, cause)
	}
}

func truncate(body []byte, max int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

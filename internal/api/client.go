// Package api implements the JSON-over-HTTP client for the Vibing u backend.
// All network I/O of the application goes through this package; callers own
// retry and optimistic-state handling.
package api

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
)

// DefaultSubmitTimeout bounds a feed submission. Backend classification can
// involve multi-stage AI calls, so the bound is generous.
const DefaultSubmitTimeout = 3 * time.Minute

// ErrTimeout marks a request aborted by the client-side submission timeout.
var ErrTimeout = errors.New("request timed out")

// StatusError is returned for non-2xx responses, carrying the status code
// and any server-provided detail message.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Detail)
}

// Client talks to the backend API. A bearer token is attached when present;
// an empty token is tolerated and treated as anonymous by all endpoints.
type Client struct {
	BaseURL       string
	Token         string
	SubmitTimeout time.Duration

	client *http.Client
	// streamClient has no overall timeout: it serves the long-lived chat
	// stream and the multipart submit, both bounded by context instead.
	streamClient *http.Client
}

// New returns a Client for baseURL with a 30s timeout on plain JSON calls.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Token:         token,
		SubmitTimeout: DefaultSubmitTimeout,
		client:        &http.Client{Timeout: 30 * time.Second},
		streamClient:  &http.Client{},
	}
}

// doJSON executes an HTTP request against path, marshalling body as JSON and
// unmarshalling the response into out. Pass nil body for GET requests and
// nil out to discard the response. Non-2xx statuses return a *StatusError.
func (c *Client) doJSON(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("api: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}
	return nil
}

// newJSONRequest builds a request with a JSON-encoded body.
func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// setAuth attaches the bearer token when one is configured.
func (c *Client) setAuth(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// readStatusError builds a *StatusError from a non-2xx response, preferring
// the server's JSON detail field over a raw body snippet.
func readStatusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(snippet, &payload); err == nil && payload.Detail != "" {
		return &StatusError{Code: resp.StatusCode, Detail: payload.Detail}
	}
	return &StatusError{Code: resp.StatusCode, Detail: string(bytes.TrimSpace(snippet))}
}

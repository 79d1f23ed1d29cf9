package api

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
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.brandflow.dev/v1"
	maxRetries     = 3
	retryDelay     = time.Second
)

// ErrEmptyResult marks a service "error" that really means an empty result
// set ("not found", "No recommendations"). Callers translate it into an
// empty value instead of surfacing an alarm.
var ErrEmptyResult = errors.New("empty result")

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client handles communication with the recommendation service
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPClient
}

// ClientOption allows configuring the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// NewClient creates a new recommendation service client
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		token = os.Getenv("BRANDFLOW_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("BRANDFLOW_TOKEN environment variable not set")
	}

	client := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// doRequest performs an HTTP request with retry logic. Server errors and
// rate limits are retried with increasing delay; client errors are not.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay * time.Duration(attempt))
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			retryAfter := resp.Header.Get("Retry-After")
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				time.Sleep(time.Duration(seconds) * time.Second)
			} else {
				time.Sleep(retryDelay * time.Duration(attempt+1))
			}
			lastErr = fmt.Errorf("rate limited: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// call issues one service request and decodes the {success, data, error}
// envelope. A success=false response with a benign empty-result message is
// returned as ErrEmptyResult; out may be nil for calls without a payload.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API request failed: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.Success {
		if IsEmptyResultMessage(env.Error) {
			return fmt.Errorf("%s: %w", env.Error, ErrEmptyResult)
		}
		if env.Error == "" {
			return fmt.Errorf("API request failed: %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// IsEmptyResultMessage reports whether a service error string describes a
// benign empty state rather than a real failure.
func IsEmptyResultMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no recommendations")
}

// IsEmptyResult reports whether err (from any layer, including mocked
// services in tests) represents an empty result rather than a failure.
func IsEmptyResult(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrEmptyResult) || IsEmptyResultMessage(err.Error())
}

// IsTimeout reports whether err looks like a network or context timeout.
// Bulk operations use this to decide whether a follow-up fetch is worth
// attempting before giving up on partial progress.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// Package api provides the JSON HTTP client consumed by the sync engine
// and by module actions fetching platform data (projects, meetings,
// notifications).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/retry"
)

// Client is a thin JSON client over net/http with transient-failure
// retries. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	policy  retry.Policy
}

// NewClient creates a client for baseURL. A zero timeout selects 30s; a
// zero policy selects a bounded immediate-ish default (3 retries,
// exponential from 250ms).
func NewClient(baseURL string, timeout time.Duration, policy retry.Policy) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy.Initial == 0 {
		policy = retry.NewPolicy(retry.BackoffExponential, 250*time.Millisecond, 5*time.Second, 3)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
	}
}

// Get issues a GET request and returns the raw JSON response body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "marshal request body").Build()
		}
	}

	url := c.baseURL + path
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt)
			slog.Debug("retrying request", "method", method, "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ferrors.WrapError(ctx.Err(), ferrors.CategoryNetwork, "request canceled").Build()
			}
		}

		raw, retryable, err := c.attempt(ctx, method, url, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable || c.policy.Exhausted(attempt+1) || ctx.Err() != nil {
			return nil, lastErr
		}
	}
}

// attempt runs one HTTP exchange. The bool reports whether the failure is
// worth retrying (network errors and 5xx; never 4xx).
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) (json.RawMessage, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, ferrors.WrapError(err, ferrors.CategoryNetwork, "build request").Build()
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, ferrors.WrapError(err, ferrors.CategoryNetwork, "request failed").
			WithContext("method", method).
			WithContext("url", url).
			Build()
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, true, ferrors.WrapError(err, ferrors.CategoryNetwork, "read response body").Build()
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, false, nil
	case resp.StatusCode >= 500:
		return nil, true, ferrors.NetworkError(fmt.Sprintf("server error %d", resp.StatusCode)).
			WithContext("url", url).
			Build()
	default:
		return nil, false, ferrors.NetworkError(fmt.Sprintf("request rejected with status %d", resp.StatusCode)).
			WithContext("url", url).
			WithContext("body", string(raw)).
			WithRetry(ferrors.RetryNever).
			Build()
	}
}

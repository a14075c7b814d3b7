// Package api is the request pipeline every feature client calls. It wraps
// the credential transport, detects session expiry, coordinates refresh,
// retries exactly once, and classifies terminal failure. This is the only
// place in the codebase that interprets a 401.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/notify"
	"github.com/fittedhq/fitted-go/internal/refresh"
	"github.com/fittedhq/fitted-go/internal/transport"
)

// maxRetries is the per-request retry budget. One refresh-triggered retry
// per original request; a second 401 is terminal, never looped.
const maxRetries = 1

// Client is the façade used by all feature code
type Client struct {
	transport *transport.Transport
	refresher *refresh.Coordinator
	notifier  *notify.AuthFailureNotifier
}

// NewClient wires the pipeline out of its collaborators
func NewClient(t *transport.Transport, r *refresh.Coordinator, n *notify.AuthFailureNotifier) *Client {
	return &Client{transport: t, refresher: r, notifier: n}
}

// Get issues a GET and returns the response body
func (c *Client) Get(ctx context.Context, path string, opts transport.Options) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", opts, 0)
}

// Post issues a POST with a JSON-encoded payload. A nil payload sends no body.
func (c *Client) Post(ctx context.Context, path string, payload any, opts transport.Options) ([]byte, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, body, "", opts, 0)
}

// Put issues a PUT with a JSON-encoded payload
func (c *Client) Put(ctx context.Context, path string, payload any, opts transport.Options) ([]byte, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, path, body, "", opts, 0)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string, opts transport.Options) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil, "", opts, 0)
}

// PostForm issues a POST with a prebuilt multipart body. The body is a
// byte slice rather than a reader so a refresh-triggered retry can re-send
// it unchanged.
func (c *Client) PostForm(ctx context.Context, path string, body []byte, contentType string, opts transport.Options) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body, contentType, opts, 0)
}

// PutForm issues a PUT with a prebuilt multipart body
func (c *Client) PutForm(ctx context.Context, path string, body []byte, contentType string, opts transport.Options) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, body, contentType, opts, 0)
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return body, nil
}

// do runs one request through the pipeline. retryCount tracks how many
// refresh-triggered re-issues this original request has already consumed.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, opts transport.Options, retryCount int) ([]byte, error) {
	resp, err := c.transport.Do(ctx, method, path, body, contentType, opts)
	if err != nil {
		// Network-level failure: never refresh, never notify
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.SkipAuthHandling {
		if !opts.SkipRetry && retryCount < maxRetries {
			if refreshErr := c.refresher.EnsureRefreshed(ctx); refreshErr != nil {
				c.failSession(opts)
				return nil, fmt.Errorf("%w: %v", ErrSessionExpired, refreshErr)
			}

			log.LogDebugWithFields("api", "Retrying request after refresh", map[string]any{
				"method": method,
				"path":   path,
			})
			return c.do(ctx, method, path, body, contentType, opts, retryCount+1)
		}

		// Either the retried request got a second 401 or retry was
		// disabled; the session is unrecoverable as far as this request
		// is concerned.
		c.failSession(opts)
		return nil, ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp)
	}

	return resp.Body, nil
}

func (c *Client) failSession(opts transport.Options) {
	if opts.SuppressFailureNotify {
		return
	}
	c.notifier.Notify()
}

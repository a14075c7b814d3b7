// Package transport issues individual HTTP requests against the Fitted
// backend. Session credentials are ambient cookie state carried by the
// client's jar; nothing in this package (or above it) ever reads or parses
// a token, only response status codes.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/google/uuid"
)

// maxBodyBytes bounds how much of a response is read into memory
const maxBodyBytes = 10 << 20

// Options control how the request pipeline treats a single request.
// They ride along with the transport call so the pipeline doesn't need a
// parallel bookkeeping structure.
type Options struct {
	// Headers are merged over the transport's default headers
	Headers map[string]string

	// SkipAuthHandling disables 401 interception entirely: the status
	// propagates as an ordinary request failure. Used by login/signup,
	// where a 401 means bad credentials, not an expired session.
	SkipAuthHandling bool

	// SkipRetry disables the refresh-and-retry cycle on 401
	SkipRetry bool

	// SuppressFailureNotify keeps a terminal auth failure from reaching the
	// session-failure notifier. The startup "who am I" probe sets this: a
	// 401 there is ordinary not-logged-in state, not worth alarming anyone.
	SuppressFailureNotify bool
}

// Response is the raw outcome of a single HTTP exchange
type Response struct {
	StatusCode int
	Body       []byte
}

// NetworkError marks transport-level failures (DNS, connection refused,
// timeout). These are never session expiry and must never trigger refresh.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error reaching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a transport-level failure
func IsNetworkError(err error) bool {
	var networkErr *NetworkError
	return errors.As(err, &networkErr)
}

// Jar is the cookie store the transport binds to its HTTP client. Clear
// drops all ambient credentials, the client-side half of a sign-out.
type Jar interface {
	http.CookieJar
	Clear() error
}

// Transport sends requests to one backend, attaching ambient cookies and
// disabling response caching on every call.
type Transport struct {
	baseURL *url.URL
	client  *http.Client
	jar     Jar
}

// New creates a Transport bound to baseURL with the given cookie jar
func New(baseURL string, timeout time.Duration, jar Jar) (*Transport, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	return &Transport{
		baseURL: parsed,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		jar: jar,
	}, nil
}

// BaseURL returns the backend base URL the transport is bound to
func (t *Transport) BaseURL() *url.URL {
	return t.baseURL
}

// ClearCredentials drops every ambient cookie from the jar
func (t *Transport) ClearCredentials() error {
	return t.jar.Clear()
}

// Do sends one request and returns the raw response. A non-2xx status is
// not an error at this layer; only failures to complete the exchange are.
// contentType applies when body is non-nil and defaults to application/json.
func (t *Transport) Do(ctx context.Context, method, path string, body []byte, contentType string, opts Options) (*Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	target := t.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	// Auth responses must never come from a cache
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("X-Request-ID", uuid.NewString())

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}
		log.LogWarnWithFields("transport", "Request failed at network level", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return nil, &NetworkError{URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{URL: target.String(), Err: err}
	}

	log.LogTraceWithFields("transport", "Request completed", map[string]any{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"bytes":  len(data),
	})

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Package refresh owns session renewal. Its one job is the single-flight
// guarantee: no matter how many requests fault on an expired session at the
// same time, at most one renewal call is ever outstanding, and every waiter
// observes that call's outcome.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/transport"
	"golang.org/x/sync/singleflight"
)

// ErrRefreshRejected is returned when the backend refuses to renew the
// session. There is no retry-of-retry: the session is terminal.
var ErrRefreshRejected = errors.New("session refresh rejected")

// refreshKey is the singleflight key; renewal is process-wide, so there is
// exactly one.
const refreshKey = "refresh"

// DefaultTimeout bounds the renewal call so a hung refresh cannot wedge
// the single-flight slot forever.
const DefaultTimeout = 10 * time.Second

// Coordinator coalesces concurrent renewal attempts into one HTTP call
type Coordinator struct {
	transport *transport.Transport
	path      string
	timeout   time.Duration
	group     singleflight.Group
}

// NewCoordinator creates a coordinator posting to the given refresh path.
// A timeout of 0 means DefaultTimeout.
func NewCoordinator(t *transport.Transport, path string, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{transport: t, path: path, timeout: timeout}
}

// EnsureRefreshed renews the session, returning nil once the backend has
// accepted the renewal. Callers that arrive while a renewal is in flight
// wait for that same call and receive its outcome; the slot clears as soon
// as the call settles, so the next expiry starts a fresh renewal.
func (c *Coordinator) EnsureRefreshed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, shared := c.group.Do(refreshKey, func() (any, error) {
		// The renewal outcome is shared by every waiter, so it must not be
		// canceled by whichever caller happened to start it. Bounded by
		// c.timeout instead.
		callCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		resp, err := c.transport.Do(callCtx, http.MethodPost, c.path, nil, "", transport.Options{})
		if err != nil {
			log.LogWarnWithFields("refresh", "Session refresh failed", map[string]any{
				"error": err.Error(),
			})
			return nil, fmt.Errorf("refresh request: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.LogWarnWithFields("refresh", "Session refresh rejected", map[string]any{
				"status": resp.StatusCode,
			})
			return nil, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
		}

		log.LogDebugWithFields("refresh", "Session refreshed", nil)
		return nil, nil
	})

	if shared {
		log.LogTraceWithFields("refresh", "Joined in-flight refresh", map[string]any{
			"succeeded": err == nil,
		})
	}

	return err
}

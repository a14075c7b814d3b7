// Package notify broadcasts terminal session failures. The request pipeline
// is the only producer; anything that needs to react to "the session is
// unrecoverable" subscribes here instead of inspecting individual request
// errors.
package notify

import (
	"sync"

	"github.com/fittedhq/fitted-go/internal/log"
)

// AuthFailureNotifier fans a session-failure event out to its subscribers.
// Handlers run synchronously on the goroutine that calls Notify, so they
// must not block on further authenticated requests.
type AuthFailureNotifier struct {
	mu       sync.Mutex
	handlers []func()
}

// NewAuthFailureNotifier creates a notifier with no subscribers
func NewAuthFailureNotifier() *AuthFailureNotifier {
	return &AuthFailureNotifier{}
}

// Subscribe registers a handler invoked on every session failure.
// Safe to call from any goroutine.
func (n *AuthFailureNotifier) Subscribe(handler func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Notify invokes every registered handler once. Handlers are snapshotted
// under the lock and run outside it, so a handler may subscribe or notify
// without deadlocking.
func (n *AuthFailureNotifier) Notify() {
	n.mu.Lock()
	handlers := make([]func(), len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.Unlock()

	log.LogWarnWithFields("notify", "Session failure broadcast", map[string]any{
		"subscribers": len(handlers),
	})

	for _, handler := range handlers {
		handler()
	}
}

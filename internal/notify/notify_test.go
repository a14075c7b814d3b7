package notify

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_InvokesAllSubscribers(t *testing.T) {
	n := NewAuthFailureNotifier()

	var first, second atomic.Int32
	n.Subscribe(func() { first.Add(1) })
	n.Subscribe(func() { second.Add(1) })

	n.Notify()

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestNotifier_NoSubscribers(t *testing.T) {
	n := NewAuthFailureNotifier()
	assert.NotPanics(t, n.Notify)
}

func TestNotifier_ConcurrentNotifyAndSubscribe(t *testing.T) {
	n := NewAuthFailureNotifier()

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n.Subscribe(func() { calls.Add(1) })
		}()
		go func() {
			defer wg.Done()
			n.Notify()
		}()
	}
	wg.Wait()

	n.Notify()
	assert.GreaterOrEqual(t, calls.Load(), int32(10))
}

func TestNotifier_HandlerMaySubscribe(t *testing.T) {
	n := NewAuthFailureNotifier()

	var nested atomic.Bool
	n.Subscribe(func() {
		n.Subscribe(func() { nested.Store(true) })
	})

	assert.NotPanics(t, n.Notify)
	n.Notify()
	assert.True(t, nested.Load())
}

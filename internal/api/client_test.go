package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittedhq/fitted-go/internal/notify"
	"github.com/fittedhq/fitted-go/internal/refresh"
	"github.com/fittedhq/fitted-go/internal/transport"
)

const refreshPath = "/api/v1/auth/refresh"

type testBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	refreshed bool

	refreshCalls atomic.Int32
	dataCalls    atomic.Int32

	// refreshStatus is returned by the refresh endpoint; 0 means 200
	refreshStatus int
}

// newTestBackend fakes the session lifecycle: /data answers 401 until a
// successful /refresh, then 200.
func newTestBackend(t *testing.T) *testBackend {
	t.Helper()

	b := &testBackend{}
	mux := http.NewServeMux()

	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refreshStatus != 0 {
			w.WriteHeader(b.refreshStatus)
			return
		}
		b.mu.Lock()
		b.refreshed = true
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		b.mu.Lock()
		ok := b.refreshed
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"value":"fresh"}`))
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func newTestClient(t *testing.T, serverURL string) (*Client, *atomic.Int32) {
	t.Helper()

	jar, err := transport.NewMemoryJar()
	require.NoError(t, err)
	tr, err := transport.New(serverURL, 5*time.Second, jar)
	require.NoError(t, err)

	notifier := notify.NewAuthFailureNotifier()
	var failures atomic.Int32
	notifier.Subscribe(func() { failures.Add(1) })

	coordinator := refresh.NewCoordinator(tr, refreshPath, 0)
	return NewClient(tr, coordinator, notifier), &failures
}

func TestClient_TransparentRefreshRetry(t *testing.T) {
	backend := newTestBackend(t)
	client, failures := newTestClient(t, backend.server.URL)

	body, err := client.Get(context.Background(), "/data", transport.Options{})
	require.NoError(t, err)

	assert.Equal(t, `{"value":"fresh"}`, string(body))
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, int32(2), backend.dataCalls.Load(), "original request plus one retry")
	assert.Equal(t, int32(0), failures.Load(), "a recovered session is not a failure")
}

func TestClient_ConcurrentExpiriesShareOneRefresh(t *testing.T) {
	backend := newTestBackend(t)
	client, _ := newTestClient(t, backend.server.URL)

	const requests = 8
	var wg sync.WaitGroup
	errs := make([]error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Get(context.Background(), "/data", transport.Options{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), backend.refreshCalls.Load(), "network log shows exactly one refresh")
}

func TestClient_RefreshRejectedIsTerminal(t *testing.T) {
	backend := newTestBackend(t)
	backend.refreshStatus = http.StatusUnauthorized
	client, failures := newTestClient(t, backend.server.URL)

	_, err := client.Get(context.Background(), "/data", transport.Options{})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), failures.Load(), "notifier fires exactly once")
	assert.Equal(t, int32(1), backend.refreshCalls.Load())
}

func TestClient_NoSecondRefreshForSameRequest(t *testing.T) {
	// The backend accepts the refresh but keeps rejecting the data call:
	// the pipeline must stop after one retry rather than loop.
	var refreshCalls, dataCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(refreshPath, func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, failures := newTestClient(t, server.URL)

	_, err := client.Get(context.Background(), "/data", transport.Options{})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(2), dataCalls.Load())
	assert.Equal(t, int32(1), failures.Load())
}

func TestClient_SkipAuthHandling(t *testing.T) {
	backend := newTestBackend(t)
	client, failures := newTestClient(t, backend.server.URL)

	_, err := client.Post(context.Background(), "/data", map[string]string{"k": "v"}, transport.Options{
		SkipAuthHandling: true,
		SkipRetry:        true,
	})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, IsSessionExpired(err))

	assert.Equal(t, int32(0), backend.refreshCalls.Load(), "disabled handling never touches the coordinator")
	assert.Equal(t, int32(0), failures.Load())
}

func TestClient_SuppressFailureNotify(t *testing.T) {
	backend := newTestBackend(t)
	backend.refreshStatus = http.StatusUnauthorized
	client, failures := newTestClient(t, backend.server.URL)

	_, err := client.Get(context.Background(), "/data", transport.Options{SuppressFailureNotify: true})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(0), failures.Load(), "suppressed probe stays silent")
}

func TestClient_ServerMessagePropagates(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json message field", `{"message":"Invalid email or password."}`, "Invalid email or password."},
		{"json error field", `{"error":"validation failed"}`, "validation failed"},
		{"plain text", `Name is required`, "Name is required"},
		{"empty body", ``, "request failed with status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := newTestClient(t, server.URL)

			_, err := client.Get(context.Background(), "/anything", transport.Options{})
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		})
	}
}

func TestClient_NetworkErrorNeverTriggersRefresh(t *testing.T) {
	backend := newTestBackend(t)
	client, failures := newTestClient(t, backend.server.URL)
	backend.server.Close()

	_, err := client.Get(context.Background(), "/data", transport.Options{})
	require.Error(t, err)

	assert.True(t, transport.IsNetworkError(err), "offline must not look like logged out")
	assert.False(t, IsSessionExpired(err))
	assert.Equal(t, int32(0), failures.Load())
}

func TestClient_SuccessPassesBodyThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	body, err := client.Post(context.Background(), "/things", map[string]string{"name": "x"}, transport.Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"42"}`, string(body))
}

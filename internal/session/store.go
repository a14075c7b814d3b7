// Package session holds the process-wide belief about who is logged in and
// the operations that change it. The Store is the only writer of its own
// state; everything else observes snapshots.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fittedhq/fitted-go/internal/api"
	"github.com/fittedhq/fitted-go/internal/config"
	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/notify"
	"github.com/fittedhq/fitted-go/internal/storage"
	"github.com/fittedhq/fitted-go/internal/transport"
)

// DefaultReturnPath is where a login lands when no redirect was pending
const DefaultReturnPath = "/"

// ErrMalformedResponse is returned when login or signup succeeds at the
// HTTP level but the response carries no usable profile.
var ErrMalformedResponse = errors.New("backend returned no user profile")

// Store is the session state machine. Create one per process root and pass
// it down; it is not a package global, so tests can run independent
// instances side by side.
type Store struct {
	mu           sync.Mutex
	state        State
	initializing bool
	listeners    []func(State)

	api              *api.Client
	storage          storage.Store
	endpoints        config.Endpoints
	clearCredentials func() error
}

// Option configures a Store
type Option func(*Store)

// WithCredentialClearer registers a hook that drops ambient credentials
// (the transport's cookie jar) whenever the store signs out locally.
func WithCredentialClearer(clear func() error) Option {
	return func(s *Store) {
		s.clearCredentials = clear
	}
}

// New creates a Store and subscribes it to session-failure broadcasts:
// when the pipeline declares the session unrecoverable, the store forces
// itself to unauthenticated no matter what it was doing.
func New(client *api.Client, st storage.Store, notifier *notify.AuthFailureNotifier, endpoints config.Endpoints, opts ...Option) *Store {
	s := &Store{
		api:       client,
		storage:   st,
		endpoints: endpoints,
	}
	for _, opt := range opts {
		opt(s)
	}

	notifier.Subscribe(s.handleSessionFailure)

	return s
}

// State returns a snapshot. The embedded profile is a copy; mutating it
// does not touch the store.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener invoked with a snapshot after every
// transition. Listeners run outside the store's lock.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// InitializeAuth resolves the startup question "is anyone logged in?".
// It presents the cached profile optimistically, then asks the backend.
// Re-entrant calls while initializing or already initialized are no-ops.
// A 401 here is ordinary not-logged-in state: it resolves quietly to
// unauthenticated without waking the failure notifier.
func (s *Store) InitializeAuth(ctx context.Context) {
	s.mu.Lock()
	if s.state.IsInitialized || s.initializing {
		s.mu.Unlock()
		return
	}
	s.initializing = true
	s.mu.Unlock()

	cached := s.cachedUser()
	s.transition(func(st *State) {
		st.IsLoading = true
		st.Err = ""
		if cached != nil {
			// Optimistic hint only; the backend's answer below is
			// authoritative and will reconcile or evict it.
			st.User = cached
			st.IsAuthenticated = true
		}
	})

	body, err := s.api.Get(ctx, s.endpoints.Me, transport.Options{SuppressFailureNotify: true})
	if err == nil {
		var user User
		if jsonErr := json.Unmarshal(body, &user); jsonErr == nil && user.ID != "" {
			s.persistUser(&user)
			s.finishInitialize(&user)
			return
		}
		err = ErrMalformedResponse
	}

	log.LogDebugWithFields("session", "No active session at startup", map[string]any{
		"reason": err.Error(),
	})
	s.clearUserCache()
	s.finishInitialize(nil)
}

func (s *Store) finishInitialize(user *User) {
	s.mu.Lock()
	s.initializing = false
	s.mu.Unlock()

	s.transition(func(st *State) {
		st.User = user
		st.IsAuthenticated = user != nil
		st.IsLoading = false
		st.IsInitialized = true
		st.Err = ""
	})
}

// Login exchanges credentials for a session and returns the path the UI
// should land on: the pending redirect slot if one was stored, cleared on
// read, else DefaultReturnPath. Auth handling and retry are disabled on
// the wire call; a rejected login must never trigger a refresh attempt.
func (s *Store) Login(ctx context.Context, creds Credentials) (string, error) {
	return s.authenticate(ctx, s.endpoints.Login, creds)
}

// Signup registers an account; the backend signs the new user in, so
// success behaves exactly like a login.
func (s *Store) Signup(ctx context.Context, req SignupRequest) (string, error) {
	return s.authenticate(ctx, s.endpoints.Signup, req)
}

func (s *Store) authenticate(ctx context.Context, path string, payload any) (string, error) {
	s.transition(func(st *State) {
		st.IsLoading = true
		st.Err = ""
	})

	body, err := s.api.Post(ctx, path, payload, transport.Options{
		SkipAuthHandling: true,
		SkipRetry:        true,
	})
	if err != nil {
		s.recordAuthFailure(err)
		return "", err
	}

	var resp authResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil || resp.User == nil || resp.User.ID == "" {
		err := ErrMalformedResponse
		s.recordAuthFailure(err)
		return "", err
	}

	s.persistUser(resp.User)
	s.transition(func(st *State) {
		st.User = resp.User.clone()
		st.IsAuthenticated = true
		st.IsLoading = false
		st.Err = ""
	})

	log.LogInfoWithFields("session", "Authenticated", map[string]any{
		"email": resp.User.Email,
	})

	return s.consumeReturnPath(), nil
}

// recordAuthFailure surfaces the backend's message verbatim. A failed
// login never tears down a session that was already authenticated; it only
// keeps an unauthenticated store unauthenticated.
func (s *Store) recordAuthFailure(err error) {
	s.transition(func(st *State) {
		st.IsLoading = false
		st.Err = err.Error()
		if !st.IsAuthenticated {
			st.User = nil
		}
	})
}

// Logout signs out. The server call is best effort: failures are logged
// and the local transition happens regardless, so sign-out always succeeds
// from the user's perspective. Safe to call when already unauthenticated.
func (s *Store) Logout(ctx context.Context) {
	s.transition(func(st *State) {
		st.IsLoading = true
	})

	if _, err := s.api.Post(ctx, s.endpoints.Logout, nil, transport.Options{
		SkipRetry:             true,
		SuppressFailureNotify: true,
	}); err != nil {
		log.LogWarnWithFields("session", "Server logout failed, signing out locally anyway", map[string]any{
			"error": err.Error(),
		})
	}

	s.clearUserCache()
	if err := s.storage.Delete(storage.ReturnURLKey); err != nil {
		log.LogWarn("Failed to clear pending redirect: %v", err)
	}
	s.dropCredentials()

	s.transition(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.IsLoading = false
		st.Err = ""
	})
}

// ClearError wipes the inline error message without touching anything else
func (s *Store) ClearError() {
	s.transition(func(st *State) {
		st.Err = ""
	})
}

// SetReturnPath stores where to send the user after their next login
func (s *Store) SetReturnPath(path string) error {
	if err := s.storage.Set(storage.ReturnURLKey, []byte(path)); err != nil {
		return fmt.Errorf("storing return path: %w", err)
	}
	return nil
}

// handleSessionFailure is the one transition not driven by a user action:
// the pipeline declared the session unrecoverable. Forces unauthenticated
// from any state, including mid-initialize or mid-logout; transitions are
// whole-state writes, so the last writer wins cleanly.
func (s *Store) handleSessionFailure() {
	log.LogWarnWithFields("session", "Session unrecoverable, signing out", nil)

	s.clearUserCache()
	s.dropCredentials()

	s.transition(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.IsLoading = false
		st.Err = ""
	})
}

// transition applies one whole-state mutation under the lock, then feeds
// the resulting snapshot to listeners outside it.
func (s *Store) transition(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.snapshotLocked()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() State {
	snapshot := s.state
	snapshot.User = s.state.User.clone()
	return snapshot
}

func (s *Store) cachedUser() *User {
	data, ok, err := s.storage.Get(storage.UserKey)
	if err != nil || !ok {
		return nil
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		return nil
	}
	return &user
}

func (s *Store) persistUser(user *User) {
	data, err := json.Marshal(user)
	if err != nil {
		log.LogError("Failed to encode profile cache: %v", err)
		return
	}
	if err := s.storage.Set(storage.UserKey, data); err != nil {
		log.LogWarn("Failed to write profile cache: %v", err)
	}
}

func (s *Store) clearUserCache() {
	if err := s.storage.Delete(storage.UserKey); err != nil {
		log.LogWarn("Failed to clear profile cache: %v", err)
	}
}

func (s *Store) consumeReturnPath() string {
	data, ok, err := s.storage.Get(storage.ReturnURLKey)
	if err != nil || !ok || len(data) == 0 {
		return DefaultReturnPath
	}
	if err := s.storage.Delete(storage.ReturnURLKey); err != nil {
		log.LogWarn("Failed to clear pending redirect: %v", err)
	}
	return string(data)
}

func (s *Store) dropCredentials() {
	if s.clearCredentials == nil {
		return
	}
	if err := s.clearCredentials(); err != nil {
		log.LogWarn("Failed to clear ambient credentials: %v", err)
	}
}

package oauthclient

import (
	"sync"
	"time"
)

// PendingAuthorization records the state of one in-flight OAuth
// authorization-code exchange: the upstream it belongs to, the PKCE
// verifier that must accompany the token request, and when it expires.
type PendingAuthorization struct {
	Upstream     string
	CodeVerifier string
	Issuer       string
	CreatedAt    time.Time
}

// StateStore holds pending authorizations keyed by the OAuth state
// parameter, expiring them after a fixed window. Callers must call Stop
// when done to release the cleanup goroutine.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]PendingAuthorization

	expiry      time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewStateStore creates a state store whose entries expire after expiry (a
// zero value defaults to 10 minutes).
func NewStateStore(expiry time.Duration) *StateStore {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	ss := &StateStore{
		states:      make(map[string]PendingAuthorization),
		expiry:      expiry,
		stopCleanup: make(chan struct{}),
	}
	go ss.cleanupLoop()
	return ss
}

// Put registers a pending authorization under the given state value.
func (ss *StateStore) Put(state string, pending PendingAuthorization) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	pending.CreatedAt = time.Now()
	ss.states[state] = pending
}

// Take retrieves and removes the pending authorization for state, so a
// replayed callback can't reuse it. ok is false if state is unknown or
// expired.
func (ss *StateStore) Take(state string) (PendingAuthorization, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	pending, found := ss.states[state]
	if !found {
		return PendingAuthorization{}, false
	}
	delete(ss.states, state)

	if time.Since(pending.CreatedAt) > ss.expiry {
		return PendingAuthorization{}, false
	}
	return pending, true
}

func (ss *StateStore) cleanupLoop() {
	ticker := time.NewTicker(ss.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ss.purgeExpired()
		case <-ss.stopCleanup:
			return
		}
	}
}

func (ss *StateStore) purgeExpired() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for state, pending := range ss.states {
		if time.Since(pending.CreatedAt) > ss.expiry {
			delete(ss.states, state)
		}
	}
}

// Stop releases the background cleanup goroutine.
func (ss *StateStore) Stop() {
	ss.stopOnce.Do(func() { close(ss.stopCleanup) })
}

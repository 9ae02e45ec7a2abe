package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcpaggregator/internal/errs"
	"mcpaggregator/pkg/logging"
)

// TransportKind identifies which downstream transport a session is bound
// to, used by the session-mismatch check (§4.5): a request carrying a
// known session id must be served by the same transport kind it was
// created under.
type TransportKind string

const (
	TransportStreamableHTTP TransportKind = "streamable-http"
	TransportSSE            TransportKind = "sse"
	TransportStdio          TransportKind = "stdio"
)

// Context is the structured, free-form client context attached to a
// session for templating purposes (project path/name/env, user, node
// version, platform, timestamp, version). It is stored with the session
// state; nothing in the router interprets it.
type Context map[string]string

// State is the persisted shape of a session: everything the Session
// Repository needs to store and a restoration needs to rebuild an
// in-process Session.
type State struct {
	SessionID        string
	Filter           Filter
	EnablePagination bool
	CustomTemplate   string
	Context          Context
	Transport        TransportKind
	CreatedAt        time.Time
	LastAccess       time.Time
}

// Session is the router's in-process view of one downstream conversation.
type Session struct {
	State
	mu sync.Mutex
}

// NewSessionID generates a fresh streamable-HTTP session id per §4.5's
// creation algorithm: "stream-" + a v4 UUID.
func NewSessionID() string {
	return "stream-" + uuid.NewString()
}

// Repository is the external Session Repository collaborator (§6):
// create/get/updateAccess/delete over persisted session state. The
// default implementation is in-process; a file- or remote-backed one can
// be substituted without touching the router.
type Repository interface {
	Create(id string, state State) error
	Get(id string) (State, bool)
	UpdateAccess(id string) error
	Delete(id string) error
	// List returns every stored session; the repository diagnostics use it.
	List() []State
}

// MaxSessions bounds the in-memory repository's session count as a basic
// DoS guard, mirroring the reference aggregator's SessionRegistry limit.
const MaxSessions = 10000

// DefaultIdleTimeout is how long a session may go unaccessed before the
// cleanup loop removes it.
const DefaultIdleTimeout = 30 * time.Minute

// InMemoryRepository is the default Session Repository, backed by a
// mutex-guarded map (a sync.Map was considered; a plain map with one lock
// was preferred because List() and the idle-cleanup sweep both need a
// consistent full-map view, which sync.Map's Range does not provide
// atomically).
type InMemoryRepository struct {
	mu          sync.RWMutex
	sessions    map[string]State
	idleTimeout time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewInMemoryRepository creates a repository and starts its idle-session
// cleanup loop. Callers must call Close when done.
func NewInMemoryRepository(idleTimeout time.Duration) *InMemoryRepository {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	r := &InMemoryRepository{
		sessions:    make(map[string]State),
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *InMemoryRepository) Create(id string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= MaxSessions {
		return fmt.Errorf("session repository at capacity (%d)", MaxSessions)
	}
	if !validSessionID(id) {
		return &errs.InvalidParamsError{Reason: fmt.Sprintf("invalid session id %q", id)}
	}

	now := time.Now()
	state.SessionID = id
	state.CreatedAt = now
	state.LastAccess = now
	r.sessions[id] = state
	return nil
}

func (r *InMemoryRepository) Get(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *InMemoryRepository) UpdateAccess(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return &errs.NotFoundError{Kind: "session", Key: id}
	}
	s.LastAccess = time.Now()
	r.sessions[id] = s
	return nil
}

func (r *InMemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *InMemoryRepository) List() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Close stops the idle-cleanup goroutine.
func (r *InMemoryRepository) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *InMemoryRepository) cleanupLoop() {
	ticker := time.NewTicker(r.idleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.purgeIdle()
		}
	}
}

func (r *InMemoryRepository) purgeIdle() {
	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.LastAccess.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, id := range expired {
		logging.Debug("session", "expired idle session %s", logging.TruncateSessionID(id))
	}
}

// validSessionID rejects empty or implausibly long ids; the repository is
// intentionally permissive about format beyond that, since both
// server-generated ("stream-"+uuid) and client-supplied ids must be
// accepted per the allowClientGeneratedSessionIDs switch.
func validSessionID(id string) bool {
	return id != "" && len(id) <= 256
}

package connmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mcpaggregator/internal/capabilities"
	"mcpaggregator/internal/config"
	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/mcpserver"
	"mcpaggregator/internal/oauthclient"
	"mcpaggregator/pkg/logging"
)

// Manager owns the set of upstream connections. It is process-wide and safe
// for concurrent use.
type Manager struct {
	proxyName string

	mu      sync.RWMutex
	records map[string]*Record

	inFlight singleflight.Group

	tokens      *oauthclient.TokenStore
	states      *oauthclient.StateStore
	discoverer  *oauthclient.Discoverer
	newClient   clientFactory
	restartStop map[string]chan struct{}
}

// New creates a Manager. proxyName is this process's own advertised server
// name, used by the circular-dependency guard.
func New(proxyName string) *Manager {
	return &Manager{
		proxyName:   proxyName,
		records:     make(map[string]*Record),
		tokens:      oauthclient.NewTokenStore(),
		states:      oauthclient.NewStateStore(10 * time.Minute),
		discoverer:  oauthclient.NewDiscoverer(),
		newClient:   defaultClientFactory,
		restartStop: make(map[string]chan struct{}),
	}
}

// CreateAll idempotently (re)initializes every non-disabled upstream in
// configs, closing any previously held transports first. It returns once
// every upstream has reached a terminal status; per-upstream failures are
// recorded on that upstream's Record and never abort the others.
func (m *Manager) CreateAll(ctx context.Context, configs map[string]config.UpstreamConfig) error {
	m.mu.Lock()
	for name, stop := range m.restartStop {
		close(stop)
		delete(m.restartStop, name)
	}
	for _, rec := range m.records {
		if rec.Client != nil {
			_ = rec.Client.Close()
		}
	}
	m.records = make(map[string]*Record)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentLoads)

	for name, cfg := range configs {
		name, cfg := name, cfg
		if cfg.Disabled {
			continue
		}
		cfg.Name = name
		g.Go(func() error {
			if _, err := m.CreateOne(gctx, name, cfg); err != nil {
				logging.Debug("connmgr", "upstream %s did not reach Connected: %v", name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// CreateOne connects a single upstream, deduplicating concurrent callers for
// the same name onto one in-flight attempt.
func (m *Manager) CreateOne(ctx context.Context, name string, cfg config.UpstreamConfig) (Status, error) {
	v, err, _ := m.inFlight.Do(name, func() (interface{}, error) {
		return m.createOneLocked(ctx, name, cfg)
	})
	status, _ := v.(Status)
	return status, err
}

func (m *Manager) createOneLocked(ctx context.Context, name string, cfg config.UpstreamConfig) (Status, error) {
	m.mu.Lock()
	rec, exists := m.records[name]
	if !exists {
		rec = &Record{Name: name, Config: cfg}
		m.records[name] = rec
	} else {
		rec.Config = cfg
		if stop, ok := m.restartStop[name]; ok {
			close(stop)
			delete(m.restartStop, name)
		}
		if rec.Client != nil {
			_ = rec.Client.Close()
			rec.Client = nil
		}
	}
	rec.Status = Connecting
	m.mu.Unlock()

	tokenProvider := mcpserver.TokenProviderFunc(func(_ context.Context) string {
		tok, ok := m.tokens.Get(name)
		if !ok {
			return ""
		}
		return tok.AccessToken
	})

	client, connectErr := m.connectWithRetry(ctx, rec, tokenProvider)

	m.mu.Lock()
	defer m.mu.Unlock()

	var authErr *mcpserver.AuthRequiredError
	switch {
	case connectErr == nil:
		rec.Client = client
		rec.Status = Connected
		rec.LastConnected = time.Now()
		rec.LastError = nil
		rec.consecutiveFailures = 0
		if categories, loggingCap, instructions := client.Capabilities(); categories != nil {
			set := make(capabilities.Set, len(categories))
			for cat, vals := range categories {
				set[capabilities.Category(cat)] = vals
			}
			rec.Capabilities = set
			rec.LoggingCapability = loggingCap
			rec.Instructions = instructions
		}
		if cfg.Local != nil && cfg.Local.RestartOnExit {
			m.watchForExitLocked(rec)
		}
	case errors.As(connectErr, &authErr):
		rec.Status = AwaitingOAuth
		rec.OAuthStartTime = time.Now()
		rec.LastError = connectErr
		rec.AuthorizationURL = m.beginAuthorizationLocked(ctx, rec, authErr)
	default:
		rec.Status = Error
		rec.LastError = connectErr
	}

	return rec.Status, connectErr
}

// Remove closes the upstream's transport and drops its record.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stop, ok := m.restartStop[name]; ok {
		close(stop)
		delete(m.restartStop, name)
	}
	rec, ok := m.records[name]
	if !ok {
		return
	}
	if rec.Client != nil {
		_ = rec.Client.Close()
	}
	delete(m.records, name)
}

// Get returns a snapshot of the named upstream's record.
func (m *Manager) Get(name string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	if !ok {
		return Record{}, false
	}
	return rec.snapshot(), true
}

// All returns a snapshot of every tracked upstream's record.
func (m *Manager) All() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.snapshot())
	}
	return out
}

// TransportNames returns the names of every tracked upstream.
func (m *Manager) TransportNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.records))
	for name := range m.records {
		out = append(out, name)
	}
	return out
}

// ExecuteOn runs op against the named upstream's live client. It fails with
// a NotFoundError if no such upstream exists, or a NotConnectedError if it
// is not currently in the Connected state.
func (m *Manager) ExecuteOn(ctx context.Context, name string, op func(ctx context.Context, client mcpserver.MCPClient) (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.RUnlock()
		return nil, &errs.NotFoundError{Kind: "upstream", Key: name}
	}
	if rec.Status != Connected || rec.Client == nil {
		status := rec.Status
		m.mu.RUnlock()
		return nil, &errs.NotConnectedError{Server: name, Status: string(status)}
	}
	client := rec.Client
	m.mu.RUnlock()

	return op(ctx, client)
}

// Close tears down every tracked upstream and stops any restart watchers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, stop := range m.restartStop {
		close(stop)
		delete(m.restartStop, name)
	}

	var firstErr error
	for _, rec := range m.records {
		if rec.Client == nil {
			continue
		}
		if err := rec.Client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing upstream %s: %w", rec.Name, err)
		}
	}
	m.records = make(map[string]*Record)
	return firstErr
}

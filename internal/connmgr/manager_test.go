package connmgr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/mcpserver"
)

// fakeClient is a network-free mcpserver.MCPClient stub for exercising
// Manager without a real upstream process or HTTP endpoint.
type fakeClient struct {
	initErr    error
	failTimes  int // Initialize fails this many calls before succeeding
	name       string
	closed     bool
	initCalls  int
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	f.initCalls++
	if f.initErr == nil {
		return nil
	}
	if f.failTimes > 0 && f.initCalls > f.failTimes {
		return nil
	}
	return f.initErr
}
func (f *fakeClient) Close() error                          { f.closed = true; return nil }
func (f *fakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error)  { return nil, nil }
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}
func (f *fakeClient) ListResources(ctx context.Context) ([]mcp.Resource, error) { return nil, nil }
func (f *fakeClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{}, nil
}
func (f *fakeClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) { return nil, nil }
func (f *fakeClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{}, nil
}
func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) ServerInfo() (string, string)   { return f.name, "dev" }
func (f *fakeClient) Capabilities() (map[string]map[string]interface{}, interface{}, string) {
	return map[string]map[string]interface{}{"tools": {"listChanged": true}}, nil, ""
}

func newTestManager(t *testing.T, factory clientFactory) *Manager {
	t.Helper()
	m := New("mcpaggregator")
	m.newClient = factory
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerCreateOneSucceeds(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{name: "upstream-a"}, nil
	})

	status, err := m.CreateOne(context.Background(), "a", config.UpstreamConfig{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, Connected, status)

	rec, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, Connected, rec.Status)
	assert.NotNil(t, rec.Capabilities)
}

func TestManagerCreateOneFailsAfterMaxAttempts(t *testing.T) {
	origMax, origDelay := MaxAttempts, InitialDelay
	MaxAttempts = 2
	InitialDelay = time.Millisecond
	t.Cleanup(func() { MaxAttempts, InitialDelay = origMax, origDelay })

	attempts := 0
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		attempts++
		return &fakeClient{initErr: errors.New("connection refused")}, nil
	})

	_, err := m.CreateOne(context.Background(), "b", config.UpstreamConfig{Name: "b"})
	require.Error(t, err)

	var connErr *errs.ConnectionFailedError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, MaxAttempts, attempts)

	rec, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, Error, rec.Status)
}

func TestManagerCreateOneReusesStdioClientAcrossRetries(t *testing.T) {
	origMax, origDelay := MaxAttempts, InitialDelay
	MaxAttempts = 3
	InitialDelay = time.Millisecond
	t.Cleanup(func() { MaxAttempts, InitialDelay = origMax, origDelay })

	factoryCalls := 0
	var spawned *fakeClient
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		factoryCalls++
		spawned = &fakeClient{name: "stdio-up", initErr: errors.New("handshake not ready"), failTimes: 2}
		return spawned, nil
	})

	status, err := m.CreateOne(context.Background(), "stdio-up", config.UpstreamConfig{
		Name: "stdio-up", Type: config.TransportStdio,
	})
	require.NoError(t, err)
	assert.Equal(t, Connected, status)

	// A stdio upstream's subprocess is single-shot: the factory (which would
	// spawn the process) runs once, and the same client instance absorbs
	// every retry's Initialize call until it succeeds.
	assert.Equal(t, 1, factoryCalls)
	assert.Equal(t, 2, spawned.failTimes)
	assert.GreaterOrEqual(t, spawned.initCalls, spawned.failTimes+1)
}

func TestManagerCreateOneRecreatesNonStdioClientEachRetry(t *testing.T) {
	origMax, origDelay := MaxAttempts, InitialDelay
	MaxAttempts = 3
	InitialDelay = time.Millisecond
	t.Cleanup(func() { MaxAttempts, InitialDelay = origMax, origDelay })

	factoryCalls := 0
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		factoryCalls++
		return &fakeClient{initErr: errors.New("dial tcp: refused")}, nil
	})

	_, err := m.CreateOne(context.Background(), "http-up", config.UpstreamConfig{
		Name: "http-up", Type: config.TransportStreamableHTTP,
	})
	require.Error(t, err)

	// HTTP/SSE transports are cheap to recreate: a fresh client (and
	// transport) is built on every attempt rather than reused.
	assert.Equal(t, MaxAttempts, factoryCalls)
}

func TestManagerCreateOneDetectsCircularDependency(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{name: "mcpaggregator"}, nil
	})

	_, err := m.CreateOne(context.Background(), "c", config.UpstreamConfig{Name: "c"})
	require.Error(t, err)

	var circErr *errs.CircularDependencyError
	assert.True(t, errors.As(err, &circErr))
}

func TestManagerCreateOneHandlesAuthRequired(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{initErr: &mcpserver.AuthRequiredError{URL: "https://example.test"}}, nil
	})

	status, err := m.CreateOne(context.Background(), "d", config.UpstreamConfig{Name: "d"})
	require.Error(t, err)
	assert.Equal(t, AwaitingOAuth, status)

	rec, ok := m.Get("d")
	require.True(t, ok)
	assert.Equal(t, AwaitingOAuth, rec.Status)
}

func TestManagerCreateAllSkipsDisabledUpstreams(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{name: "up-" + cfg.Name}, nil
	})

	configs := map[string]config.UpstreamConfig{
		"enabled":  {Name: "enabled"},
		"disabled": {Name: "disabled", Disabled: true},
	}
	require.NoError(t, m.CreateAll(context.Background(), configs))

	_, ok := m.Get("enabled")
	assert.True(t, ok)
	_, ok = m.Get("disabled")
	assert.False(t, ok)
}

func TestManagerRemoveClosesClient(t *testing.T) {
	var created *fakeClient
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		created = &fakeClient{name: "e"}
		return created, nil
	})

	_, err := m.CreateOne(context.Background(), "e", config.UpstreamConfig{Name: "e"})
	require.NoError(t, err)

	m.Remove("e")
	_, ok := m.Get("e")
	assert.False(t, ok)
	assert.True(t, created.closed)
}

func TestManagerExecuteOnNotFound(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.ExecuteOn(context.Background(), "missing", func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return nil, nil
	})
	var notFound *errs.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestManagerExecuteOnNotConnected(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{initErr: errors.New("boom")}, nil
	})
	origMax := MaxAttempts
	MaxAttempts = 1
	t.Cleanup(func() { MaxAttempts = origMax })

	_, _ = m.CreateOne(context.Background(), "f", config.UpstreamConfig{Name: "f"})

	_, err := m.ExecuteOn(context.Background(), "f", func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return nil, nil
	})
	var notConnected *errs.NotConnectedError
	assert.True(t, errors.As(err, &notConnected))
}

func TestManagerExecuteOnConnectedDispatches(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{name: "g"}, nil
	})
	_, err := m.CreateOne(context.Background(), "g", config.UpstreamConfig{Name: "g"})
	require.NoError(t, err)

	result, err := m.ExecuteOn(context.Background(), "g", func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestManagerAllReturnsSnapshots(t *testing.T) {
	m := newTestManager(t, func(cfg config.UpstreamConfig, tp mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
		return &fakeClient{name: "h"}, nil
	})
	_, err := m.CreateOne(context.Background(), "h", config.UpstreamConfig{Name: "h"})
	require.NoError(t, err)

	all := m.All()
	require.Len(t, all, 1)
	assert.Equal(t, "h", all[0].Name)
}

package mcpserver

import (
	"fmt"

	"mcpaggregator/internal/config"
)

// MCPClientConfig is a transport-agnostic bag of the fields any of the three
// client constructors might need, built from an UpstreamConfig entry.
type MCPClientConfig struct {
	// Command and Args spawn a stdio upstream.
	Command string
	Args    []string
	Env     map[string]string

	// URL and Headers address an HTTP-based upstream (streamable-http or sse).
	URL     string
	Headers map[string]string

	// TokenProvider, when non-nil, selects a DynamicAuthClient instead of a
	// static-header client for an OAuth-protected streamable-http upstream.
	// The SSE client ignores it.
	TokenProvider TokenProvider
}

// NewMCPClientFromConfig builds the MCPClient implementation matching the
// upstream's configured transport. For OAuth-protected streamable-http
// upstreams, the caller passes a TokenProvider backed by the connection
// manager's token store so the client can inject a live bearer token on every
// request. An SSE client sends only its static Headers; no token is injected.
func NewMCPClientFromConfig(kind config.TransportKind, cfg MCPClientConfig) (MCPClient, error) {
	switch kind {
	case config.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		return NewStdioClientWithEnv(cfg.Command, cfg.Args, cfg.Env), nil

	case config.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for streamable-http transport")
		}
		if cfg.TokenProvider != nil {
			return NewDynamicAuthClient(cfg.URL, cfg.TokenProvider), nil
		}
		return NewStreamableHTTPClientWithHeaders(cfg.URL, cfg.Headers), nil

	case config.TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for sse transport")
		}
		return NewSSEClientWithHeaders(cfg.URL, cfg.Headers), nil

	default:
		return nil, fmt.Errorf("unsupported upstream transport: %s", kind)
	}
}

// ClientConfigFromUpstream derives an MCPClientConfig from an upstream's
// static configuration. tokenProvider is nil unless the upstream carries an
// OAuth configuration and the caller has one ready to attach.
func ClientConfigFromUpstream(u config.UpstreamConfig, tokenProvider TokenProvider) (MCPClientConfig, error) {
	switch u.Type {
	case config.TransportStdio:
		if u.Local == nil {
			return MCPClientConfig{}, fmt.Errorf("upstream %s: local transport config missing", u.Name)
		}
		if len(u.Local.Command) == 0 {
			return MCPClientConfig{}, fmt.Errorf("upstream %s: command is required", u.Name)
		}
		return MCPClientConfig{
			Command: u.Local.Command[0],
			Args:    u.Local.Command[1:],
			Env:     u.Local.Env,
		}, nil

	case config.TransportStreamableHTTP:
		if u.StreamableHTTP == nil {
			return MCPClientConfig{}, fmt.Errorf("upstream %s: streamableHttp transport config missing", u.Name)
		}
		cfg := MCPClientConfig{URL: u.StreamableHTTP.URL, Headers: u.StreamableHTTP.Headers}
		if u.StreamableHTTP.OAuth != nil {
			cfg.TokenProvider = tokenProvider
		}
		return cfg, nil

	case config.TransportSSE:
		if u.SSE == nil {
			return MCPClientConfig{}, fmt.Errorf("upstream %s: sse transport config missing", u.Name)
		}
		cfg := MCPClientConfig{URL: u.SSE.URL, Headers: u.SSE.Headers}
		if u.SSE.OAuth != nil {
			cfg.TokenProvider = tokenProvider
		}
		return cfg, nil

	default:
		return MCPClientConfig{}, fmt.Errorf("upstream %s: unsupported transport %q", u.Name, u.Type)
	}
}

// Package config loads and watches the proxy's upstream configuration.
package config

import "time"

// TransportKind identifies which of the three upstream transports a
// configuration entry selects.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportStreamableHTTP TransportKind = "streamable-http"
	TransportSSE            TransportKind = "sse"
)

// Config is the top-level configuration object: a single map of upstream
// name to its definition, watched as a whole for incremental changes.
type Config struct {
	// Upstreams maps a unique upstream name to its configuration.
	Upstreams map[string]UpstreamConfig `yaml:"upstreams"`

	// AllowClientGeneratedSessionIDs controls whether a streamable-HTTP
	// request carrying an Mcp-Session-Id unknown to both the live process
	// and the session repository is allowed to create a fresh session under
	// that id, rather than being rejected. Default true.
	AllowClientGeneratedSessionIDs *bool `yaml:"allowClientGeneratedSessionIDs,omitempty"`

	// Listen configures the downstream-facing transports.
	Listen ListenConfig `yaml:"listen"`
}

// ListenConfig configures the downstream listeners.
type ListenConfig struct {
	Host                   string `yaml:"host,omitempty"`
	Port                   int    `yaml:"port,omitempty"`
	NamePrefix             string `yaml:"namePrefix,omitempty"` // default "1mcp", per the {server}_1mcp_{tool} formatter
	EnableSocketActivation bool   `yaml:"enableSocketActivation,omitempty"`
}

// UpstreamConfig describes one upstream MCP server. Exactly one of Local,
// StreamableHTTP, or SSE must be set; Type records which.
type UpstreamConfig struct {
	Name string `yaml:"-"` // populated from the Upstreams map key

	Type TransportKind `yaml:"type"`

	Local          *LocalTransportConfig `yaml:"local,omitempty"`
	StreamableHTTP *HTTPTransportConfig  `yaml:"streamableHttp,omitempty"`
	SSE            *HTTPTransportConfig  `yaml:"sse,omitempty"`

	// Tags classify this upstream for session filters.
	Tags []string `yaml:"tags,omitempty"`

	// Timeout is the fallback for both ConnectionTimeout and RequestTimeout
	// when either is unset, in milliseconds.
	TimeoutMs           int `yaml:"timeoutMs,omitempty"`
	ConnectionTimeoutMs int `yaml:"connectionTimeoutMs,omitempty"`
	RequestTimeoutMs    int `yaml:"requestTimeoutMs,omitempty"`

	// Disabled omits the upstream from runtime even though it is listed.
	Disabled bool `yaml:"disabled,omitempty"`
}

// ConnectionTimeout resolves the effective connect timeout per spec §3:
// connectionTimeout || timeout.
func (u UpstreamConfig) ConnectionTimeout() time.Duration {
	if u.ConnectionTimeoutMs > 0 {
		return time.Duration(u.ConnectionTimeoutMs) * time.Millisecond
	}
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// RequestTimeout resolves the effective per-request timeout: requestTimeout || timeout.
func (u UpstreamConfig) RequestTimeout() time.Duration {
	if u.RequestTimeoutMs > 0 {
		return time.Duration(u.RequestTimeoutMs) * time.Millisecond
	}
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// OAuth returns this upstream's OAuth configuration, if its active
// transport carries one.
func (u UpstreamConfig) OAuth() *OAuthConfig {
	switch u.Type {
	case TransportStreamableHTTP:
		if u.StreamableHTTP != nil {
			return u.StreamableHTTP.OAuth
		}
	case TransportSSE:
		if u.SSE != nil {
			return u.SSE.OAuth
		}
	}
	return nil
}

// URL returns this upstream's endpoint URL for HTTP-based transports, or
// "" for stdio.
func (u UpstreamConfig) URL() string {
	switch u.Type {
	case TransportStreamableHTTP:
		if u.StreamableHTTP != nil {
			return u.StreamableHTTP.URL
		}
	case TransportSSE:
		if u.SSE != nil {
			return u.SSE.URL
		}
	}
	return ""
}

// LocalTransportConfig spawns the upstream as a child process communicating over stdio.
type LocalTransportConfig struct {
	Command []string `yaml:"command"`
	Cwd     string   `yaml:"cwd,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// InheritParentEnv is parsed from configuration but not applied when the
	// child process is started: only Command and Env reach the child.
	InheritParentEnv *bool `yaml:"inheritParentEnv,omitempty"`

	// EnvFilter is parsed from configuration but not applied when the child
	// process is started; inherited variables are not filtered.
	EnvFilter []string `yaml:"envFilter,omitempty"`

	RestartOnExit bool          `yaml:"restartOnExit,omitempty"`
	MaxRestarts   int           `yaml:"maxRestarts,omitempty"`
	RestartDelay  time.Duration `yaml:"restartDelay,omitempty"`
}

func (l LocalTransportConfig) InheritsParentEnv() bool {
	return l.InheritParentEnv == nil || *l.InheritParentEnv
}

// HTTPTransportConfig is shared by the streamable-HTTP and SSE upstream transports.
type HTTPTransportConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	OAuth   *OAuthConfig      `yaml:"oauth,omitempty"`
}

// OAuthConfig enables OAuth 2.1 authorization-code-with-PKCE for an upstream.
type OAuthConfig struct {
	ClientID     string   `yaml:"clientId,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	RedirectURL  string   `yaml:"redirectUrl,omitempty"`
}

// AllowClientSessionIDs resolves the Config.AllowClientGeneratedSessionIDs
// open question's default (true).
func (c Config) AllowClientSessionIDs() bool {
	return c.AllowClientGeneratedSessionIDs == nil || *c.AllowClientGeneratedSessionIDs
}

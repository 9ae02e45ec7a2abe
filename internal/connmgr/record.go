package connmgr

import (
	"time"

	"mcpaggregator/internal/capabilities"
	"mcpaggregator/internal/config"
	"mcpaggregator/internal/mcpserver"
)

// Status is a connection record's position in the state machine.
type Status string

const (
	Disconnected Status = "disconnected"
	Connecting   Status = "connecting"
	Connected    Status = "connected"
	AwaitingOAuth Status = "awaiting_oauth"
	Error        Status = "error"
)

// Record is the connection manager's view of one configured upstream. At
// most one Record exists per name; client is valid iff Status is one of
// Connecting, Connected, or AwaitingOAuth.
type Record struct {
	Name   string
	Config config.UpstreamConfig

	Status Status
	Client mcpserver.MCPClient

	LastConnected    time.Time
	OAuthStartTime   time.Time
	AuthorizationURL string
	LastError        error

	Capabilities       capabilities.Set
	LoggingCapability  interface{}
	Instructions       string

	// Diagnostics, not behavioral state — see ConsecutiveFailures/LastAttempt/NextRetryAfter.
	consecutiveFailures int
	lastAttempt         time.Time
	nextRetryAfter      time.Time

	restartCount int
}

// snapshot returns a value copy safe to hand to callers outside the manager's lock.
func (r *Record) snapshot() Record {
	cp := *r
	return cp
}

// ConsecutiveFailures is the number of connect attempts that have failed in a row.
func (r *Record) ConsecutiveFailures() int { return r.consecutiveFailures }

// LastAttempt is when the most recent connect attempt was made.
func (r *Record) LastAttempt() time.Time { return r.lastAttempt }

// NextRetryAfter is when the next backoff-gated retry is eligible to run, if any.
func (r *Record) NextRetryAfter() time.Time { return r.nextRetryAfter }

// IsUnreachable reports whether this record has crossed the consecutive-failure
// threshold used for diagnostic reporting.
func (r *Record) IsUnreachable() bool { return r.consecutiveFailures >= UnreachableThreshold }

// Package errs defines the structured error taxonomy shared by every
// component of the aggregator. Each kind is its own exported type so callers
// use errors.As/errors.Is instead of matching on strings.
package errs

import "fmt"

// NotFoundError indicates no upstream, tool, or session exists for the given key.
type NotFoundError struct {
	Kind string // "upstream" | "tool" | "session"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// NotConnectedError indicates the upstream exists but is not in the Connected state.
type NotConnectedError struct {
	Server string
	Status string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("upstream %s is not connected (status: %s)", e.Server, e.Status)
}

// ConnectionFailedError indicates every retry attempt for an upstream was exhausted.
type ConnectionFailedError struct {
	Server  string
	Attempt int
	Cause   error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("upstream %s failed to connect after %d attempts: %v", e.Server, e.Attempt, e.Cause)
}

func (e *ConnectionFailedError) Unwrap() error { return e.Cause }

// CircularDependencyError indicates an upstream identified itself as this proxy.
type CircularDependencyError struct {
	Server string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("upstream %s resolves back to this proxy", e.Server)
}

// OAuthRequiredError indicates an upstream demanded authorization.
type OAuthRequiredError struct {
	Server           string
	AuthorizationURL string
}

func (e *OAuthRequiredError) Error() string {
	return fmt.Sprintf("upstream %s requires authorization at %s", e.Server, e.AuthorizationURL)
}

// CancelledError indicates an inbound or internal cancel signal fired.
type CancelledError struct {
	Operation string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s was cancelled", e.Operation)
}

// CapabilityConflictError records a merge that saw divergent non-notification values.
// It is informational: the aggregator logs it and proceeds with last-writer-wins.
type CapabilityConflictError struct {
	Server   string
	Category string
	Key      string
	Existing any
	Incoming any
}

func (e *CapabilityConflictError) Error() string {
	return fmt.Sprintf("capability conflict on %s.%s from %s: %v -> %v", e.Category, e.Key, e.Server, e.Existing, e.Incoming)
}

// InvalidParamsError indicates the inbound request shape was wrong.
type InvalidParamsError struct {
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %s", e.Reason)
}

// UpstreamUnavailableError indicates an invoke operation routed to an upstream
// that is not in a state capable of serving it.
type UpstreamUnavailableError struct {
	Server string
	Status string
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream %s unavailable (status: %s)", e.Server, e.Status)
}

// ConfigError indicates the configuration failed to load or validate. It is
// an ambient addition (not part of the protocol-facing taxonomy above) used
// by the CLI to choose a distinct exit code.
type ConfigError struct {
	Path  string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

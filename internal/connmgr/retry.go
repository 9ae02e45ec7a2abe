package connmgr

import (
	"context"
	"errors"
	"time"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/mcpserver"
)

// connectWithRetry implements the bounded-retry connect algorithm: up to
// MaxAttempts tries, each gated by the upstream's connection timeout, with
// INITIAL_DELAY_MS*2^i cancel-aware backoff between non-fatal failures. An
// OAuth challenge or a circular-dependency detection fails fast with no
// further retries. On a non-fatal failure a fresh client instance is built
// for the next attempt; for HTTP/SSE that also recreates the transport, but
// a stdio upstream's subprocess handle is single-shot, so the same client
// (and so the same already-spawned process) is reused across attempts
// instead of spawning another one.
func (m *Manager) connectWithRetry(ctx context.Context, rec *Record, tokenProvider mcpserver.TokenProvider) (mcpserver.MCPClient, error) {
	var lastErr error
	var client mcpserver.MCPClient
	reuseClient := rec.Config.Type == config.TransportStdio

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if client != nil {
				_ = client.Close()
			}
			return nil, &errs.CancelledError{Operation: "connect " + rec.Name}
		}

		if client == nil {
			c, err := m.newClient(rec.Config, tokenProvider)
			if err != nil {
				return nil, err
			}
			client = c
		}

		connectCtx := ctx
		var cancel context.CancelFunc
		if timeout := rec.Config.ConnectionTimeout(); timeout > 0 {
			connectCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		err := client.Initialize(connectCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			if name, _ := client.ServerInfo(); name != "" && name == m.proxyName {
				_ = client.Close()
				return nil, &errs.CircularDependencyError{Server: rec.Name}
			}
			return client, nil
		}

		var authErr *mcpserver.AuthRequiredError
		if errors.As(err, &authErr) {
			_ = client.Close()
			return nil, authErr
		}

		lastErr = err

		m.mu.Lock()
		rec.consecutiveFailures++
		rec.lastAttempt = time.Now()
		m.mu.Unlock()

		if attempt == MaxAttempts-1 {
			break
		}

		if !reuseClient {
			_ = client.Close()
			client = nil
		}

		delay := connectDelay(attempt)
		m.mu.Lock()
		rec.nextRetryAfter = time.Now().Add(delay)
		m.mu.Unlock()

		if sleepErr := cancelableSleep(ctx, delay); sleepErr != nil {
			if client != nil {
				_ = client.Close()
			}
			return nil, sleepErr
		}
	}

	if client != nil {
		_ = client.Close()
	}
	return nil, &errs.ConnectionFailedError{Server: rec.Name, Attempt: MaxAttempts, Cause: lastErr}
}

package connmgr

import (
	"context"
	"fmt"
	"time"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/mcpserver"
	"mcpaggregator/pkg/logging"
)

const restartHealthCheckInterval = 5 * time.Second

// watchForExitLocked starts a background health-check loop for a freshly
// connected stdio upstream configured with restartOnExit, reconnecting it
// (bounded by maxRestarts) the first time it stops answering pings. Caller
// must hold m.mu.
func (m *Manager) watchForExitLocked(rec *Record) {
	stop := make(chan struct{})
	m.restartStop[rec.Name] = stop
	go m.monitorForExit(rec.Name, rec.Client, rec.Config, stop)
}

func (m *Manager) monitorForExit(name string, client mcpserver.MCPClient, cfg config.UpstreamConfig, stop chan struct{}) {
	ticker := time.NewTicker(restartHealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), restartHealthCheckInterval)
			err := client.Ping(pingCtx)
			cancel()
			if err == nil {
				continue
			}
			logging.Warn("connmgr", "upstream %s stopped responding, attempting restart: %v", name, err)
			m.restartAfterExit(name, cfg, stop)
			return
		}
	}
}

func (m *Manager) restartAfterExit(name string, cfg config.UpstreamConfig, stop chan struct{}) {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	maxRestarts := 0
	if cfg.Local != nil {
		maxRestarts = cfg.Local.MaxRestarts
	}
	if maxRestarts > 0 && rec.restartCount >= maxRestarts {
		rec.Status = Error
		rec.LastError = fmt.Errorf("upstream %s exceeded max restarts (%d)", name, maxRestarts)
		if rec.Client != nil {
			_ = rec.Client.Close()
			rec.Client = nil
		}
		m.mu.Unlock()
		logging.Error("connmgr", rec.LastError, "giving up restarting upstream %s", name)
		return
	}
	rec.restartCount++
	restartCount := rec.restartCount
	m.mu.Unlock()

	delay := diagnosticBackoff(restartCount)
	if cfg.Local != nil && cfg.Local.RestartDelay > 0 {
		delay = cfg.Local.RestartDelay
	}

	select {
	case <-time.After(delay):
	case <-stop:
		return
	}

	if _, err := m.CreateOne(context.Background(), name, cfg); err != nil {
		logging.Warn("connmgr", "restart of upstream %s failed: %v", name, err)
	}
}

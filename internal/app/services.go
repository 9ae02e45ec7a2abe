package app

import (
	"context"
	"fmt"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/connmgr"
	"mcpaggregator/internal/schemacache"
	"mcpaggregator/internal/server"
	"mcpaggregator/internal/session"
	"mcpaggregator/pkg/logging"
)

// defaultListenPort is used when configuration omits listen.port.
const defaultListenPort = 8090

// Services bundles every long-lived component the application wires
// together: the connection manager (C1), schema cache (C2), session router
// (C3/C4/C5), session repository, and the downstream HTTP server.
type Services struct {
	Manager    *connmgr.Manager
	Cache      *schemacache.Cache
	Router     *session.Router
	Presets    session.PresetStore
	Repository session.Repository
	Server     *server.Server

	watcher *config.Watcher
}

// InitializeServices builds and connects every component from cfg.Loaded,
// returning once the initial set of upstreams has reached a terminal state.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	manager := connmgr.New("mcpaggregator")
	cache := schemacache.New(0, 0)
	presets := session.NewInMemoryPresetStore()
	denylist := session.NewDenylist(cfg.Yolo)
	prefix := cfg.Loaded.Listen.NamePrefix
	if prefix == "" {
		prefix = "1mcp"
	}
	router := session.NewRouter(manager, cache, presets, denylist, prefix)

	if err := manager.CreateAll(ctx, cfg.Loaded.Upstreams); err != nil {
		logging.Warn("app", "initial upstream connection attempt reported errors: %v", err)
	}
	if err := router.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("building initial tool registry: %w", err)
	}

	repo := session.NewInMemoryRepository(0)

	host := cfg.Loaded.Listen.Host
	port := cfg.Loaded.Listen.Port
	if port == 0 {
		port = defaultListenPort
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	srv := server.New(addr, manager, router, repo, cfg.Loaded.AllowClientSessionIDs())

	var watcher *config.Watcher
	if cfg.ConfigPath != "" {
		w, err := config.NewWatcher(cfg.ConfigPath)
		if err != nil {
			logging.Warn("app", "configuration watching disabled: %v", err)
		} else {
			watcher = w
		}
	}

	return &Services{
		Manager:    manager,
		Cache:      cache,
		Router:     router,
		Presets:    presets,
		Repository: repo,
		Server:     srv,
		watcher:    watcher,
	}, nil
}

// watchConfig applies incremental upstream changes from the configuration
// watcher, reconnecting affected upstreams and rebuilding the registry.
func (s *Services) watchConfig(ctx context.Context) {
	if s.watcher == nil {
		return
	}
	go func() {
		if err := s.watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Warn("app", "configuration watcher stopped: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-s.watcher.Changes():
			if !ok {
				return
			}
			s.applyChange(ctx, change)
		}
	}
}

func (s *Services) applyChange(ctx context.Context, change config.Change) {
	switch change.Kind {
	case config.ChangeRemoved:
		logging.Info("app", "upstream %s removed from configuration", change.Name)
		s.Manager.Remove(change.Name)
	case config.ChangeModified:
		if isTagsOnlyChange(change.FieldsChanged) {
			// Tags carry no connection-relevant meaning: the registry picks
			// them up straight off Manager.All() during Rebuild, so neither
			// start, stop, nor restart is warranted here.
			logging.Info("app", "upstream %s tags updated, no reconnect needed", change.Name)
			break
		}
		fallthrough
	case config.ChangeAdded:
		if change.Upstream.Disabled {
			s.Manager.Remove(change.Name)
		} else {
			if _, err := s.Manager.CreateOne(ctx, change.Name, change.Upstream); err != nil {
				logging.Warn("app", "reconnecting upstream %s: %v", change.Name, err)
			}
		}
	}
	if err := s.Router.Rebuild(ctx); err != nil {
		logging.Warn("app", "rebuilding registry after configuration change: %v", err)
	}
}

// isTagsOnlyChange reports whether a Modified event touched exactly the tags
// field and nothing connection-relevant.
func isTagsOnlyChange(fields []string) bool {
	return len(fields) == 1 && fields[0] == "tags"
}

// Close tears down the configuration watcher, the session repository's
// idle-cleanup loop, and every upstream connection.
func (s *Services) Close() error {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	if closer, ok := s.Repository.(interface{ Close() }); ok {
		closer.Close()
	}
	return s.Manager.Close()
}

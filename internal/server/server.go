// Package server assembles the downstream-facing HTTP mux: the streamable
// HTTP and SSE transports, the OAuth callback routes, and systemd
// socket-activation support, mirroring the teacher's AggregatorServer
// lifecycle (Start/Stop) generalized to the multi-transport session model.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/activation"

	"mcpaggregator/internal/connmgr"
	"mcpaggregator/internal/session"
	"mcpaggregator/pkg/logging"
)

// shutdownTimeout bounds how long Stop waits for in-flight HTTP requests to
// drain before forcing the listener closed.
const shutdownTimeout = 5 * time.Second

// Server owns the downstream HTTP surface: /mcp (streamable HTTP), /sse +
// /messages (SSE), and /oauth/callback (upstream authorization callback).
type Server struct {
	Addr    string
	Manager *connmgr.Manager
	mux     *http.ServeMux

	mu         sync.Mutex
	httpServer []*http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New constructs a Server wired to the given session router and repository.
func New(addr string, manager *connmgr.Manager, router *session.Router, repo session.Repository, allowClientSessionIDs bool) *Server {
	mux := http.NewServeMux()

	httpHandler := session.NewHTTPHandler(router, repo, allowClientSessionIDs)
	mux.Handle("/mcp", httpHandler)

	sseHandler := session.NewSSEHandler(router, repo, allowClientSessionIDs)
	mux.HandleFunc("/sse", sseHandler.ServeSSE)
	mux.HandleFunc("/messages", sseHandler.ServeMessages)

	mux.HandleFunc("/oauth/callback", oauthCallbackHandler(manager))

	return &Server{Addr: addr, Manager: manager, mux: mux}
}

// Start launches the HTTP server(s). Under systemd socket activation
// (sd_listen_fds set), it serves each provided listener directly instead of
// binding Addr itself.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("server already started")
	}

	_, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	listeners, err := activation.Listeners()
	if err != nil {
		logging.Warn("server", "systemd socket activation check failed: %v", err)
	}

	if len(listeners) > 0 {
		logging.Info("server", "systemd socket activation detected, using %d listener(s)", len(listeners))
		for i, l := range listeners {
			httpSrv := &http.Server{Handler: s.mux}
			s.httpServer = append(s.httpServer, httpSrv)
			s.wg.Add(1)
			go s.serveListener(httpSrv, l, i)
		}
		return nil
	}

	httpSrv := &http.Server{Addr: s.Addr, Handler: s.mux}
	s.httpServer = append(s.httpServer, httpSrv)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logging.Info("server", "listening on %s", s.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("server", err, "HTTP server error")
		}
	}()
	return nil
}

func (s *Server) serveListener(srv *http.Server, l net.Listener, index int) {
	defer s.wg.Done()
	if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
		logging.Error("server", err, "listener %d error", index)
	}
}

// Stop gracefully shuts down every listener, waiting up to shutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	servers := s.httpServer
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	shutdownCtx, done := context.WithTimeout(ctx, shutdownTimeout)
	defer done()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()

	s.mu.Lock()
	s.httpServer = nil
	s.mu.Unlock()
	return firstErr
}

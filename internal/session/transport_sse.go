package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mcpaggregator/pkg/logging"
)

// sseHeartbeatInterval matches the legacy SSE transport's keep-alive cadence.
const sseHeartbeatInterval = 30 * time.Second

// SSEHandler implements the legacy HTTP+SSE transport: GET /sse opens an
// event stream carrying one "endpoint" event naming the paired POST
// /messages URL, then forwards JSON-RPC responses as "message" events. Each
// stream owns exactly one session for its lifetime.
type SSEHandler struct {
	Router                *Router
	Repository            Repository
	AllowClientSessionIDs bool

	mu      sync.Mutex
	streams map[string]chan []byte // sessionID -> outbound message channel
}

// NewSSEHandler constructs an SSEHandler.
func NewSSEHandler(router *Router, repo Repository, allowClientSessionIDs bool) *SSEHandler {
	return &SSEHandler{
		Router:                router,
		Repository:            repo,
		AllowClientSessionIDs: allowClientSessionIDs,
		streams:               make(map[string]chan []byte),
	}
}

// ServeSSE handles GET /sse: opens the event stream and registers this
// session's outbound channel.
func (h *SSEHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	preset := r.URL.Query().Get("preset")
	filterExpr := r.URL.Query().Get("filter")
	tagsCSV := r.URL.Query().Get("tags")
	filter, err := ParseFromQueryParams(preset, filterExpr, tagsCSV)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := NewSessionID()
	if err := h.Repository.Create(id, State{Filter: filter, Transport: TransportSSE}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.Repository.Delete(id)

	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.streams[id] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.streams, id)
		h.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?sessionId=%s\n\n", id)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ServeMessages handles POST /messages?sessionId=...: accepts one JSON-RPC
// request, dispatches it, and delivers the response over the matching SSE
// stream rather than in this response body.
func (h *SSEHandler) ServeMessages(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	state, ok := h.Repository.Get(id)
	if !ok || state.Transport != TransportSSE {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	_ = h.Repository.UpdateAccess(id)

	h.mu.Lock()
	ch, ok := h.streams[id]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "stream not connected", http.StatusGone)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "parse error", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)

	go func() {
		httpHandler := HTTPHandler{Router: h.Router, Repository: h.Repository}
		result, rpcErr := httpHandler.dispatch(r.Context(), state, req)
		if req.ID == nil {
			return
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = &rpcError{Code: rpcErr.Code, Message: rpcErr.Message}
		} else {
			resp.Result = result
		}
		data, err := json.Marshal(resp)
		if err != nil {
			logging.Warn("session", "encoding SSE response for session %s: %v", logging.TruncateSessionID(id), err)
			return
		}
		select {
		case ch <- data:
		default:
			logging.Warn("session", "dropping SSE message for session %s: channel full", logging.TruncateSessionID(id))
		}
	}()
}

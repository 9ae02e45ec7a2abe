package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/registry"
	"mcpaggregator/pkg/logging"
)

// sessionHeader is the streamable-HTTP transport's session id header, per
// §4.5.
const sessionHeader = "Mcp-Session-Id"

// rpcRequest is the minimal JSON-RPC 2.0 envelope accepted on /mcp. Unlike a
// full codec, params are decoded per-method below rather than up front.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// HTTPHandler is the streamable-HTTP downstream transport (§4.5): it
// terminates JSON-RPC over a single POST /mcp endpoint, creating or
// restoring a session from the Mcp-Session-Id header.
type HTTPHandler struct {
	Router                  *Router
	Repository              Repository
	AllowClientSessionIDs   bool
	DefaultEnablePagination bool
}

// NewHTTPHandler constructs an HTTPHandler.
func NewHTTPHandler(router *Router, repo Repository, allowClientSessionIDs bool) *HTTPHandler {
	return &HTTPHandler{Router: router, Repository: repo, AllowClientSessionIDs: allowClientSessionIDs}
}

// ServeHTTP implements net/http.Handler for POST (request), GET (not
// supported, streamable-HTTP without SSE upgrade returns 405) and DELETE
// (explicit session termination) on /mcp.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_ = h.Repository.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, -32700, "parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, -32600, "invalid request")
		return
	}

	sess, created, err := h.resolveSession(r)
	if err != nil {
		writeRPCError(w, req.ID, -32000, err.Error())
		return
	}
	if created {
		w.Header().Set(sessionHeader, sess.SessionID)
	}

	result, rpcErr := h.dispatch(r.Context(), sess, req)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	if req.ID == nil {
		// Notification: no response body per JSON-RPC 2.0.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// resolveSession implements §4.5's creation vs. restoration algorithm: a
// request carrying a known Mcp-Session-Id is restored and access-bumped; one
// with none (or an unknown, client-generated one when allowed) is created
// fresh; an unknown id when client-generated ids are disallowed is a hard
// session-mismatch error.
func (h *HTTPHandler) resolveSession(r *http.Request) (State, bool, error) {
	id := r.Header.Get(sessionHeader)

	if id != "" {
		if state, ok := h.Repository.Get(id); ok {
			if state.Transport != TransportStreamableHTTP {
				return State{}, false, errors.New("session transport mismatch")
			}
			_ = h.Repository.UpdateAccess(id)
			return state, false, nil
		}
		if !h.AllowClientSessionIDs {
			return State{}, false, errors.New("unknown session id")
		}
	}

	newID := id
	if newID == "" {
		newID = NewSessionID()
	}

	preset := r.URL.Query().Get("preset")
	filterExpr := r.URL.Query().Get("filter")
	tagsCSV := r.URL.Query().Get("tags")
	filter, err := ParseFromQueryParams(preset, filterExpr, tagsCSV)
	if err != nil {
		return State{}, false, err
	}

	state := State{
		Filter:           filter,
		EnablePagination: h.DefaultEnablePagination,
		Transport:        TransportStreamableHTTP,
	}
	if err := h.Repository.Create(newID, state); err != nil {
		return State{}, false, err
	}
	state.SessionID = newID
	return state, true, nil
}

type rpcDispatchError struct {
	Code    int
	Message string
}

func (h *HTTPHandler) dispatch(ctx context.Context, sess State, req rpcRequest) (interface{}, *rpcDispatchError) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(), nil

	case "notifications/initialized":
		return nil, nil

	case "tools/list":
		var params struct {
			Cursor string `json:"cursor"`
		}
		_ = json.Unmarshal(req.Params, &params)
		result, err := h.Router.ListTools(sess.Filter, sess.EnablePagination, registry.ListOptions{Cursor: params.Cursor})
		if err != nil {
			return nil, toDispatchError(err)
		}
		return map[string]interface{}{"tools": result.Tools, "nextCursor": result.NextCursor}, nil

	case "tools/call":
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &rpcDispatchError{Code: -32602, Message: "invalid params"}
		}
		result, err := h.Router.CallTool(ctx, sess.Filter, params.Name, params.Arguments)
		if err != nil {
			return nil, toDispatchError(err)
		}
		return result, nil

	case "resources/list":
		resources, warnings, err := h.Router.ListResources(ctx, sess.Filter)
		if err != nil {
			return nil, toDispatchError(err)
		}
		for _, w := range warnings {
			logging.Warn("session", "resources/list: %s", w)
		}
		return map[string]interface{}{"resources": resources}, nil

	case "resources/read":
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &rpcDispatchError{Code: -32602, Message: "invalid params"}
		}
		result, err := h.Router.ReadResource(ctx, params.URI)
		if err != nil {
			return nil, toDispatchError(err)
		}
		return result, nil

	case "prompts/list":
		prompts, warnings, err := h.Router.ListPrompts(ctx, sess.Filter)
		if err != nil {
			return nil, toDispatchError(err)
		}
		for _, w := range warnings {
			logging.Warn("session", "prompts/list: %s", w)
		}
		return map[string]interface{}{"prompts": prompts}, nil

	case "prompts/get":
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &rpcDispatchError{Code: -32602, Message: "invalid params"}
		}
		result, err := h.Router.GetPrompt(ctx, params.Name, params.Arguments)
		if err != nil {
			return nil, toDispatchError(err)
		}
		return result, nil

	default:
		return nil, &rpcDispatchError{Code: -32601, Message: "method not found"}
	}
}

func (h *HTTPHandler) handleInitialize() interface{} {
	capSet, loggingCap := h.Router.Capabilities()
	return map[string]interface{}{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]interface{}{"categories": capSet, "logging": loggingCap},
		"serverInfo":      mcp.Implementation{Name: "mcpaggregator", Version: "dev"},
	}
}

func toDispatchError(err error) *rpcDispatchError {
	var notFound *errs.NotFoundError
	var invalid *errs.InvalidParamsError
	var unavailable *errs.UpstreamUnavailableError
	switch {
	case errors.As(err, &notFound):
		return &rpcDispatchError{Code: -32601, Message: err.Error()}
	case errors.As(err, &invalid):
		return &rpcDispatchError{Code: -32602, Message: err.Error()}
	case errors.As(err, &unavailable):
		return &rpcDispatchError{Code: -32001, Message: err.Error()}
	default:
		return &rpcDispatchError{Code: -32000, Message: err.Error()}
	}
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// StartRepositoryDiagnostics periodically logs the session repository's
// size, for /healthz-style diagnostics. It is optional; InMemoryRepository
// already self-cleans idle sessions without this.
func StartRepositoryDiagnostics(ctx context.Context, repo Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logging.Debug("session", "active sessions: %d", len(repo.List()))
		}
	}
}

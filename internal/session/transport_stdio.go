package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"mcpaggregator/pkg/logging"
)

// StdioProxy bridges a local stdin/stdout MCP client to the router directly,
// without an intervening HTTP hop: each line of stdin is one JSON-RPC
// request, dispatched against a single long-lived session bound to this
// process's lifetime. Client context (project, user, platform, etc.) is
// supplied once at startup via query-string-shaped key=value pairs.
type StdioProxy struct {
	Router     *Router
	Repository Repository
}

// NewStdioProxy constructs a StdioProxy.
func NewStdioProxy(router *Router, repo Repository) *StdioProxy {
	return &StdioProxy{Router: router, Repository: repo}
}

// Run reads newline-delimited JSON-RPC requests from r and writes responses
// to w until r is exhausted or ctx is cancelled. contextParams is a
// "key=value&key2=value2"-shaped string identifying the client context.
func (p *StdioProxy) Run(ctx context.Context, r io.Reader, w io.Writer, contextParams, filterPreset, filterExpr, tagsCSV string) error {
	filter, err := ParseFromQueryParams(filterPreset, filterExpr, tagsCSV)
	if err != nil {
		return fmt.Errorf("parsing stdio session filter: %w", err)
	}

	id := NewSessionID()
	state := State{
		Filter:    filter,
		Context:   parseContextParams(contextParams),
		Transport: TransportStdio,
	}
	if err := p.Repository.Create(id, state); err != nil {
		return fmt.Errorf("creating stdio session: %w", err)
	}
	defer p.Repository.Delete(id)

	httpHandler := HTTPHandler{Router: p.Router, Repository: p.Repository}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			logging.Warn("session", "stdio proxy: discarding unparseable line: %v", err)
			continue
		}

		_ = p.Repository.UpdateAccess(id)
		result, rpcErr := httpHandler.dispatch(ctx, state, req)
		if req.ID == nil {
			continue
		}

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = &rpcError{Code: rpcErr.Code, Message: rpcErr.Message}
		} else {
			resp.Result = result
		}
		data, err := json.Marshal(resp)
		if err != nil {
			logging.Warn("session", "stdio proxy: encoding response: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseContextParams decodes a "key=value&key2=value2" client context string
// into a Context map, tolerating missing or malformed pairs.
func parseContextParams(raw string) Context {
	if raw == "" {
		return nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	ctx := make(Context, len(values))
	for k, v := range values {
		if len(v) > 0 {
			ctx[k] = v[0]
		}
	}
	return ctx
}

package session

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpaggregator/internal/connmgr"
	"mcpaggregator/internal/errs"
)

// Discovery meta-tools are resolved and dispatched without going through
// C1: they report on the router's own state (connection status, saved
// presets) rather than forwarding to an upstream. Their raw names live
// under the reserved discoveryServerName upstream so the ordinary
// exposed-name formatter namespaces them the same way as any real tool.
const (
	discoveryListConnectionsRaw = "list_connections"
	discoveryListPresetsRaw     = "list_presets"
)

// discoveryTools returns the raw metadata for the built-in discovery tools,
// for inclusion in the registry's discoveryServerName entry.
func discoveryTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        discoveryListConnectionsRaw,
			Description: "List every configured upstream and its current connection status.",
		},
		{
			Name:        discoveryListPresetsRaw,
			Description: "List the saved filter presets available for this session.",
		},
	}
}

// callDiscoveryTool dispatches a discovery meta-tool by its raw (non-exposed)
// name, already resolved from discoveryServerName by the caller.
func (r *Router) callDiscoveryTool(rawName string, _ map[string]interface{}) (*mcp.CallToolResult, error) {
	switch rawName {
	case discoveryListConnectionsRaw:
		return r.listConnectionsResult(), nil
	case discoveryListPresetsRaw:
		return r.listPresetsResult(), nil
	default:
		return nil, &errs.NotFoundError{Kind: "tool", Key: rawName}
	}
}

type connectionSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r *Router) listConnectionsResult() *mcp.CallToolResult {
	records := r.Manager.All()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	summaries := make([]connectionSummary, 0, len(records))
	for _, rec := range records {
		s := connectionSummary{Name: rec.Name, Status: string(rec.Status)}
		if rec.Status == connmgr.Error && rec.LastError != nil {
			s.Error = rec.LastError.Error()
		}
		summaries = append(summaries, s)
	}
	return jsonToolResult(summaries)
}

func (r *Router) listPresetsResult() *mcp.CallToolResult {
	var presets []Preset
	if r.Presets != nil {
		presets = r.Presets.List()
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })

	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return jsonToolResult(names)
}

func jsonToolResult(v interface{}) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("failed to encode result: %v", err)}},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

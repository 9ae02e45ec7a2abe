package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpaggregator/internal/capabilities"
	"mcpaggregator/internal/connmgr"
	"mcpaggregator/internal/errs"
	"mcpaggregator/internal/mcpserver"
	"mcpaggregator/internal/registry"
	"mcpaggregator/internal/schemacache"
	"mcpaggregator/pkg/logging"
)

// discoveryServerName is the reserved internal upstream name under which
// the router's own discovery meta-tools are exposed, so they can be
// resolved and dispatched without going through C1.
const discoveryServerName = "_discovery"

// MaxListFanout bounds concurrent upstream calls during a resources/prompts
// list fan-out, mirroring C1's createAll concurrency bound.
const MaxListFanout = 8

// Router is C5: it resolves a session's effective upstream set from its
// filter and dispatches MCP requests against it, consulting C1 for live
// clients, C2 for schemas, and C3 for tool discovery.
type Router struct {
	Manager  *connmgr.Manager
	Cache    *schemacache.Cache
	Presets  PresetStore
	Denylist *Denylist
	Prefix   string

	mu         sync.RWMutex
	reg        *registry.Registry
	capSet     capabilities.Set
	capLogging interface{}

	resIndexMu sync.Mutex
	resIndex   map[string]itemRef
	promptIdx  map[string]itemRef
}

type itemRef struct {
	server   string
	original string
}

// NewRouter constructs a Router. Call Rebuild after connecting upstreams
// (and again after any config change) to populate the registry and
// aggregated capability view.
func NewRouter(manager *connmgr.Manager, cache *schemacache.Cache, presets PresetStore, denylist *Denylist, prefix string) *Router {
	return &Router{
		Manager:  manager,
		Cache:    cache,
		Presets:  presets,
		Denylist: denylist,
		Prefix:   prefix,
	}
}

// Rebuild refreshes the tool registry (C3) and the aggregated capability
// view (C4) from C1's current set of connected upstreams. It fetches each
// connected upstream's tool list directly (not through the schema cache,
// since listTools returns lightweight metadata, not full schemas) and
// seeds the schema cache with the tools it finds so a subsequent
// tools/call schema lookup is already warm.
func (r *Router) Rebuild(ctx context.Context) error {
	records := r.Manager.All()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	byServer := make(map[string][]registry.ToolMetadata, len(records))
	agg := capabilities.NewAggregate()

	for _, rec := range records {
		if rec.Status != connmgr.Connected || rec.Client == nil {
			continue
		}

		if rec.Capabilities != nil || rec.LoggingCapability != nil {
			agg.Merge(rec.Name, rec.Capabilities, rec.LoggingCapability)
		}

		result, err := r.Manager.ExecuteOn(ctx, rec.Name, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
			return c.ListTools(ctx)
		})
		if err != nil {
			logging.Warn("session", "listing tools from upstream %s failed during registry rebuild: %v", rec.Name, err)
			continue
		}
		tools, _ := result.([]mcp.Tool)

		metas := make([]registry.ToolMetadata, 0, len(tools))
		for _, t := range tools {
			metas = append(metas, registry.ToolMetadata{
				Name:        t.Name,
				Server:      rec.Name,
				Description: t.Description,
				Tags:        rec.Config.Tags,
			})
			r.Cache.Set(rec.Name, t.Name, t)
		}
		byServer[rec.Name] = metas
	}

	discoveryMetas := make([]registry.ToolMetadata, 0, len(discoveryTools()))
	for _, t := range discoveryTools() {
		discoveryMetas = append(discoveryMetas, registry.ToolMetadata{
			Name:        t.Name,
			Server:      discoveryServerName,
			Description: t.Description,
		})
	}
	byServer[discoveryServerName] = discoveryMetas

	set, loggingCap := agg.Result()

	r.mu.Lock()
	r.reg = registry.New(r.Prefix, byServer)
	r.capSet = set
	r.capLogging = loggingCap
	r.mu.Unlock()
	return nil
}

// Registry returns the current tool registry snapshot.
func (r *Router) Registry() *registry.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg
}

// Capabilities returns the current merged capability view.
func (r *Router) Capabilities() (capabilities.Set, interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capSet, r.capLogging
}

// connectedUpstreamTags returns the tag set for every currently Connected
// upstream, for filter evaluation.
func (r *Router) connectedUpstreamTags() map[string][]string {
	out := make(map[string][]string)
	for _, rec := range r.Manager.All() {
		if rec.Status == connmgr.Connected {
			out[rec.Name] = rec.Config.Tags
		}
	}
	return out
}

// EffectiveUpstreams resolves the set of connected upstream names a
// session's filter selects, per §4.5's dispatch algorithm.
func (r *Router) EffectiveUpstreams(filter Filter) ([]string, error) {
	var selected []string
	for name, tags := range r.connectedUpstreamTags() {
		ok, err := filter.Matches(tags, r.Presets)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected, nil
}

// ListTools returns the paginated, session-filtered tool list, including
// the built-in discovery meta-tools. Pagination is only applied when
// enablePagination is set; otherwise every matching tool is returned.
func (r *Router) ListTools(filter Filter, enablePagination bool, opts registry.ListOptions) (registry.ListResult, error) {
	upstreams, err := r.EffectiveUpstreams(filter)
	if err != nil {
		return registry.ListResult{}, err
	}

	reg := r.Registry()
	if reg == nil {
		return registry.ListResult{}, nil
	}
	serverSet := stringSet(upstreams)
	serverSet[discoveryServerName] = true
	filtered := reg.FilterByServers(serverSet)

	if !enablePagination {
		opts.Limit = 0
	}
	return filtered.ListTools(opts), nil
}

func stringSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[s] = true
	}
	return out
}

// CallTool resolves exposedName to its owning upstream and forwards the
// call exactly once. It refuses destructive-looking tool names unless
// yolo mode is enabled, and never retries.
func (r *Router) CallTool(ctx context.Context, filter Filter, exposedName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	reg := r.Registry()
	if reg == nil {
		return nil, &errs.NotFoundError{Kind: "tool", Key: exposedName}
	}
	server, original, ok := reg.ResolveExposedName(exposedName)
	if !ok {
		return nil, &errs.NotFoundError{Kind: "tool", Key: exposedName}
	}

	if server == discoveryServerName {
		return r.callDiscoveryTool(original, args)
	}

	upstreams, err := r.EffectiveUpstreams(filter)
	if err != nil {
		return nil, err
	}
	if !contains(upstreams, server) {
		return nil, &errs.NotFoundError{Kind: "tool", Key: exposedName}
	}

	if r.Denylist.IsBlocked(exposedName, original) {
		return nil, &errs.InvalidParamsError{Reason: fmt.Sprintf("tool %q is destructive and blocked (enable --yolo to allow)", exposedName)}
	}

	result, err := r.Manager.ExecuteOn(ctx, server, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return c.CallTool(ctx, original, args)
	})
	if err != nil {
		var notConnected *errs.NotConnectedError
		if errors.As(err, &notConnected) {
			return nil, &errs.UpstreamUnavailableError{Server: server, Status: notConnected.Status}
		}
		return nil, err
	}
	callResult, _ := result.(*mcp.CallToolResult)
	return callResult, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListResources fans out resources/list across a session's effective
// upstream set, merges and namespaces the results, and re-sorts them by
// server then name. A per-upstream failure contributes a structured
// warning and does not abort the others.
func (r *Router) ListResources(ctx context.Context, filter Filter) ([]mcp.Resource, []string, error) {
	upstreams, err := r.EffectiveUpstreams(filter)
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		server    string
		resources []mcp.Resource
		err       error
	}
	results := make([]result, len(upstreams))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxListFanout)
	for i, name := range upstreams {
		i, name := i, name
		g.Go(func() error {
			res, err := r.Manager.ExecuteOn(gctx, name, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
				return c.ListResources(ctx)
			})
			if err != nil {
				results[i] = result{server: name, err: err}
				return nil
			}
			resources, _ := res.([]mcp.Resource)
			results[i] = result{server: name, resources: resources}
			return nil
		})
	}
	_ = g.Wait()

	index := make(map[string]itemRef)
	var warnings []string
	var merged []mcp.Resource
	for _, res := range results {
		if res.err != nil {
			warnings = append(warnings, fmt.Sprintf("upstream %s: %v", res.server, res.err))
			continue
		}
		for _, resource := range res.resources {
			exposed := registry.ExposedName(r.Prefix, res.server, resource.URI)
			index[exposed] = itemRef{server: res.server, original: resource.URI}
			namespaced := resource
			namespaced.URI = exposed
			merged = append(merged, namespaced)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].URI < merged[j].URI })

	r.resIndexMu.Lock()
	r.resIndex = index
	r.resIndexMu.Unlock()

	return merged, warnings, nil
}

// ReadResource resolves a namespaced URI (as returned by ListResources) and
// reads it from its owning upstream exactly once.
func (r *Router) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	r.resIndexMu.Lock()
	ref, ok := r.resIndex[uri]
	r.resIndexMu.Unlock()
	if !ok {
		return nil, &errs.NotFoundError{Kind: "resource", Key: uri}
	}

	result, err := r.Manager.ExecuteOn(ctx, ref.server, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return c.ReadResource(ctx, ref.original)
	})
	if err != nil {
		var notConnected *errs.NotConnectedError
		if errors.As(err, &notConnected) {
			return nil, &errs.UpstreamUnavailableError{Server: ref.server, Status: notConnected.Status}
		}
		return nil, err
	}
	read, _ := result.(*mcp.ReadResourceResult)
	return read, nil
}

// ListPrompts fans out prompts/list the same way ListResources does.
func (r *Router) ListPrompts(ctx context.Context, filter Filter) ([]mcp.Prompt, []string, error) {
	upstreams, err := r.EffectiveUpstreams(filter)
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		server  string
		prompts []mcp.Prompt
		err     error
	}
	results := make([]result, len(upstreams))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxListFanout)
	for i, name := range upstreams {
		i, name := i, name
		g.Go(func() error {
			res, err := r.Manager.ExecuteOn(gctx, name, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
				return c.ListPrompts(ctx)
			})
			if err != nil {
				results[i] = result{server: name, err: err}
				return nil
			}
			prompts, _ := res.([]mcp.Prompt)
			results[i] = result{server: name, prompts: prompts}
			return nil
		})
	}
	_ = g.Wait()

	index := make(map[string]itemRef)
	var warnings []string
	var merged []mcp.Prompt
	for _, res := range results {
		if res.err != nil {
			warnings = append(warnings, fmt.Sprintf("upstream %s: %v", res.server, res.err))
			continue
		}
		for _, prompt := range res.prompts {
			exposed := registry.ExposedName(r.Prefix, res.server, prompt.Name)
			index[exposed] = itemRef{server: res.server, original: prompt.Name}
			namespaced := prompt
			namespaced.Name = exposed
			merged = append(merged, namespaced)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })

	r.resIndexMu.Lock()
	r.promptIdx = index
	r.resIndexMu.Unlock()

	return merged, warnings, nil
}

// GetPrompt resolves a namespaced prompt name and fetches it exactly once.
func (r *Router) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	r.resIndexMu.Lock()
	ref, ok := r.promptIdx[name]
	r.resIndexMu.Unlock()
	if !ok {
		return nil, &errs.NotFoundError{Kind: "prompt", Key: name}
	}

	result, err := r.Manager.ExecuteOn(ctx, ref.server, func(ctx context.Context, c mcpserver.MCPClient) (interface{}, error) {
		return c.GetPrompt(ctx, ref.original, args)
	})
	if err != nil {
		var notConnected *errs.NotConnectedError
		if errors.As(err, &notConnected) {
			return nil, &errs.UpstreamUnavailableError{Server: ref.server, Status: notConnected.Status}
		}
		return nil, err
	}
	prompt, _ := result.(*mcp.GetPromptResult)
	return prompt, nil
}

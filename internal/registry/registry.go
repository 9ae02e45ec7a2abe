package registry

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"mcpaggregator/pkg/logging"
)

// maxListLimit is the hard cap on listTools' limit option, regardless of
// what a caller requests.
const maxListLimit = 5000

// Registry is an immutable-on-read index of tool metadata. Build a fresh
// one whenever the upstream set or any upstream's tool list changes;
// existing Registry values are never mutated in place.
type Registry struct {
	prefix  string
	tools   []ToolMetadata
	exposed map[string]ToolMetadata // exposed name -> metadata, for reverse lookups
}

// New builds a Registry from a per-server tool listing. prefix selects the
// exposed-name formatter's middle segment (default "1mcp").
func New(prefix string, byServer map[string][]ToolMetadata) *Registry {
	if prefix == "" {
		prefix = "1mcp"
	}

	var servers []string
	for s := range byServer {
		servers = append(servers, s)
	}
	sort.Strings(servers)

	r := &Registry{
		prefix:  prefix,
		exposed: make(map[string]ToolMetadata),
	}
	for _, s := range servers {
		tools := append([]ToolMetadata(nil), byServer[s]...)
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		for _, t := range tools {
			r.tools = append(r.tools, t)
			r.exposed[ExposedName(prefix, t.Server, t.Name)] = t
		}
	}
	return r
}

// ResolveExposedName maps a public tool name back to its owning server and
// original name.
func (r *Registry) ResolveExposedName(exposed string) (server, original string, ok bool) {
	t, found := r.exposed[exposed]
	if !found {
		return "", "", false
	}
	return t.Server, t.Name, true
}

// ExposedNameFor returns the name this registry would advertise for a tool.
func (r *Registry) ExposedNameFor(server, tool string) string {
	return ExposedName(r.prefix, server, tool)
}

// ListOptions filters and paginates listTools.
type ListOptions struct {
	Server  string
	Pattern string
	Tag     string
	Limit   int
	Cursor  string
}

// ListResult is the paginated outcome of listTools.
type ListResult struct {
	Tools      []ToolMetadata
	TotalCount int
	HasMore    bool
	NextCursor string
}

// cursorState is the opaque, base64-JSON pagination cursor. Its fields echo
// the filter that produced it so a client resuming pagination doesn't need
// to resend filter parameters (and, if it does, the embedded filter always
// wins: cursor state is authoritative over caller-passed filters on that
// point, matching the prior page's view).
type cursorState struct {
	Offset  int    `json:"offset"`
	Server  string `json:"server,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

// ListTools filters, then paginates, the registry's tools. Filters commute:
// applying server+pattern+tag in any order yields the same result set.
func (r *Registry) ListTools(opts ListOptions) ListResult {
	offset := 0
	server, pattern, tag := opts.Server, opts.Pattern, opts.Tag
	if opts.Cursor != "" {
		if cs, ok := decodeCursor(opts.Cursor); ok {
			offset = cs.Offset
			server, pattern, tag = cs.Server, cs.Pattern, cs.Tag
		} else {
			logging.Warn("registry", "unparseable pagination cursor, resetting to offset 0")
		}
	}

	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	matcher, patternErr := compileGlob(pattern)

	var filtered []ToolMetadata
	for _, t := range r.tools {
		if server != "" && t.Server != server {
			continue
		}
		if tag != "" && !hasTag(t.Tags, tag) {
			continue
		}
		if pattern != "" {
			if patternErr != nil || !matcher.MatchString(t.Name) {
				continue
			}
		}
		filtered = append(filtered, t)
	}

	total := len(filtered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	result := ListResult{
		Tools:      append([]ToolMetadata(nil), filtered[offset:end]...),
		TotalCount: total,
		HasMore:    end < total,
	}
	if result.HasMore {
		result.NextCursor = encodeCursor(cursorState{Offset: end, Server: server, Pattern: pattern, Tag: tag})
	}
	return result
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// compileGlob turns a pattern using only "*" and "?" as wildcards into an
// anchored regexp; every other regex metacharacter is escaped literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func encodeCursor(cs cursorState) string {
	data, err := json.Marshal(cs)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

func decodeCursor(cursor string) (cursorState, bool) {
	data, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return cursorState{}, false
	}
	var cs cursorState
	if err := json.Unmarshal(data, &cs); err != nil {
		return cursorState{}, false
	}
	return cs, true
}

// Servers returns the distinct set of server names present in the registry,
// sorted.
func (r *Registry) Servers() []string {
	seen := make(map[string]bool)
	var servers []string
	for _, t := range r.tools {
		if !seen[t.Server] {
			seen[t.Server] = true
			servers = append(servers, t.Server)
		}
	}
	sort.Strings(servers)
	return servers
}

// Tags returns the distinct set of tags present across all tools, sorted.
func (r *Registry) Tags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, t := range r.tools {
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// CountByServer returns the number of tools contributed by each server.
func (r *Registry) CountByServer() map[string]int {
	counts := make(map[string]int)
	for _, t := range r.tools {
		counts[t.Server]++
	}
	return counts
}

// HasTool reports whether (server, name) is present.
func (r *Registry) HasTool(server, name string) bool {
	_, ok := r.GetTool(server, name)
	return ok
}

// GetTool returns the metadata for (server, name), if present.
func (r *Registry) GetTool(server, name string) (ToolMetadata, bool) {
	for _, t := range r.tools {
		if t.Server == server && t.Name == name {
			return t, true
		}
	}
	return ToolMetadata{}, false
}

// GroupByServer partitions the registry's tools by owning server.
func (r *Registry) GroupByServer() map[string][]ToolMetadata {
	groups := make(map[string][]ToolMetadata)
	for _, t := range r.tools {
		groups[t.Server] = append(groups[t.Server], t)
	}
	return groups
}

// CategorizeByTags groups tools by their first tag; tools with no tags are
// filed under "uncategorized".
func (r *Registry) CategorizeByTags() map[string][]ToolMetadata {
	groups := make(map[string][]ToolMetadata)
	for _, t := range r.tools {
		category := "uncategorized"
		if len(t.Tags) > 0 {
			category = t.Tags[0]
		}
		groups[category] = append(groups[category], t)
	}
	return groups
}

// FilterByServers returns a new Registry restricted to the given set of
// server names.
func (r *Registry) FilterByServers(servers map[string]bool) *Registry {
	filtered := make(map[string][]ToolMetadata)
	for server, tools := range r.GroupByServer() {
		if servers[server] {
			filtered[server] = tools
		}
	}
	return New(r.prefix, filtered)
}

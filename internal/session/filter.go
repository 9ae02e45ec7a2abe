// Package session implements the Inbound Session Router (C5): per-session
// tag/preset filter resolution, session creation and restoration for the
// streamable HTTP transport, and dispatch of MCP requests to the upstream
// set a session's filter selects.
package session

import (
	"fmt"
	"strings"
)

// FilterKind identifies which of the five filter shapes a session carries.
type FilterKind string

const (
	FilterNone       FilterKind = "none"
	FilterTagList    FilterKind = "tag_list"
	FilterTagExpr    FilterKind = "tag_expr"
	FilterPresetRef  FilterKind = "preset_ref"
	FilterTagQuery   FilterKind = "tag_query"
)

// Filter selects which upstreams a session sees. Exactly the fields
// relevant to Kind are populated; the rest are zero.
type Filter struct {
	Kind FilterKind

	// Tags is the OR list for FilterTagList.
	Tags []string

	// Expression is a boolean tag expression for FilterTagExpr, e.g.
	// "(a OR b) AND NOT c".
	Expression string

	// PresetName names a saved filter for FilterPresetRef.
	PresetName string

	// Query is a parsed JSON tag-query DSL tree for FilterTagQuery.
	Query *TagQueryNode
}

// NoFilter is the zero filter: every upstream matches.
var NoFilter = Filter{Kind: FilterNone}

// Matches reports whether an upstream carrying tags satisfies f. presets
// resolves a FilterPresetRef filter's underlying filter; it may be nil if
// f.Kind != FilterPresetRef.
func (f Filter) Matches(tags []string, presets PresetStore) (bool, error) {
	switch f.Kind {
	case "", FilterNone:
		return true, nil

	case FilterTagList:
		if len(f.Tags) == 0 {
			return true, nil
		}
		set := tagSet(tags)
		for _, want := range f.Tags {
			if set[want] {
				return true, nil
			}
		}
		return false, nil

	case FilterTagExpr:
		expr, err := ParseTagExpression(f.Expression)
		if err != nil {
			return false, err
		}
		return expr.Evaluate(tagSet(tags)), nil

	case FilterTagQuery:
		if f.Query == nil {
			return true, nil
		}
		return f.Query.Evaluate(tagSet(tags)), nil

	case FilterPresetRef:
		if presets == nil {
			return false, fmt.Errorf("preset filter %q requires a preset store", f.PresetName)
		}
		preset, ok := presets.Get(f.PresetName)
		if !ok {
			return false, fmt.Errorf("unknown preset %q", f.PresetName)
		}
		return preset.Filter.Matches(tags, presets)

	default:
		return false, fmt.Errorf("unknown filter kind %q", f.Kind)
	}
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.TrimSpace(t)] = true
	}
	return set
}

// ParseFromQueryParams resolves a Filter per §6's priority order: preset >
// filter (boolean expression) > tags (comma-separated OR list). An empty
// request yields NoFilter.
func ParseFromQueryParams(preset, filterExpr, tagsCSV string) (Filter, error) {
	if preset != "" {
		return Filter{Kind: FilterPresetRef, PresetName: preset}, nil
	}
	if filterExpr != "" {
		if _, err := ParseTagExpression(filterExpr); err != nil {
			return Filter{}, fmt.Errorf("invalid filter expression: %w", err)
		}
		return Filter{Kind: FilterTagExpr, Expression: filterExpr}, nil
	}
	if tagsCSV != "" {
		var tags []string
		for _, t := range strings.Split(tagsCSV, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return Filter{Kind: FilterTagList, Tags: tags}, nil
	}
	return NoFilter, nil
}

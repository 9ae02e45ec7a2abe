package session

import (
	"encoding/json"
	"fmt"
)

// TagQueryNode is one node of the JSON tag-query DSL tree. Exactly one of
// Tag, And, Or, Not is populated per node.
//
// Accepted shapes:
//
//	{"tag": "frontend"}
//	{"and": [{"tag": "a"}, {"tag": "b"}]}
//	{"or":  [{"tag": "a"}, {"tag": "b"}]}
//	{"not": {"tag": "deprecated"}}
type TagQueryNode struct {
	Tag string          `json:"tag,omitempty"`
	And []*TagQueryNode `json:"and,omitempty"`
	Or  []*TagQueryNode `json:"or,omitempty"`
	Not *TagQueryNode   `json:"not,omitempty"`
}

// ParseTagQuery decodes a JSON tag-query DSL document into an evaluable tree.
func ParseTagQuery(raw []byte) (*TagQueryNode, error) {
	var node TagQueryNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parsing tag query: %w", err)
	}
	if err := node.validate(); err != nil {
		return nil, err
	}
	return &node, nil
}

func (n *TagQueryNode) validate() error {
	count := 0
	if n.Tag != "" {
		count++
	}
	if n.And != nil {
		count++
	}
	if n.Or != nil {
		count++
	}
	if n.Not != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("tag query node must have exactly one of tag/and/or/not")
	}
	for _, child := range n.And {
		if err := child.validate(); err != nil {
			return err
		}
	}
	for _, child := range n.Or {
		if err := child.validate(); err != nil {
			return err
		}
	}
	if n.Not != nil {
		return n.Not.validate()
	}
	return nil
}

// Evaluate reports whether tags satisfies the query tree.
func (n *TagQueryNode) Evaluate(tags map[string]bool) bool {
	if n == nil {
		return true
	}
	switch {
	case n.Tag != "":
		return tags[n.Tag]
	case n.And != nil:
		for _, child := range n.And {
			if !child.Evaluate(tags) {
				return false
			}
		}
		return true
	case n.Or != nil:
		for _, child := range n.Or {
			if child.Evaluate(tags) {
				return true
			}
		}
		return false
	case n.Not != nil:
		return !n.Not.Evaluate(tags)
	default:
		return true
	}
}

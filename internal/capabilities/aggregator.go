// Package capabilities builds the merged capability view advertised to
// downstream clients out of each upstream's reported capability set.
package capabilities

import (
	"encoding/json"
	"sort"

	"mcpaggregator/pkg/logging"
)

// Category names a capability bucket. Four of the five are string->value
// maps; logging is a bare scalar handled separately.
type Category string

const (
	CategoryResources    Category = "resources"
	CategoryTools        Category = "tools"
	CategoryPrompts      Category = "prompts"
	CategoryExperimental Category = "experimental"
)

var categories = []Category{CategoryResources, CategoryTools, CategoryPrompts, CategoryExperimental}

// notificationKeys are the reserved boolean keys whose semantics differ
// from an ordinary capability value: both sides being booleans ORs them
// instead of taking the incoming value outright.
var notificationKeys = map[string]bool{
	"listChanged": true,
	"subscribe":   true,
}

// Set is one upstream's (or the aggregate's) capability view.
type Set map[Category]map[string]interface{}

// Aggregate accumulates upstream capability sets into a merged view,
// deterministic over the order upstreams are added.
type Aggregate struct {
	merged  Set
	logging interface{}
}

// NewAggregate starts an empty aggregate.
func NewAggregate() *Aggregate {
	merged := make(Set, len(categories))
	for _, c := range categories {
		merged[c] = make(map[string]interface{})
	}
	return &Aggregate{merged: merged}
}

// Merge folds one upstream's capability set (and its scalar logging
// capability) into the aggregate. Call once per upstream, in the same order
// every time, for a reproducible result. A nil incoming set is treated as
// empty.
func (a *Aggregate) Merge(upstream string, incoming Set, loggingCapability interface{}) {
	if loggingCapability != nil {
		a.logging = loggingCapability
	}

	for _, category := range categories {
		incomingCat := incoming[category]
		if incomingCat == nil {
			continue
		}
		existingCat := a.merged[category]

		var conflictKeys []string
		for k, incomingVal := range sortedEntries(incomingCat) {
			existingVal, existed := existingCat[k]
			if !existed {
				existingCat[k] = incomingVal
				continue
			}

			if notificationKeys[k] {
				// Notification keys are legitimately independent across
				// upstreams (one server may support listChanged while
				// another doesn't): OR them together and never log the
				// divergence as a conflict.
				existingBool, existingIsBool := existingVal.(bool)
				incomingBool, incomingIsBool := incomingVal.(bool)
				if existingIsBool && incomingIsBool {
					existingCat[k] = existingBool || incomingBool
				} else {
					existingCat[k] = incomingVal
				}
				continue
			}

			existingCat[k] = incomingVal
			if !canonicalEqual(existingVal, incomingVal) {
				conflictKeys = append(conflictKeys, k)
				logging.Warn("capabilities", "capability %q for upstream %s in category %s overwrote a differing existing value", k, upstream, category)
			}
		}

		if len(conflictKeys) > 0 {
			sort.Strings(conflictKeys)
			logging.Info("capabilities", "upstream %s had %d conflicting keys in category %s: %v", upstream, len(conflictKeys), category, conflictKeys)
		}
	}
}

// sortedEntries returns a map unchanged; it exists so Merge iterates in a
// name that documents intent (map iteration order in Go is inherently
// unordered, so determinism here depends on the caller invoking Merge for
// upstreams in a fixed, stable order, not on key order within one call).
func sortedEntries(m map[string]interface{}) map[string]interface{} {
	return m
}

// canonicalEqual compares two capability values by canonical JSON
// serialization, tolerating differing map key orders or numeric types that
// round-trip to the same JSON.
func canonicalEqual(a, b interface{}) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}

// Result returns the merged capability set and the scalar logging value.
func (a *Aggregate) Result() (Set, interface{}) {
	return a.merged, a.logging
}

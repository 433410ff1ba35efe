// Package reconcile computes the insert/delete sets that bring a local store
// in line with an authoritative feed, keyed by row identifier.
package reconcile

import (
	"sort"

	"finanzas/internal/core"
)

// Plan lists the feed rows missing locally and the local identifiers no
// longer present in the feed.
type Plan struct {
	Insert []core.FeedRow
	Delete []string
}

// Diff is pure: rows without an identifier are ignored, Insert keeps feed
// order and the first occurrence of a repeated identifier, Delete is sorted.
// Content changes under a stable identifier are not detected.
func Diff(external []core.FeedRow, local map[string]struct{}) Plan {
	var plan Plan

	seen := make(map[string]struct{}, len(external))
	for _, row := range external {
		id := row.ID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := local[id]; !ok {
			plan.Insert = append(plan.Insert, row)
		}
	}

	for id := range local {
		if _, ok := seen[id]; !ok {
			plan.Delete = append(plan.Delete, id)
		}
	}
	sort.Strings(plan.Delete)

	return plan
}

// IDs returns the distinct non-empty identifiers of the given rows.
func IDs(rows []core.FeedRow) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if id := r.ID(); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Delete) == 0
}

// InsertIDs returns the identifiers of the rows to insert, in plan order.
func (p Plan) InsertIDs() []string {
	ids := make([]string, len(p.Insert))
	for i, r := range p.Insert {
		ids[i] = r.ID()
	}
	return ids
}

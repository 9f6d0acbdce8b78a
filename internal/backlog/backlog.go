// Package backlog computes the outstanding work for a run: every
// inventoried photo that has not yet been completed.
package backlog

import (
	"sort"

	"photo-tagger/internal/metrics"
)

// Item is one unit of outstanding work.
type Item struct {
	Key  string
	Path string
}

// Compute returns inventory minus completed, ordered lexicographically by
// key. The ordering is deterministic for a fixed inventory/completion
// pair, so repeated runs produce identical batch boundaries and whatever
// was not processed today is first in line tomorrow.
func Compute(inventory map[string]string, completed map[string]bool) []Item {
	items := make([]Item, 0, len(inventory))
	for key, path := range inventory {
		if !completed[key] {
			items = append(items, Item{Key: key, Path: path})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})

	metrics.BacklogSize.Set(float64(len(items)))
	return items
}

package collect

import (
	"sort"

	"github.com/refscout/refscout/pkg/video"
)

// Pool is the candidate list gathered for one platform.
type Pool struct {
	Platform video.Platform
	Items    []video.Item
}

// sortByScore orders items by popularity score, highest first, keeping
// arrival order for ties.
func sortByScore(items []video.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Metrics.Score > items[j].Metrics.Score
	})
}

// Select takes one item per platform per round, in pool order, until target
// items are chosen or every pool is empty. Pools must already be sorted.
func Select(pools []Pool, target int) []video.Item {
	if target <= 0 {
		return nil
	}
	next := make([]int, len(pools))
	selected := make([]video.Item, 0, target)

	for len(selected) < target {
		progressed := false
		for i, p := range pools {
			if len(selected) >= target {
				break
			}
			if next[i] >= len(p.Items) {
				continue
			}
			selected = append(selected, p.Items[next[i]])
			next[i]++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return selected
}

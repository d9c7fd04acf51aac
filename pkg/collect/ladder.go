package collect

import (
	"context"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/query"
	"github.com/refscout/refscout/pkg/video"
)

const (
	// MaxPages caps how many pages one rung may request from one platform.
	MaxPages = 5
	// FetchMultiplier inflates the page size to absorb duplicates.
	FetchMultiplier = 2
)

// drain pages through one rung on one platform until enough fresh items are
// found, the platform runs out of pages, or MaxPages is reached. A failed call
// ends the rung and keeps what was gathered so far.
func drain(ctx context.Context, s platforms.Searcher, v query.Variant, target int, known *KnownSet, log Logger) []video.Item {
	var (
		items []video.Item
		seen  = make(map[string]bool)
		fresh int
		token string
	)

	for page := 1; page <= MaxPages; page++ {
		res, err := s.Search(ctx, platforms.SearchRequest{
			Query:          v.Query,
			Limit:          target * FetchMultiplier,
			Sort:           v.Sort,
			PublishedAfter: v.PublishedAfter,
			PageToken:      token,
			Duration:       v.Duration,
		})
		if err != nil {
			log.Warnf("%s search failed on rung %s page %d: %v", s.Name(), v.Label, page, err)
			break
		}

		for _, it := range res.Items {
			if it.URL == "" || seen[it.URL] {
				continue
			}
			if it.Platform == "" {
				it.Platform = s.Name()
			}
			seen[it.URL] = true
			items = append(items, it)
			if known.IsFresh(it.URL) {
				fresh++
			}
		}

		log.Debugf("%s rung %s page %d: %d items, %d fresh so far", s.Name(), v.Label, page, len(res.Items), fresh)

		if fresh >= target || res.NextPageToken == "" {
			break
		}
		token = res.NextPageToken
	}
	return items
}

// searchPlatform walks the ladder for one platform. Every rung's results are
// folded into the pool; the walk stops once the platform has accepted target
// fresh items. The returned pool also holds items that were already known.
func searchPlatform(ctx context.Context, s platforms.Searcher, ladder []query.Variant, target int, known *KnownSet, log Logger) (pool []video.Item, accepted int) {
	seen := make(map[string]bool)

	for _, v := range ladder {
		if ctx.Err() != nil {
			break
		}
		batch := drain(ctx, s, v, target, known, log)

		added := 0
		for _, it := range batch {
			if seen[it.URL] {
				continue
			}
			seen[it.URL] = true
			pool = append(pool, it)
			added++
			if known.Accept(it) {
				accepted++
			}
		}

		log.Debugf("%s rung %s added %d items, %d/%d fresh", s.Name(), v.Label, added, accepted, target)
		if accepted >= target {
			break
		}
	}
	return pool, accepted
}

package dev

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
)

// Offline catalog for `collect --dev`. Output only depends on the platform and
// the request, so repeated runs exercise deduplication against the database.

const catalogSize = 12

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type Searcher struct {
	platform video.Platform
	catalog  []video.Item
}

func New(p video.Platform) *Searcher {
	return &Searcher{platform: p, catalog: buildCatalog(p)}
}

func (s *Searcher) Name() video.Platform { return s.platform }

func (s *Searcher) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	if err := ctx.Err(); err != nil {
		return platforms.Page{}, err
	}
	var matching []video.Item
	for _, it := range s.catalog {
		if !req.PublishedAfter.IsZero() && it.PublishedAt.Before(req.PublishedAfter) {
			continue
		}
		if req.Duration == platforms.DurationShort && it.DurationSeconds >= 240 {
			continue
		}
		it.Tags = []string{req.Query}
		matching = append(matching, it)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	start, _ := strconv.Atoi(req.PageToken)
	if start >= len(matching) {
		return platforms.Page{}, nil
	}
	end := start + limit
	page := platforms.Page{}
	if end < len(matching) {
		page.NextPageToken = strconv.Itoa(end)
	} else {
		end = len(matching)
	}
	page.Items = append(page.Items, matching[start:end]...)
	return page, nil
}

func buildCatalog(p video.Platform) []video.Item {
	items := make([]video.Item, 0, catalogSize)
	for i := 0; i < catalogSize; i++ {
		views := int64((i + 1) * 1000)
		likes := int64((i + 1) * 40)
		it := video.Item{
			URL:             catalogURL(p, i),
			Title:           fmt.Sprintf("%s reference #%d", p, i+1),
			Description:     "Offline catalog entry",
			ThumbnailURL:    fmt.Sprintf("https://example.com/thumbs/%s/%d.jpg", p, i+1),
			Author:          fmt.Sprintf("Studio %c", 'A'+i%4),
			Platform:        p,
			DurationSeconds: 30 + i*25,
			PublishedAt:     epoch.AddDate(0, -i, 0),
		}
		it.Metrics = video.Metrics{Views: views, Likes: likes, Comments: int64(i)}
		it.Metrics.Score = video.PopularityScore(views, likes, 0.7, 0.3)
		items = append(items, it)
	}
	return items
}

func catalogURL(p video.Platform, i int) string {
	id := fmt.Sprintf("dev%08d", i)
	switch p {
	case video.YouTube:
		return video.CanonicalURL(video.Ref{Platform: p, ID: id})
	case video.Vimeo, video.Behance:
		return video.CanonicalURL(video.Ref{Platform: p, ID: strconv.Itoa(900000 + i)})
	}
	return fmt.Sprintf("https://example.com/%s/%s", p, id)
}

// Package metadata turns a pasted video link into a prefilled video.Item.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
)

var ErrUnsupportedURL = errors.New("unsupported video url")

// Lookuper fetches one video. YouTube and Vimeo take an id, Behance the page URL.
type Lookuper interface {
	Lookup(ctx context.Context, key string) (video.Item, error)
}

type Resolver struct {
	YouTube Lookuper
	Vimeo   Lookuper
	Behance Lookuper
}

// Resolve classifies rawURL and fetches its metadata from the owning platform.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (video.Item, error) {
	ref, ok := video.ParseURL(rawURL)
	if !ok {
		return video.Item{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}

	var (
		l   Lookuper
		key = ref.ID
	)
	switch ref.Platform {
	case video.YouTube:
		l = r.YouTube
	case video.Vimeo:
		l = r.Vimeo
	case video.Behance:
		l, key = r.Behance, normalizeLink(rawURL)
	}
	if l == nil {
		return video.Item{}, fmt.Errorf("%s lookup: %w", ref.Platform, platforms.ErrNotConfigured)
	}

	it, err := l.Lookup(ctx, key)
	if err != nil {
		return video.Item{}, fmt.Errorf("%s lookup: %w", ref.Platform, err)
	}
	it.Platform = ref.Platform
	if ref.Platform != video.Behance {
		it.URL = video.CanonicalURL(ref)
	}
	return it, nil
}

func normalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

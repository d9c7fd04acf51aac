package platforms

import (
	"context"
	"errors"
	"time"

	"github.com/refscout/refscout/pkg/video"
)

// ErrNotConfigured is returned by adapters that lack the credentials they need.
var ErrNotConfigured = errors.New("platform credentials not configured")

// Sort selects the result ordering requested from a platform.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortPopular   Sort = "popular"
	SortRecent    Sort = "recent"
)

// Duration filters results by length. The zero value means any length.
type Duration string

const (
	DurationAny    Duration = ""
	DurationShort  Duration = "short"
	DurationMedium Duration = "medium"
	DurationLong   Duration = "long"
)

// SearchRequest is one page request sent to a platform.
type SearchRequest struct {
	Query          string
	Limit          int
	Sort           Sort
	PublishedAfter time.Time // zero = no bound
	PageToken      string
	Duration       Duration
}

// Page is one page of results. An empty NextPageToken means no more pages.
type Page struct {
	Items         []video.Item
	NextPageToken string
}

// AuthConfig carries optional authentication inputs.
type AuthConfig struct {
	APIKey string
	Token  string
	Proxy  string
}

// Searcher abstracts one platform's search API. Implementations translate
// the request into the platform's own parameters and return normalized items
// whose URL is the platform's canonical link.
type Searcher interface {
	Name() video.Platform
	Search(ctx context.Context, req SearchRequest) (Page, error)
}

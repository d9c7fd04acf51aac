// Package behance searches Behance projects tagged as motion work.
package behance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	strip "github.com/grokify/html-strip-tags-go"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
	"github.com/refscout/refscout/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://api.behance.net/v2"
	maxPageSize    = 48
	querySuffix    = " motion graphics animation"
	fieldFilter    = "motion graphics|animation|video"

	// Projects carry no runtime.
	fixedDuration = 60

	viewWeight = 0.6
	likeWeight = 0.4
)

type Option func(*Searcher)

// WithBaseURL points the searcher at another API root (useful for testing).
func WithBaseURL(u string) Option {
	return func(s *Searcher) { s.baseURL = strings.TrimRight(u, "/") }
}

type Searcher struct {
	apiKey  string
	baseURL string
	client  *whttp.Client
}

func New(apiKey string, client *whttp.Client, opts ...Option) (*Searcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("behance: %w", platforms.ErrNotConfigured)
	}
	s := &Searcher{apiKey: apiKey, baseURL: defaultBaseURL, client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Searcher) Name() video.Platform { return video.Behance }

// Search ignores req.Duration.
func (s *Searcher) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	page := 1
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 1 {
			return platforms.Page{}, fmt.Errorf("behance: invalid page token %q", req.PageToken)
		}
		page = n
	}

	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("q", req.Query+querySuffix)
	q.Set("sort", sortParam(req.Sort))
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("field", fieldFilter)

	res, err := s.client.Send(ctx, &whttp.WHTTPReq{
		Method:  http.MethodGet,
		URL:     s.baseURL + "/projects?" + q.Encode(),
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return platforms.Page{}, fmt.Errorf("behance request: %w", err)
	}
	if !res.OK() {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return platforms.Page{}, fmt.Errorf("behance API key rejected: %w", platforms.ErrNotConfigured)
		}
		return platforms.Page{}, fmt.Errorf("behance API error (status %d): %s",
			res.StatusCode, gjson.Get(res.BodyString, "http_code").String())
	}

	projects := gjson.Get(res.BodyString, "projects").Array()
	var items []video.Item
	for _, p := range projects {
		it := toItem(p, req.Query)
		if it.URL == "" {
			continue
		}
		if !req.PublishedAfter.IsZero() && it.PublishedAt.Before(req.PublishedAfter) {
			continue
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Metrics.Score > items[j].Metrics.Score })

	result := platforms.Page{Items: items}
	if len(projects) >= limit {
		result.NextPageToken = strconv.Itoa(page + 1)
	}
	return result, nil
}

// Lookup scrapes a public project page. The API has no by-url endpoint.
func (s *Searcher) Lookup(ctx context.Context, pageURL string) (video.Item, error) {
	return NewPageScraper(s.client).Lookup(ctx, pageURL)
}

// PageScraper reads project metadata from public pages and needs no API key.
type PageScraper struct {
	client *whttp.Client
}

func NewPageScraper(client *whttp.Client) *PageScraper {
	return &PageScraper{client: client}
}

func (p *PageScraper) Lookup(ctx context.Context, pageURL string) (video.Item, error) {
	res, err := p.client.Send(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: pageURL})
	if err != nil {
		return video.Item{}, fmt.Errorf("behance page: %w", err)
	}
	if !res.OK() {
		return video.Item{}, fmt.Errorf("behance page returned status %d", res.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.BodyString))
	if err != nil {
		return video.Item{}, fmt.Errorf("parsing behance page: %w", err)
	}

	meta := map[string]string{}
	doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		key, _ := m.Attr("property")
		if key == "" {
			key, _ = m.Attr("name")
		}
		if content, ok := m.Attr("content"); ok && key != "" {
			meta[key] = strings.TrimSpace(content)
		}
	})

	title := meta["og:title"]
	if title == "" {
		title = res.HTTPTitle
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	author := meta["author"]
	if author == "" {
		author = "Unknown"
	}

	return video.Item{
		URL:             pageURL,
		Title:           title,
		Description:     strings.TrimSpace(strip.StripTags(meta["og:description"])),
		ThumbnailURL:    meta["og:image"],
		Author:          author,
		Platform:        video.Behance,
		DurationSeconds: fixedDuration,
	}, nil
}

func toItem(p gjson.Result, query string) video.Item {
	link := p.Get("url").Str
	if link == "" {
		return video.Item{}
	}
	author := p.Get("owners.0.display_name").Str
	if author == "" {
		author = "Unknown"
	}
	it := video.Item{
		URL:             link,
		Title:           p.Get("name").Str,
		Description:     strings.TrimSpace(strip.StripTags(p.Get("description").Str)),
		ThumbnailURL:    p.Get(`covers.404`).Str,
		Author:          author,
		Platform:        video.Behance,
		DurationSeconds: fixedDuration,
		Tags:            []string{query},
	}
	if ts := p.Get("published_on").Int(); ts > 0 {
		it.PublishedAt = time.Unix(ts, 0).UTC()
	}
	if it.ThumbnailURL == "" {
		it.ThumbnailURL = p.Get("covers.original").Str
	}
	it.Metrics.Views = p.Get("stats.views").Int()
	it.Metrics.Likes = p.Get("stats.appreciations").Int()
	it.Metrics.Comments = p.Get("stats.comments").Int()
	it.Metrics.Score = video.PopularityScore(it.Metrics.Views, it.Metrics.Likes, viewWeight, likeWeight)
	for _, f := range p.Get("fields").Array() {
		it.Tags = append(it.Tags, f.Str)
	}
	return it
}

func sortParam(s platforms.Sort) string {
	switch s {
	case platforms.SortPopular:
		return "views"
	case platforms.SortRecent:
		return "published_date"
	}
	return "appreciations"
}

// Package vimeo searches the Vimeo API.
package vimeo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	strip "github.com/grokify/html-strip-tags-go"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
	"github.com/refscout/refscout/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://api.vimeo.com"
	maxPageSize    = 100
	fields         = "uri,name,description,link,duration,pictures.sizes,user.name,stats.plays,metadata.connections.likes.total,metadata.connections.comments.total,created_time,release_time,tags.name"

	// Vimeo has no duration filter, so length buckets are applied locally.
	shortMaxSeconds  = 240
	mediumMaxSeconds = 1200

	viewWeight = 0.7
	likeWeight = 0.3
)

type Option func(*Searcher)

// WithBaseURL points the searcher at another API root (useful for testing).
func WithBaseURL(u string) Option {
	return func(s *Searcher) { s.baseURL = strings.TrimRight(u, "/") }
}

type Searcher struct {
	token   string
	baseURL string
	client  *whttp.Client
}

// New returns a searcher using a personal access token.
func New(token string, client *whttp.Client, opts ...Option) (*Searcher, error) {
	if token == "" {
		return nil, fmt.Errorf("vimeo: %w", platforms.ErrNotConfigured)
	}
	s := &Searcher{token: token, baseURL: defaultBaseURL, client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Searcher) Name() video.Platform { return video.Vimeo }

func (s *Searcher) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	page := 1
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 1 {
			return platforms.Page{}, fmt.Errorf("vimeo: invalid page token %q", req.PageToken)
		}
		page = n
	}

	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", sortParam(req.Sort))
	q.Set("direction", "desc")
	q.Set("filter", "embeddable")
	q.Set("filter_embeddable", "true")
	q.Set("fields", fields)

	body, err := s.get(ctx, "/videos?"+q.Encode())
	if err != nil {
		return platforms.Page{}, err
	}

	var items []video.Item
	for _, v := range gjson.Get(body, "data").Array() {
		it := toItem(v)
		if it.URL == "" || !matchesDuration(it.DurationSeconds, req.Duration) {
			continue
		}
		if !req.PublishedAfter.IsZero() && it.PublishedAt.Before(req.PublishedAfter) {
			continue
		}
		it.Tags = append([]string{req.Query}, it.Tags...)
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Metrics.Score > items[j].Metrics.Score })

	result := platforms.Page{Items: items}
	if next := gjson.Get(body, "paging.next"); next.Exists() && next.Type != gjson.Null && next.Str != "" {
		result.NextPageToken = strconv.Itoa(page + 1)
	}
	return result, nil
}

// Lookup fetches a single video by its numeric id.
func (s *Searcher) Lookup(ctx context.Context, id string) (video.Item, error) {
	body, err := s.get(ctx, "/videos/"+url.PathEscape(id)+"?fields="+url.QueryEscape(fields))
	if err != nil {
		return video.Item{}, err
	}
	it := toItem(gjson.Parse(body))
	if it.URL == "" {
		return video.Item{}, fmt.Errorf("vimeo video %s not found", id)
	}
	return it, nil
}

func (s *Searcher) get(ctx context.Context, pathAndQuery string) (string, error) {
	res, err := s.client.Send(ctx, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    s.baseURL + pathAndQuery,
		Headers: []whttp.WHTTPHeader{
			{Name: "Authorization", Value: "Bearer " + s.token},
			{Name: "Accept", Value: "application/vnd.vimeo.*+json;version=3.4"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vimeo request: %w", err)
	}
	if !res.OK() {
		msg := gjson.Get(res.BodyString, "error").Str
		if res.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("vimeo token rejected: %w", platforms.ErrNotConfigured)
		}
		return "", fmt.Errorf("vimeo API error (status %d): %s", res.StatusCode, msg)
	}
	return res.BodyString, nil
}

func toItem(v gjson.Result) video.Item {
	link := v.Get("link").Str
	if link == "" {
		return video.Item{}
	}
	published, _ := time.Parse(time.RFC3339, v.Get("release_time").Str)
	if published.IsZero() {
		published, _ = time.Parse(time.RFC3339, v.Get("created_time").Str)
	}
	author := v.Get("user.name").Str
	if author == "" {
		author = "Unknown"
	}

	it := video.Item{
		URL:             link,
		Title:           v.Get("name").Str,
		Description:     strings.TrimSpace(strip.StripTags(v.Get("description").Str)),
		ThumbnailURL:    largestPicture(v.Get("pictures.sizes")),
		Author:          author,
		Platform:        video.Vimeo,
		DurationSeconds: int(v.Get("duration").Int()),
		PublishedAt:     published,
	}
	it.Metrics.Views = v.Get("stats.plays").Int()
	it.Metrics.Likes = v.Get("metadata.connections.likes.total").Int()
	it.Metrics.Comments = v.Get("metadata.connections.comments.total").Int()
	it.Metrics.Score = video.PopularityScore(it.Metrics.Views, it.Metrics.Likes, viewWeight, likeWeight)
	for _, t := range v.Get("tags.#.name").Array() {
		it.Tags = append(it.Tags, t.Str)
	}
	return it
}

func largestPicture(sizes gjson.Result) string {
	best, bestWidth := "", int64(-1)
	for _, s := range sizes.Array() {
		if w := s.Get("width").Int(); w > bestWidth {
			best, bestWidth = s.Get("link").Str, w
		}
	}
	return best
}

func matchesDuration(seconds int, d platforms.Duration) bool {
	switch d {
	case platforms.DurationShort:
		return seconds < shortMaxSeconds
	case platforms.DurationMedium:
		return seconds >= shortMaxSeconds && seconds <= mediumMaxSeconds
	case platforms.DurationLong:
		return seconds > mediumMaxSeconds
	}
	return true
}

func sortParam(s platforms.Sort) string {
	switch s {
	case platforms.SortPopular:
		return "plays"
	case platforms.SortRecent:
		return "date"
	}
	return "relevant"
}

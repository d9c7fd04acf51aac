// Package youtube searches the YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
	"github.com/refscout/refscout/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
	maxPageSize    = 50
	viewWeight     = 0.7
	likeWeight     = 0.3
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

// New returns a searcher authenticated with apiKey.
func New(apiKey string, client *whttp.Client, opts ...Option) (*Searcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube: %w", platforms.ErrNotConfigured)
	}
	s := &Searcher{apiKey: apiKey, baseURL: defaultBaseURL, client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Searcher) Name() video.Platform { return video.YouTube }

func (s *Searcher) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	limit := req.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("videoDefinition", "high")
	q.Set("q", req.Query)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("order", order(req.Sort))
	if req.Duration != platforms.DurationAny {
		q.Set("videoDuration", string(req.Duration))
	}
	if !req.PublishedAfter.IsZero() {
		q.Set("publishedAfter", req.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if req.PageToken != "" {
		q.Set("pageToken", req.PageToken)
	}

	body, err := s.get(ctx, "/search", q)
	if err != nil {
		return platforms.Page{}, err
	}

	results := gjson.Get(body, "items").Array()
	if len(results) == 0 {
		return platforms.Page{}, nil
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		if id := r.Get("id.videoId").Str; id != "" {
			ids = append(ids, id)
		}
	}

	details, err := s.fetchDetails(ctx, ids, "contentDetails,statistics")
	if err != nil {
		return platforms.Page{}, err
	}

	items := make([]video.Item, 0, len(results))
	for _, r := range results {
		id := r.Get("id.videoId").Str
		if id == "" {
			continue
		}
		it := fromSnippet(id, r.Get("snippet"))
		if d, ok := details[id]; ok {
			applyDetails(&it, d)
		}
		it.Tags = []string{req.Query}
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Metrics.Score > items[j].Metrics.Score })

	return platforms.Page{Items: items, NextPageToken: gjson.Get(body, "nextPageToken").Str}, nil
}

// Lookup fetches a single video by id.
func (s *Searcher) Lookup(ctx context.Context, id string) (video.Item, error) {
	details, err := s.fetchDetails(ctx, []string{id}, "snippet,contentDetails,statistics")
	if err != nil {
		return video.Item{}, err
	}
	d, ok := details[id]
	if !ok {
		return video.Item{}, fmt.Errorf("youtube video %s not found", id)
	}
	it := fromSnippet(id, d.Get("snippet"))
	applyDetails(&it, d)
	for _, t := range d.Get("snippet.tags").Array() {
		it.Tags = append(it.Tags, t.Str)
	}
	return it, nil
}

func (s *Searcher) fetchDetails(ctx context.Context, ids []string, parts string) (map[string]gjson.Result, error) {
	out := make(map[string]gjson.Result, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("part", parts)
	q.Set("id", strings.Join(ids, ","))

	body, err := s.get(ctx, "/videos", q)
	if err != nil {
		return nil, err
	}
	for _, v := range gjson.Get(body, "items").Array() {
		out[v.Get("id").Str] = v
	}
	return out, nil
}

func (s *Searcher) get(ctx context.Context, path string, q url.Values) (string, error) {
	res, err := s.client.Send(ctx, &whttp.WHTTPReq{
		Method:  http.MethodGet,
		URL:     s.baseURL + path + "?" + q.Encode(),
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	})
	if err != nil {
		return "", fmt.Errorf("youtube %s: %w", path, err)
	}
	if !res.OK() {
		return "", apiError(res)
	}
	return res.BodyString, nil
}

func fromSnippet(id string, sn gjson.Result) video.Item {
	published, _ := time.Parse(time.RFC3339, sn.Get("publishedAt").Str)
	return video.Item{
		URL:          video.CanonicalURL(video.Ref{Platform: video.YouTube, ID: id}),
		Title:        sn.Get("title").Str,
		Description:  sn.Get("description").Str,
		ThumbnailURL: thumbnail(sn.Get("thumbnails")),
		Author:       sn.Get("channelTitle").Str,
		Platform:     video.YouTube,
		PublishedAt:  published,
	}
}

func applyDetails(it *video.Item, d gjson.Result) {
	it.DurationSeconds = ParseDuration(d.Get("contentDetails.duration").Str)
	it.Metrics.Views = d.Get("statistics.viewCount").Int()
	it.Metrics.Likes = d.Get("statistics.likeCount").Int()
	it.Metrics.Comments = d.Get("statistics.commentCount").Int()
	it.Metrics.Score = video.PopularityScore(it.Metrics.Views, it.Metrics.Likes, viewWeight, likeWeight)
}

func thumbnail(t gjson.Result) string {
	for _, size := range []string{"maxres", "high", "medium", "default"} {
		if u := t.Get(size + ".url").Str; u != "" {
			return u
		}
	}
	return ""
}

func order(s platforms.Sort) string {
	switch s {
	case platforms.SortPopular:
		return "viewCount"
	case platforms.SortRecent:
		return "date"
	}
	return "relevance"
}

var durationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as PT1M30S to seconds.
// Unparseable input yields 0.
func ParseDuration(s string) int {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}

func apiError(res *whttp.WHTTPRes) error {
	msg := gjson.Get(res.BodyString, "error.message").Str
	switch res.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("youtube API rejected the request: %s", msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("youtube API key invalid: %w", platforms.ErrNotConfigured)
	case http.StatusForbidden:
		return fmt.Errorf("youtube API access denied (quota or key restrictions): %s", msg)
	case http.StatusNotFound:
		return fmt.Errorf("youtube API endpoint not found")
	default:
		return fmt.Errorf("youtube API error (status %d): %s", res.StatusCode, msg)
	}
}

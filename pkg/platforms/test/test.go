// Package test provides a scriptable Searcher for exercising the collection
// engine without network access.
package test

import (
	"context"
	"strconv"
	"sync"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/video"
)

// Searcher replays scripted pages keyed by query string. Page tokens are the
// index of the next scripted page.
type Searcher struct {
	Platform video.Platform

	// Pages maps a query to its pages, in order.
	Pages map[string][][]video.Item
	// Any is served for queries without a script of their own.
	Any [][]video.Item
	// Rules are checked before Pages and match on the whole request.
	Rules []Rule
	// Errors maps a query to the error every call with that query returns.
	Errors map[string]error
	// Err, when set, fails every call.
	Err error
	// Endless keeps handing out a next-page token even past the scripted pages.
	Endless bool

	mu    sync.Mutex
	calls []platforms.SearchRequest
}

func New(p video.Platform) *Searcher {
	return &Searcher{Platform: p, Pages: map[string][][]video.Item{}, Errors: map[string]error{}}
}

func (s *Searcher) Name() video.Platform { return s.Platform }

// Script appends pages for query.
func (s *Searcher) Script(query string, pages ...[]video.Item) *Searcher {
	s.Pages[query] = append(s.Pages[query], pages...)
	return s
}

// Rule serves Pages to every request Match accepts.
type Rule struct {
	Match func(platforms.SearchRequest) bool
	Pages [][]video.Item
}

// When serves pages to requests accepted by match.
func (s *Searcher) When(match func(platforms.SearchRequest) bool, pages ...[]video.Item) *Searcher {
	s.Rules = append(s.Rules, Rule{Match: match, Pages: pages})
	return s
}

// Fail makes every call for query return err.
func (s *Searcher) Fail(query string, err error) *Searcher {
	s.Errors[query] = err
	return s
}

func (s *Searcher) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return platforms.Page{}, err
	}
	if s.Err != nil {
		return platforms.Page{}, s.Err
	}
	if err, ok := s.Errors[req.Query]; ok {
		return platforms.Page{}, err
	}

	idx := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil {
			return platforms.Page{}, err
		}
		idx = n
	}

	pages, ok := s.Pages[req.Query]
	if !ok {
		pages = s.Any
	}
	for _, r := range s.Rules {
		if r.Match(req) {
			pages = r.Pages
			break
		}
	}
	var page platforms.Page
	if idx < len(pages) {
		page.Items = append([]video.Item(nil), pages[idx]...)
	}
	if idx+1 < len(pages) || s.Endless {
		page.NextPageToken = strconv.Itoa(idx + 1)
	}
	return page, nil
}

// Calls returns every request received so far.
func (s *Searcher) Calls() []platforms.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]platforms.SearchRequest(nil), s.calls...)
}

// Item builds a minimal item for p identified by url.
func Item(p video.Platform, url string, score float64) video.Item {
	return video.Item{
		URL:             url,
		Title:           url,
		Platform:        p,
		DurationSeconds: 30,
		Metrics:         video.Metrics{Score: score},
	}
}

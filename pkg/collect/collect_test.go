package collect

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/platforms/test"
	"github.com/refscout/refscout/pkg/query"
	"github.com/refscout/refscout/pkg/settings"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory SettingsStore and VideoStore.
type memStore struct {
	prefs   settings.Preferences
	urls    map[string]bool
	saved   []video.Item
	reject  map[string]error
	listErr error
}

func newMemStore(prefs settings.Preferences, urls ...string) *memStore {
	m := &memStore{prefs: prefs, urls: map[string]bool{}, reject: map[string]error{}}
	for _, u := range urls {
		m.urls[u] = true
	}
	return m
}

func (m *memStore) GetSettings(ctx context.Context) (settings.Preferences, error) {
	return m.prefs, nil
}

func (m *memStore) ListAllURLs(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]string, 0, len(m.urls))
	for u := range m.urls {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) CreateVideo(ctx context.Context, item video.Item) (video.Item, error) {
	if err, ok := m.reject[item.URL]; ok {
		return video.Item{}, err
	}
	if m.urls[item.URL] {
		return video.Item{}, storage.ErrDuplicateVideo
	}
	m.urls[item.URL] = true
	item.ID = fmt.Sprintf("id-%d", len(m.saved)+1)
	m.saved = append(m.saved, item)
	return item, nil
}

func prefsFor(target int, ps ...video.Platform) settings.Preferences {
	p := settings.Defaults()
	p.TargetCount = target
	p.Platforms = ps
	return p
}

func urlsOf(items []video.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.URL
	}
	return out
}

func item(p video.Platform, url string, score float64) video.Item {
	return test.Item(p, url, score)
}

func TestDrainStopsAtPageCeiling(t *testing.T) {
	s := test.New(video.YouTube)
	s.Endless = true
	s.Any = [][]video.Item{{item(video.YouTube, "old", 1)}}

	known := NewKnownSet([]string{"old"})
	v := query.Variant{Label: "strict", Query: "q"}
	drain(context.Background(), s, v, 3, known, nopLogger{})

	if got := len(s.Calls()); got != MaxPages {
		t.Fatalf("calls = %d, want %d", got, MaxPages)
	}
}

func TestDrainStopsWhenExhausted(t *testing.T) {
	s := test.New(video.YouTube).Script("q",
		[]video.Item{item(video.YouTube, "old", 1)},
		[]video.Item{item(video.YouTube, "a", 1)},
	)
	known := NewKnownSet([]string{"old"})
	got := drain(context.Background(), s, query.Variant{Query: "q"}, 3, known, nopLogger{})

	if len(s.Calls()) != 2 {
		t.Errorf("calls = %d, want 2", len(s.Calls()))
	}
	if want := []string{"old", "a"}; !reflect.DeepEqual(urlsOf(got), want) {
		t.Errorf("items = %v, want %v", urlsOf(got), want)
	}
}

func TestDrainStopsOnceEnoughFresh(t *testing.T) {
	s := test.New(video.Vimeo).Script("q",
		[]video.Item{item(video.Vimeo, "a", 1), item(video.Vimeo, "b", 1), item(video.Vimeo, "a", 1)},
		[]video.Item{item(video.Vimeo, "c", 1)},
	)
	got := drain(context.Background(), s, query.Variant{Query: "q"}, 2, NewKnownSet(nil), nopLogger{})

	calls := s.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Limit != 2*FetchMultiplier {
		t.Errorf("limit = %d, want %d", calls[0].Limit, 2*FetchMultiplier)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(urlsOf(got), want) {
		t.Errorf("items = %v, want %v", urlsOf(got), want)
	}
}

// flaky serves one page and then fails.
type flaky struct {
	calls int
}

func (f *flaky) Name() video.Platform { return video.Behance }

func (f *flaky) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	f.calls++
	if f.calls > 1 {
		return platforms.Page{}, errors.New("503 from upstream")
	}
	return platforms.Page{Items: []video.Item{item(video.Behance, "a", 1)}, NextPageToken: "2"}, nil
}

func TestDrainKeepsItemsOnError(t *testing.T) {
	f := &flaky{}
	got := drain(context.Background(), f, query.Variant{Query: "q"}, 3, NewKnownSet(nil), nopLogger{})
	if f.calls != 2 {
		t.Errorf("calls = %d, want 2", f.calls)
	}
	if want := []string{"a"}; !reflect.DeepEqual(urlsOf(got), want) {
		t.Errorf("items = %v, want %v", urlsOf(got), want)
	}
}

// rung matches the requests drain issues for v.
func rung(v query.Variant) func(platforms.SearchRequest) bool {
	return func(req platforms.SearchRequest) bool {
		return req.Query == v.Query && req.Duration == v.Duration &&
			req.Sort == v.Sort && req.PublishedAfter.Equal(v.PublishedAfter)
	}
}

func TestSearchPlatformAccumulatesAcrossRungs(t *testing.T) {
	ladder := query.Build(prefsFor(3, video.YouTube), fixedNow)
	s := test.New(video.YouTube).
		When(rung(ladder[0]), []video.Item{item(video.YouTube, "a", 1)}).
		When(rung(ladder[1]), []video.Item{item(video.YouTube, "b", 1), item(video.YouTube, "c", 1)})

	known := NewKnownSet(nil)
	pool, fresh := searchPlatform(context.Background(), s, ladder, 3, known, nopLogger{})

	if fresh != 3 {
		t.Errorf("fresh = %d, want 3", fresh)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(urlsOf(pool), want) {
		t.Errorf("pool = %v, want %v", urlsOf(pool), want)
	}
	if got := len(s.Calls()); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestSearchPlatformEarlyStop(t *testing.T) {
	ladder := query.Build(prefsFor(2, video.Vimeo), fixedNow)
	s := test.New(video.Vimeo).
		When(rung(ladder[0]), []video.Item{item(video.Vimeo, "a", 1), item(video.Vimeo, "b", 1)}).
		When(rung(ladder[1]), []video.Item{item(video.Vimeo, "c", 1)})

	searchPlatform(context.Background(), s, ladder, 2, NewKnownSet(nil), nopLogger{})

	calls := s.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !rung(ladder[0])(calls[0]) {
		t.Errorf("first call %+v does not match rung %s", calls[0], ladder[0].Label)
	}
}

func TestSearchPlatformDoesNotReacceptAcrossRungs(t *testing.T) {
	ladder := query.Build(prefsFor(2, video.YouTube), fixedNow)
	s := test.New(video.YouTube)
	s.Any = [][]video.Item{{item(video.YouTube, "a", 1)}}

	pool, fresh := searchPlatform(context.Background(), s, ladder, 2, NewKnownSet(nil), nopLogger{})
	if fresh != 1 || len(pool) != 1 {
		t.Errorf("fresh = %d, pool = %d; want 1, 1", fresh, len(pool))
	}
	if got := len(s.Calls()); got != len(ladder) {
		t.Errorf("calls = %d, want one per rung (%d)", got, len(ladder))
	}
}

func TestSelectRoundRobin(t *testing.T) {
	a := Pool{Platform: video.YouTube, Items: []video.Item{
		item(video.YouTube, "a10", 10), item(video.YouTube, "a9", 9), item(video.YouTube, "a8", 8),
		item(video.YouTube, "a7", 7), item(video.YouTube, "a6", 6),
	}}
	b := Pool{Platform: video.Vimeo, Items: []video.Item{item(video.Vimeo, "b20", 20)}}

	got := urlsOf(Select([]Pool{a, b}, 3))
	if want := []string{"a10", "b20", "a9"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Select = %v, want %v", got, want)
	}
}

func TestSelect(t *testing.T) {
	p := func(pl video.Platform, urls ...string) Pool {
		pool := Pool{Platform: pl}
		for _, u := range urls {
			pool.Items = append(pool.Items, item(pl, u, 1))
		}
		return pool
	}

	tests := []struct {
		name   string
		pools  []Pool
		target int
		want   []string
	}{
		{"empty pools", []Pool{p(video.YouTube), p(video.Vimeo)}, 3, []string{}},
		{"fewer than target", []Pool{p(video.YouTube, "a"), p(video.Vimeo, "b")}, 5, []string{"a", "b"}},
		{"exhausted pool leaves rotation", []Pool{p(video.YouTube, "a1", "a2", "a3"), p(video.Vimeo), p(video.Behance, "c1")}, 4, []string{"a1", "c1", "a2", "a3"}},
		{"zero target", []Pool{p(video.YouTube, "a")}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := urlsOf(Select(tt.pools, tt.target))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByScoreIsStable(t *testing.T) {
	items := []video.Item{item("", "x", 1), item("", "y", 5), item("", "z", 1)}
	sortByScore(items)
	if want := []string{"y", "x", "z"}; !reflect.DeepEqual(urlsOf(items), want) {
		t.Errorf("order = %v, want %v", urlsOf(items), want)
	}
}

func TestKnownSet(t *testing.T) {
	k := NewKnownSet([]string{"stored"})
	if k.IsFresh("stored") {
		t.Error("stored URL reported fresh")
	}
	a := item(video.YouTube, "a", 1)
	if !k.Accept(a) {
		t.Fatal("first Accept returned false")
	}
	if k.Accept(item(video.Vimeo, "a", 1)) {
		t.Error("second Accept of same URL returned true")
	}
	if !k.Claims(video.YouTube, a) || k.Claims(video.Vimeo, a) {
		t.Error("Claims should only hold for the first platform")
	}
	if k.Claims(video.YouTube, item(video.YouTube, "stored", 1)) {
		t.Error("Claims held for a stored URL")
	}
}

func TestRunEndToEnd(t *testing.T) {
	store := newMemStore(prefsFor(2, video.YouTube, video.Vimeo), "u1")

	x := test.New(video.YouTube)
	x.Any = [][]video.Item{{item(video.YouTube, "u1", 9), item(video.YouTube, "u2", 5)}}
	y := test.New(video.Vimeo)
	y.Any = [][]video.Item{{item(video.Vimeo, "u3", 1)}}

	res, err := New(Config{
		Settings:  store,
		Videos:    store,
		Searchers: []platforms.Searcher{x, y},
		Now:       func() time.Time { return fixedNow },
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.TotalCollected != 2 || res.NewlySaved != 2 {
		t.Errorf("total/saved = %d/%d, want 2/2", res.TotalCollected, res.NewlySaved)
	}
	got := urlsOf(res.Videos)
	sort.Strings(got)
	if want := []string{"u2", "u3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("videos = %v, want %v", got, want)
	}
	wantBreakdown := []PlatformCount{{video.YouTube, 2}, {video.Vimeo, 1}}
	if !reflect.DeepEqual(res.PlatformBreakdown, wantBreakdown) {
		t.Errorf("breakdown = %v, want %v", res.PlatformBreakdown, wantBreakdown)
	}
	if !res.CollectionDate.Equal(fixedNow) {
		t.Errorf("date = %v", res.CollectionDate)
	}
	for _, v := range store.saved {
		if v.CollectedBy != video.CollectedAuto {
			t.Errorf("%s saved with CollectedBy %q", v.URL, v.CollectedBy)
		}
	}
}

func TestRunTwiceNeverReselects(t *testing.T) {
	store := newMemStore(prefsFor(2, video.YouTube, video.Vimeo))
	x := test.New(video.YouTube)
	x.Any = [][]video.Item{{item(video.YouTube, "a", 3), item(video.YouTube, "b", 2), item(video.YouTube, "c", 1)}}
	y := test.New(video.Vimeo)
	y.Any = [][]video.Item{{item(video.Vimeo, "d", 3), item(video.Vimeo, "a", 2)}}

	c := New(Config{Settings: store, Videos: store, Searchers: []platforms.Searcher{x, y}})
	first, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, v := range first.Videos {
		seen[v.URL] = true
	}
	for _, v := range second.Videos {
		if seen[v.URL] {
			t.Errorf("%s selected in both runs", v.URL)
		}
	}
	if second.NewlySaved == 0 {
		t.Error("second run found nothing despite unseen candidates")
	}
}

func TestRunInvalidPreferencesMakesNoCalls(t *testing.T) {
	store := newMemStore(prefsFor(0, video.YouTube))
	s := test.New(video.YouTube)

	_, err := New(Config{Settings: store, Videos: store, Searchers: []platforms.Searcher{s}}).Run(context.Background())
	if !errors.Is(err, settings.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if len(s.Calls()) != 0 {
		t.Errorf("adapter called %d times", len(s.Calls()))
	}
}

func TestRunSeedFailureIsFatal(t *testing.T) {
	store := newMemStore(prefsFor(1, video.YouTube))
	store.listErr = errors.New("disk gone")
	if _, err := New(Config{Settings: store, Videos: store}).Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunPlatformFailureDegradesToZero(t *testing.T) {
	store := newMemStore(prefsFor(2, video.YouTube, video.Vimeo, video.Behance))
	x := test.New(video.YouTube)
	x.Err = errors.New("quota exceeded")
	y := test.New(video.Vimeo)
	y.Any = [][]video.Item{{item(video.Vimeo, "v1", 1), item(video.Vimeo, "v2", 2)}}

	var done []video.Platform
	res, err := New(Config{
		Settings:       store,
		Videos:         store,
		Searchers:      []platforms.Searcher{x, y},
		OnPlatformDone: func(p video.Platform, pooled, fresh int) { done = append(done, p) },
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []PlatformCount{{video.YouTube, 0}, {video.Vimeo, 2}, {video.Behance, 0}}
	if !reflect.DeepEqual(res.PlatformBreakdown, want) {
		t.Errorf("breakdown = %v, want %v", res.PlatformBreakdown, want)
	}
	if got := urlsOf(res.Videos); !reflect.DeepEqual(got, []string{"v2", "v1"}) {
		t.Errorf("videos = %v, want [v2 v1]", got)
	}
	if !reflect.DeepEqual(done, []video.Platform{video.YouTube, video.Vimeo, video.Behance}) {
		t.Errorf("OnPlatformDone calls = %v", done)
	}
}

func TestRunSkipsPersistenceConflicts(t *testing.T) {
	store := newMemStore(prefsFor(3, video.YouTube))
	store.reject["b"] = storage.ErrDuplicateVideo
	store.reject["c"] = errors.New("database is locked")
	s := test.New(video.YouTube)
	s.Any = [][]video.Item{{item(video.YouTube, "a", 3), item(video.YouTube, "b", 2), item(video.YouTube, "c", 1)}}

	res, err := New(Config{Settings: store, Videos: store, Searchers: []platforms.Searcher{s}}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewlySaved != 1 || res.TotalCollected != 3 {
		t.Errorf("saved/total = %d/%d, want 1/3", res.NewlySaved, res.TotalCollected)
	}
	if res.Videos[0].ID == "" {
		t.Error("saved video lost its store id")
	}
}

func TestRunCrossPlatformDuplicateKeptOnce(t *testing.T) {
	store := newMemStore(prefsFor(4, video.YouTube, video.Vimeo))
	x := test.New(video.YouTube)
	x.Any = [][]video.Item{{item(video.YouTube, "shared", 1)}}
	y := test.New(video.Vimeo)
	y.Any = [][]video.Item{{item(video.Vimeo, "shared", 1), item(video.Vimeo, "own", 1)}}

	res, err := New(Config{Settings: store, Videos: store, Searchers: []platforms.Searcher{x, y}}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	count := 0
	for _, v := range res.Videos {
		if v.URL == "shared" {
			count++
			if v.Platform != video.YouTube {
				t.Errorf("shared credited to %s", v.Platform)
			}
		}
	}
	if count != 1 {
		t.Errorf("shared selected %d times", count)
	}
}

type stubLock struct {
	err              error
	locked, unlocked int
}

func (l *stubLock) Lock() error   { l.locked++; return l.err }
func (l *stubLock) Unlock() error { l.unlocked++; return nil }

func TestRunHonoursLocker(t *testing.T) {
	store := newMemStore(prefsFor(1, video.YouTube))
	busy := &stubLock{err: errors.New("run in progress")}
	if _, err := New(Config{Settings: store, Videos: store, Locker: busy}).Run(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}

	free := &stubLock{}
	if _, err := New(Config{Settings: store, Videos: store, Locker: free}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if free.locked != 1 || free.unlocked != 1 {
		t.Errorf("lock/unlock = %d/%d", free.locked, free.unlocked)
	}
}

// cancelAfterSearch cancels the run as soon as its platform has answered.
type cancelAfterSearch struct {
	*test.Searcher
	cancel context.CancelFunc
}

func (c cancelAfterSearch) Search(ctx context.Context, req platforms.SearchRequest) (platforms.Page, error) {
	defer c.cancel()
	return c.Searcher.Search(ctx, req)
}

func TestRunCancelledBeforeSavingPersistsNothing(t *testing.T) {
	store := newMemStore(prefsFor(2, video.YouTube))
	s := test.New(video.YouTube)
	s.Any = [][]video.Item{{item(video.YouTube, "a", 2), item(video.YouTube, "b", 1)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res, err := New(Config{
		Settings:  store,
		Videos:    store,
		Searchers: []platforms.Searcher{cancelAfterSearch{Searcher: s, cancel: cancel}},
	}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if len(store.saved) != 0 {
		t.Errorf("saved %d videos after cancellation", len(store.saved))
	}
}

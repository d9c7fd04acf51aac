package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/metrics"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/platforms/test"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

type stubAnalyzer struct{ fail string }

func (s stubAnalyzer) Analyze(ctx context.Context, it video.Item) (*video.Analysis, error) {
	if it.URL == s.fail {
		return nil, errors.New("model unavailable")
	}
	return &video.Analysis{OneLineSummary: "about " + it.Title, OverallScore: 7}, nil
}

type heldLock struct{}

func (heldLock) Lock() error   { return utils.ErrRunInProgress }
func (heldLock) Unlock() error { return nil }

func openDB(t *testing.T, autoAnalyze bool) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "refscout.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	prefs, err := db.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	prefs.Platforms = []video.Platform{video.YouTube}
	prefs.TargetCount = 2
	prefs.AutoAnalyze = autoAnalyze
	if _, err := db.SaveSettings(context.Background(), prefs); err != nil {
		t.Fatal(err)
	}
	return db
}

func youtubeSearcher() *test.Searcher {
	yt := test.New(video.YouTube)
	yt.When(func(platforms.SearchRequest) bool { return true }, []video.Item{
		test.Item(video.YouTube, "https://www.youtube.com/watch?v=aaaaaaaaaaa", 3),
		test.Item(video.YouTube, "https://www.youtube.com/watch?v=bbbbbbbbbbb", 2),
	})
	return yt
}

func TestRunLogsAndAnalyzes(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, true)
	m := metrics.New()
	r := &Runner{
		DB:        db,
		Searchers: []platforms.Searcher{youtubeSearcher()},
		Metrics:   m,
		Analyzer:  stubAnalyzer{fail: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
		Workers:   2,
		Now:       func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}

	res, err := r.Run(ctx, TriggerAPI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewlySaved != 2 || res.TotalCollected != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Videos[0].Analysis == nil || res.Videos[1].Analysis != nil {
		t.Errorf("analysis attached to wrong videos: %+v", res.Videos)
	}

	stored, err := db.GetVideo(ctx, res.Videos[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Analysis == nil || stored.Analysis.OverallScore != 7 {
		t.Errorf("stored analysis = %+v", stored.Analysis)
	}

	runs, err := db.ListRecentRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Trigger != TriggerAPI || runs[0].NewlySaved != 2 {
		t.Errorf("runs = %+v", runs)
	}
	if len(runs[0].Breakdown) != 1 || runs[0].Breakdown[0].Count != 2 {
		t.Errorf("breakdown = %+v", runs[0].Breakdown)
	}
}

func TestRunSkipsAnalysisWhenDisabled(t *testing.T) {
	db := openDB(t, false)
	r := &Runner{DB: db, Searchers: []platforms.Searcher{youtubeSearcher()}, Analyzer: stubAnalyzer{}}

	res, err := r.Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range res.Videos {
		if v.Analysis != nil {
			t.Errorf("%s analysed with auto-analysis off", v.URL)
		}
	}
}

func TestRunBusyIsNotLogged(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, false)
	r := &Runner{DB: db, Searchers: []platforms.Searcher{youtubeSearcher()}, Locker: heldLock{}, Metrics: metrics.New()}

	if _, err := r.Run(ctx, TriggerScheduled); !errors.Is(err, utils.ErrRunInProgress) {
		t.Fatalf("err = %v", err)
	}
	runs, err := db.ListRecentRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("busy run was logged: %+v", runs)
	}
}

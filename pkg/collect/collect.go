// Package collect runs one collection: it searches every configured platform
// through a relaxing query ladder, drops anything already stored, picks a
// platform-balanced batch and saves it.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/query"
	"github.com/refscout/refscout/pkg/settings"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// SettingsStore supplies the preferences for a run.
type SettingsStore interface {
	GetSettings(ctx context.Context) (settings.Preferences, error)
}

// VideoStore is where collected videos are kept.
type VideoStore interface {
	ListAllURLs(ctx context.Context) ([]string, error)
	CreateVideo(ctx context.Context, item video.Item) (video.Item, error)
}

// Locker serializes runs across processes.
type Locker interface {
	Lock() error
	Unlock() error
}

// Config wires a Collector to its collaborators.
type Config struct {
	Settings  SettingsStore
	Videos    VideoStore
	Searchers []platforms.Searcher
	Log       Logger           // optional; nil = no logging
	Now       func() time.Time // optional; defaults to time.Now
	Locker    Locker           // optional

	// OnPlatformDone is called after each platform's ladder finishes with the
	// pool size and how many fresh items it accepted. Nil = no callback.
	OnPlatformDone func(p video.Platform, pooled, fresh int)
}

// PlatformCount is one entry of the per-platform breakdown.
type PlatformCount struct {
	Platform video.Platform `json:"platform"`
	Count    int            `json:"count"`
}

// Result summarizes a finished run.
type Result struct {
	Videos            []video.Item    `json:"videos"`
	TotalCollected    int             `json:"totalCollected"`
	NewlySaved        int             `json:"newlySaved"`
	PlatformBreakdown []PlatformCount `json:"platformBreakdown"`
	CollectionDate    time.Time       `json:"collectionDate"`
}

type Collector struct {
	cfg       Config
	log       Logger
	now       func() time.Time
	searchers map[video.Platform]platforms.Searcher
}

func New(cfg Config) *Collector {
	c := &Collector{
		cfg:       cfg,
		log:       cfg.Log,
		now:       cfg.Now,
		searchers: make(map[video.Platform]platforms.Searcher, len(cfg.Searchers)),
	}
	if c.log == nil {
		c.log = nopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	for _, s := range cfg.Searchers {
		c.searchers[s.Name()] = s
	}
	return c
}

// Run performs one collection. Only invalid preferences, an unreadable store
// or a held run lock fail the run; platform and persistence errors are logged
// and reduce the result instead.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	if c.cfg.Locker != nil {
		if err := c.cfg.Locker.Lock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := c.cfg.Locker.Unlock(); err != nil {
				c.log.Warnf("Could not release run lock: %v", err)
			}
		}()
	}

	prefs, err := c.cfg.Settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	prefs = prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	urls, err := c.cfg.Videos.ListAllURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading known videos: %w", err)
	}
	known := NewKnownSet(urls)

	now := c.now()
	ladder := query.Build(prefs, now)
	target := prefs.TargetCount

	pools := make([]Pool, 0, len(prefs.Platforms))
	breakdown := make([]PlatformCount, 0, len(prefs.Platforms))
	for _, p := range prefs.Platforms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok := c.searchers[p]
		if !ok {
			c.log.Warnf("No searcher configured for %s, skipping", p)
			breakdown = append(breakdown, PlatformCount{Platform: p})
			pools = append(pools, Pool{Platform: p})
			if c.cfg.OnPlatformDone != nil {
				c.cfg.OnPlatformDone(p, 0, 0)
			}
			continue
		}

		items, fresh := searchPlatform(ctx, s, ladder, target, known, c.log)
		c.log.Infof("%s: %d candidates, %d new", p, len(items), fresh)
		breakdown = append(breakdown, PlatformCount{Platform: p, Count: len(items)})
		pools = append(pools, Pool{Platform: p, Items: items})
		if c.cfg.OnPlatformDone != nil {
			c.cfg.OnPlatformDone(p, len(items), fresh)
		}
	}

	for i := range pools {
		kept := make([]video.Item, 0, len(pools[i].Items))
		for _, it := range pools[i].Items {
			if known.Claims(pools[i].Platform, it) {
				kept = append(kept, it)
			}
		}
		sortByScore(kept)
		pools[i].Items = kept
	}

	selected := Select(pools, target)

	// Nothing is persisted once the run has been cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Videos:            make([]video.Item, 0, len(selected)),
		PlatformBreakdown: breakdown,
		CollectionDate:    now,
	}
	for _, it := range selected {
		it.CollectedBy = video.CollectedAuto
		it.CollectedAt = now
		saved, err := c.cfg.Videos.CreateVideo(ctx, it)
		switch {
		case errors.Is(err, storage.ErrDuplicateVideo):
			c.log.Infof("Skipping %s: already stored", it.URL)
		case err != nil:
			c.log.Warnf("Could not save %s: %v", it.URL, err)
		default:
			result.NewlySaved++
			it = saved
		}
		result.Videos = append(result.Videos, it)
	}
	result.TotalCollected = len(result.Videos)

	return result, nil
}

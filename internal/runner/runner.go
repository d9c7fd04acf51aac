// Package runner wraps a collection run with everything that happens around
// it: run logging, metrics and optional auto-analysis of new videos.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/refscout/refscout/internal/utils"
	"github.com/refscout/refscout/pkg/ai"
	"github.com/refscout/refscout/pkg/collect"
	"github.com/refscout/refscout/pkg/metrics"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

const (
	TriggerCLI       = "cli"
	TriggerAPI       = "api"
	TriggerScheduled = "scheduled"
)

type Runner struct {
	DB        *storage.DB
	Searchers []platforms.Searcher
	Locker    collect.Locker   // optional
	Metrics   *metrics.Metrics // optional
	Analyzer  ai.Analyzer      // optional; nil disables auto-analysis
	Workers   int              // parallel analyses, defaults to 1
	Log       collect.Logger   // optional
	Now       func() time.Time // optional
}

// Run collects once and records the run under trigger.
func (r *Runner) Run(ctx context.Context, trigger string) (*collect.Result, error) {
	log := r.Log
	if log == nil {
		log = utils.CollectLogger{}
	}

	cfg := collect.Config{
		Settings:  r.DB,
		Videos:    r.DB,
		Searchers: r.Searchers,
		Log:       log,
		Now:       r.Now,
		Locker:    r.Locker,
	}
	if r.Metrics != nil {
		cfg.OnPlatformDone = r.Metrics.PlatformDone
	}

	start := time.Now()
	res, err := collect.New(cfg).Run(ctx)
	if err != nil {
		r.observe(statusFor(err), time.Since(start), nil)
		return nil, err
	}
	r.observe(metrics.StatusSuccess, time.Since(start), res.Videos)

	rec := storage.RunRecord{
		CollectedAt:    res.CollectionDate,
		TotalCollected: res.TotalCollected,
		NewlySaved:     res.NewlySaved,
		Trigger:        trigger,
	}
	for _, pc := range res.PlatformBreakdown {
		rec.Breakdown = append(rec.Breakdown, storage.PlatformCount{Platform: pc.Platform, Count: pc.Count})
	}
	if _, err := r.DB.LogRun(ctx, rec); err != nil {
		log.Warnf("Could not log collection run: %v", err)
	}

	r.autoAnalyze(ctx, res, log)
	return res, nil
}

// Every runs a collection immediately and then once per interval until ctx is done.
func (r *Runner) Every(ctx context.Context, interval time.Duration) {
	utils.Log.Infof("Starting scheduled collection (interval: %s)", interval)
	r.scheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scheduled(ctx)
		}
	}
}

func (r *Runner) scheduled(ctx context.Context) {
	res, err := r.Run(ctx, TriggerScheduled)
	switch {
	case errors.Is(err, utils.ErrRunInProgress):
		utils.Log.Info("Scheduled collection skipped: another run is in progress")
	case err != nil:
		utils.Log.Errorf("Scheduled collection failed: %v", err)
	default:
		utils.Log.Infof("Scheduled collection saved %d of %d videos", res.NewlySaved, res.TotalCollected)
	}
}

func (r *Runner) autoAnalyze(ctx context.Context, res *collect.Result, log collect.Logger) {
	if r.Analyzer == nil || res.NewlySaved == 0 {
		return
	}
	prefs, err := r.DB.GetSettings(ctx)
	if err != nil || !prefs.AutoAnalyze {
		return
	}

	var (
		items []video.Item
		index []int
	)
	for i, v := range res.Videos {
		if v.ID != "" {
			items = append(items, v)
			index = append(index, i)
		}
	}
	for n, o := range ai.AnalyzeMany(ctx, r.Analyzer, items, r.Workers) {
		if o.Err != nil {
			log.Warnf("Analysis of %s failed: %v", o.Item.URL, o.Err)
			continue
		}
		if err := r.DB.SetAnalysis(ctx, o.Item.ID, o.Analysis); err != nil {
			log.Warnf("Could not store analysis for %s: %v", o.Item.URL, err)
			continue
		}
		res.Videos[index[n]].Analysis = o.Analysis
	}
}

func (r *Runner) observe(status string, took time.Duration, videos []video.Item) {
	if r.Metrics != nil {
		r.Metrics.RunFinished(status, took, videos)
	}
}

func statusFor(err error) string {
	if errors.Is(err, utils.ErrRunInProgress) {
		return metrics.StatusBusy
	}
	return metrics.StatusFailed
}

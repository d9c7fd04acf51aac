package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/refscout/refscout/pkg/settings"
	"github.com/refscout/refscout/pkg/video"
)

// GetSettings returns the stored preferences, writing the defaults on first use.
func (d *DB) GetSettings(ctx context.Context) (settings.Preferences, error) {
	var (
		p                         settings.Preferences
		tools, styles, platforms  string
		recency, ranking, updated string
		autoAnalyze               int
	)
	err := d.sql.QueryRowContext(ctx, `SELECT genre, focus, tools, styles, recency, platforms, daily_limit, ranking, auto_analyze, updated_at FROM settings WHERE id = 1`).
		Scan(&p.PrimaryTopic, &p.SecondaryFocus, &tools, &styles, &recency, &platforms, &p.TargetCount, &ranking, &autoAnalyze, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return d.SaveSettings(ctx, settings.Defaults())
	}
	if err != nil {
		return settings.Preferences{}, err
	}

	if err := json.Unmarshal([]byte(tools), &p.Tools); err != nil {
		return settings.Preferences{}, fmt.Errorf("decoding tools: %w", err)
	}
	if err := json.Unmarshal([]byte(styles), &p.Styles); err != nil {
		return settings.Preferences{}, fmt.Errorf("decoding styles: %w", err)
	}
	var ps []string
	if err := json.Unmarshal([]byte(platforms), &ps); err != nil {
		return settings.Preferences{}, fmt.Errorf("decoding platforms: %w", err)
	}
	for _, s := range ps {
		p.Platforms = append(p.Platforms, video.Platform(s))
	}
	p.Recency = settings.RecencyWindow(recency)
	p.Ranking = settings.RankingMode(ranking)
	p.AutoAnalyze = autoAnalyze == 1
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SaveSettings normalizes and validates p before replacing the stored preferences.
func (d *DB) SaveSettings(ctx context.Context, p settings.Preferences) (settings.Preferences, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return settings.Preferences{}, err
	}
	if p.Recency == "" {
		p.Recency = settings.RecencyAll
	}
	if p.Ranking == "" {
		p.Ranking = settings.RankCreativeQuality
	}
	p.UpdatedAt = d.now().UTC()

	tools, err := json.Marshal(nonNil(p.Tools))
	if err != nil {
		return settings.Preferences{}, err
	}
	styles, err := json.Marshal(nonNil(p.Styles))
	if err != nil {
		return settings.Preferences{}, err
	}
	platforms, err := json.Marshal(p.Platforms)
	if err != nil {
		return settings.Preferences{}, err
	}

	_, err = d.sql.ExecContext(ctx, `
INSERT INTO settings(id, genre, focus, tools, styles, recency, platforms, daily_limit, ranking, auto_analyze, updated_at)
VALUES(1,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  genre = excluded.genre,
  focus = excluded.focus,
  tools = excluded.tools,
  styles = excluded.styles,
  recency = excluded.recency,
  platforms = excluded.platforms,
  daily_limit = excluded.daily_limit,
  ranking = excluded.ranking,
  auto_analyze = excluded.auto_analyze,
  updated_at = excluded.updated_at`,
		p.PrimaryTopic, p.SecondaryFocus, string(tools), string(styles), string(p.Recency), string(platforms),
		p.TargetCount, string(p.Ranking), boolToInt(p.AutoAnalyze), formatTime(p.UpdatedAt))
	if err != nil {
		return settings.Preferences{}, err
	}
	return p, nil
}

// ResetSettings restores the default preferences.
func (d *DB) ResetSettings(ctx context.Context) (settings.Preferences, error) {
	return d.SaveSettings(ctx, settings.Defaults())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/refscout/refscout/pkg/video"
)

const videoColumns = "id, video_url, title, description, thumbnail_url, author, platform, duration_seconds, published_at, views, likes, comments, score, tags, collected_by, collected_at, analysis"

// ListAllURLs returns the URL of every stored video.
func (d *DB) ListAllURLs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT video_url FROM videos")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// CreateVideo stores item under a new id. A video with the same URL already
// stored yields ErrDuplicateVideo.
func (d *DB) CreateVideo(ctx context.Context, item video.Item) (video.Item, error) {
	if strings.TrimSpace(item.URL) == "" {
		return video.Item{}, errors.New("video url is required")
	}
	if item.Platform == "" {
		return video.Item{}, errors.New("video platform is required")
	}

	var exists int
	err := d.sql.QueryRowContext(ctx, "SELECT 1 FROM videos WHERE video_url = ?", item.URL).Scan(&exists)
	if err == nil {
		return video.Item{}, ErrDuplicateVideo
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return video.Item{}, err
	}

	item.ID = uuid.NewString()
	if item.CollectedBy == "" {
		item.CollectedBy = video.CollectedManual
	}
	if item.CollectedAt.IsZero() {
		item.CollectedAt = d.now()
	}
	item.CollectedAt = item.CollectedAt.UTC()

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return video.Item{}, err
	}
	analysis, err := marshalAnalysis(item.Analysis)
	if err != nil {
		return video.Item{}, err
	}

	_, err = d.sql.ExecContext(ctx, `INSERT INTO videos(`+videoColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		item.ID, item.URL, item.Title, nullIfEmpty(item.Description), nullIfEmpty(item.ThumbnailURL), nullIfEmpty(item.Author),
		string(item.Platform), item.DurationSeconds, nullIfEmpty(formatTime(item.PublishedAt)),
		item.Metrics.Views, item.Metrics.Likes, item.Metrics.Comments, item.Metrics.Score,
		string(tags), item.CollectedBy, formatTime(item.CollectedAt), analysis)
	if err != nil {
		if isUniqueViolation(err) {
			return video.Item{}, ErrDuplicateVideo
		}
		return video.Item{}, err
	}
	return item, nil
}

func (d *DB) GetVideo(ctx context.Context, id string) (video.Item, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id)
	it, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return video.Item{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return it, err
}

// ListVideos returns videos matching opts, newest first.
func (d *DB) ListVideos(ctx context.Context, opts ListOptions) ([]video.Item, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Platform != "" && opts.Platform != "all" {
		where += " AND platform = ?"
		args = append(args, string(opts.Platform))
	}
	if opts.CollectedBy != "" {
		where += " AND collected_by = ?"
		args = append(args, opts.CollectedBy)
	}
	if !opts.Since.IsZero() {
		where += " AND collected_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	if !opts.Until.IsZero() {
		where += " AND collected_at < ?"
		args = append(args, formatTime(opts.Until))
	}

	q := "SELECT " + videoColumns + " FROM videos " + where + " ORDER BY collected_at DESC, rowid DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []video.Item{}
	for rows.Next() {
		it, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetAnalysis attaches (or, with nil, clears) the analysis of a video.
func (d *DB) SetAnalysis(ctx context.Context, id string, a *video.Analysis) error {
	blob, err := marshalAnalysis(a)
	if err != nil {
		return err
	}
	res, err := d.sql.ExecContext(ctx, "UPDATE videos SET analysis = ? WHERE id = ?", blob, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func (d *DB) DeleteVideo(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var (
		s    Stats
		last sql.NullString
	)
	err := d.sql.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN collected_by = 'auto' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN collected_by = 'manual' THEN 1 ELSE 0 END), 0),
			MAX(CASE WHEN collected_by = 'auto' THEN collected_at END)
		FROM videos`).Scan(&s.Total, &s.Auto, &s.Manual, &last)
	if err != nil {
		return Stats{}, err
	}
	if last.Valid {
		s.LastCollection = parseTime(last.String)
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT platform, COUNT(*) FROM videos GROUP BY platform ORDER BY platform")
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	s.PerPlatform = []PlatformCount{}
	for rows.Next() {
		var pc PlatformCount
		var p string
		if err := rows.Scan(&p, &pc.Count); err != nil {
			return Stats{}, err
		}
		pc.Platform = video.Platform(p)
		s.PerPlatform = append(s.PerPlatform, pc)
	}
	return s, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(r scanner) (video.Item, error) {
	var (
		it                                   video.Item
		desc, thumb, author, published, tags sql.NullString
		analysis                             sql.NullString
		platform, collectedAt                string
	)
	if err := r.Scan(&it.ID, &it.URL, &it.Title, &desc, &thumb, &author, &platform, &it.DurationSeconds, &published,
		&it.Metrics.Views, &it.Metrics.Likes, &it.Metrics.Comments, &it.Metrics.Score,
		&tags, &it.CollectedBy, &collectedAt, &analysis); err != nil {
		return video.Item{}, err
	}
	it.Description = desc.String
	it.ThumbnailURL = thumb.String
	it.Author = author.String
	it.Platform = video.Platform(platform)
	it.PublishedAt = parseTime(published.String)
	it.CollectedAt = parseTime(collectedAt)
	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &it.Tags); err != nil {
			return video.Item{}, fmt.Errorf("decoding tags of %s: %w", it.ID, err)
		}
	}
	if analysis.Valid && analysis.String != "" {
		it.Analysis = &video.Analysis{}
		if err := json.Unmarshal([]byte(analysis.String), it.Analysis); err != nil {
			return video.Item{}, fmt.Errorf("decoding analysis of %s: %w", it.ID, err)
		}
	}
	return it, nil
}

func marshalAnalysis(a *video.Analysis) (interface{}, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogRun appends a collection run to the run log and returns its id.
func (d *DB) LogRun(ctx context.Context, r RunRecord) (int64, error) {
	if r.CollectedAt.IsZero() {
		r.CollectedAt = d.now()
	}
	if r.Trigger == "" {
		r.Trigger = "cli"
	}
	breakdown := r.Breakdown
	if breakdown == nil {
		breakdown = []PlatformCount{}
	}
	b, err := json.Marshal(breakdown)
	if err != nil {
		return 0, err
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO collection_runs(collected_at, total_collected, newly_saved, breakdown, triggered_by) VALUES(?,?,?,?,?)`,
		formatTime(r.CollectedAt), r.TotalCollected, r.NewlySaved, string(b), r.Trigger)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecentRuns returns the most recent N runs, newest first.
func (d *DB) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, collected_at, total_collected, newly_saved, breakdown, triggered_by FROM collection_runs ORDER BY collected_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			r                    RunRecord
			collectedAt, breakdn string
		)
		if err := rows.Scan(&r.ID, &collectedAt, &r.TotalCollected, &r.NewlySaved, &breakdn, &r.Trigger); err != nil {
			return nil, err
		}
		r.CollectedAt = parseTime(collectedAt)
		if err := json.Unmarshal([]byte(breakdn), &r.Breakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown of run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

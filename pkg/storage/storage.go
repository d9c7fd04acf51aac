package storage

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS videos (
  id               TEXT PRIMARY KEY,
  video_url        TEXT NOT NULL UNIQUE,
  title            TEXT NOT NULL,
  description      TEXT,
  thumbnail_url    TEXT,
  author           TEXT,
  platform         TEXT NOT NULL,
  duration_seconds INTEGER NOT NULL DEFAULT 0,
  published_at     TEXT,
  views            INTEGER NOT NULL DEFAULT 0,
  likes            INTEGER NOT NULL DEFAULT 0,
  comments         INTEGER NOT NULL DEFAULT 0,
  score            REAL NOT NULL DEFAULT 0,
  tags             TEXT,
  collected_by     TEXT NOT NULL CHECK (collected_by IN ('auto','manual')),
  collected_at     TEXT NOT NULL,
  analysis         TEXT
);
CREATE INDEX IF NOT EXISTS idx_videos_collected ON videos(collected_at);
CREATE INDEX IF NOT EXISTS idx_videos_platform ON videos(platform, collected_at);
CREATE TABLE IF NOT EXISTS settings (
  id           INTEGER PRIMARY KEY CHECK (id = 1),
  genre        TEXT NOT NULL,
  focus        TEXT NOT NULL,
  tools        TEXT NOT NULL,
  styles       TEXT NOT NULL,
  recency      TEXT NOT NULL,
  platforms    TEXT NOT NULL,
  daily_limit  INTEGER NOT NULL,
  ranking      TEXT NOT NULL,
  auto_analyze INTEGER NOT NULL CHECK (auto_analyze IN (0,1)),
  updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS collection_runs (
  id              INTEGER PRIMARY KEY,
  collected_at    TEXT NOT NULL,
  total_collected INTEGER NOT NULL,
  newly_saved     INTEGER NOT NULL,
  breakdown       TEXT NOT NULL,
  triggered_by    TEXT NOT NULL DEFAULT 'cli'
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON collection_runs(collected_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SQL exposes the underlying handle for ad-hoc queries.
func (d *DB) SQL() *sql.DB { return d.sql }

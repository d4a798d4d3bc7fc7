package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSaveInterval is the progress flush interval of the sqlite backend.
const SQLiteSaveInterval = 10 * time.Second

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS play_records (
		key            TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		source_name    TEXT NOT NULL,
		year           TEXT NOT NULL,
		cover          TEXT NOT NULL,
		episode_index  INTEGER NOT NULL,
		total_episodes INTEGER NOT NULL,
		play_time      REAL NOT NULL,
		total_time     REAL NOT NULL,
		save_time      INTEGER NOT NULL,
		search_title   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS skip_configs (
		key        TEXT PRIMARY KEY,
		enable     INTEGER NOT NULL,
		intro_time REAL NOT NULL,
		outro_time REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		key            TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		source_name    TEXT NOT NULL,
		year           TEXT NOT NULL,
		cover          TEXT NOT NULL,
		total_episodes INTEGER NOT NULL,
		save_time      INTEGER NOT NULL,
		search_title   TEXT NOT NULL
	)`,
}

// SQLiteStore keeps every collection in one sqlite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveInterval() time.Duration { return SQLiteSaveInterval }

func isBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	delay := busyRetryBackoff
	var err error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		if _, err = s.db.ExecContext(ctx, query, args...); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

func (s *SQLiteStore) PlayRecord(ctx context.Context, key string) (PlayRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT title, source_name, year, cover, episode_index, total_episodes,
		play_time, total_time, save_time, search_title FROM play_records WHERE key = ?`, key)

	var r PlayRecord
	err := row.Scan(&r.Title, &r.SourceName, &r.Year, &r.Cover, &r.Index, &r.TotalEpisodes,
		&r.PlayTime, &r.TotalTime, &r.SaveTime, &r.SearchTitle)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return PlayRecord{}, false, nil
	case err != nil:
		return PlayRecord{}, false, fmt.Errorf("get play record: %w", err)
	}
	return r, true, nil
}

func (s *SQLiteStore) PlayRecords(ctx context.Context) (map[string]PlayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, title, source_name, year, cover, episode_index,
		total_episodes, play_time, total_time, save_time, search_title FROM play_records`)
	if err != nil {
		return nil, fmt.Errorf("list play records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PlayRecord)
	for rows.Next() {
		var (
			k string
			r PlayRecord
		)
		if err := rows.Scan(&k, &r.Title, &r.SourceName, &r.Year, &r.Cover, &r.Index,
			&r.TotalEpisodes, &r.PlayTime, &r.TotalTime, &r.SaveTime, &r.SearchTitle); err != nil {
			return nil, fmt.Errorf("scan play record: %w", err)
		}
		out[k] = r
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePlayRecord(ctx context.Context, key string, r PlayRecord) error {
	return s.exec(ctx, `INSERT INTO play_records (key, title, source_name, year, cover, episode_index,
		total_episodes, play_time, total_time, save_time, search_title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			source_name = excluded.source_name,
			year = excluded.year,
			cover = excluded.cover,
			episode_index = excluded.episode_index,
			total_episodes = excluded.total_episodes,
			play_time = excluded.play_time,
			total_time = excluded.total_time,
			save_time = excluded.save_time,
			search_title = excluded.search_title`,
		key, r.Title, r.SourceName, r.Year, r.Cover, r.Index,
		r.TotalEpisodes, r.PlayTime, r.TotalTime, r.SaveTime, r.SearchTitle)
}

func (s *SQLiteStore) DeletePlayRecord(ctx context.Context, key string) error {
	return s.exec(ctx, `DELETE FROM play_records WHERE key = ?`, key)
}

func (s *SQLiteStore) SkipConfig(ctx context.Context, key string) (SkipConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT enable, intro_time, outro_time FROM skip_configs WHERE key = ?`, key)

	var c SkipConfig
	err := row.Scan(&c.Enable, &c.IntroTime, &c.OutroTime)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return SkipConfig{}, false, nil
	case err != nil:
		return SkipConfig{}, false, fmt.Errorf("get skip config: %w", err)
	}
	return c, true, nil
}

func (s *SQLiteStore) SaveSkipConfig(ctx context.Context, key string, c SkipConfig) error {
	return s.exec(ctx, `INSERT INTO skip_configs (key, enable, intro_time, outro_time) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			enable = excluded.enable,
			intro_time = excluded.intro_time,
			outro_time = excluded.outro_time`,
		key, c.Enable, c.IntroTime, c.OutroTime)
}

func (s *SQLiteStore) DeleteSkipConfig(ctx context.Context, key string) error {
	return s.exec(ctx, `DELETE FROM skip_configs WHERE key = ?`, key)
}

func (s *SQLiteStore) IsFavorited(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM favorites WHERE key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Favorites(ctx context.Context) (map[string]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, title, source_name, year, cover, total_episodes,
		save_time, search_title FROM favorites`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Favorite)
	for rows.Next() {
		var (
			k string
			f Favorite
		)
		if err := rows.Scan(&k, &f.Title, &f.SourceName, &f.Year, &f.Cover, &f.TotalEpisodes,
			&f.SaveTime, &f.SearchTitle); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out[k] = f
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveFavorite(ctx context.Context, key string, f Favorite) error {
	return s.exec(ctx, `INSERT INTO favorites (key, title, source_name, year, cover, total_episodes,
		save_time, search_title) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			source_name = excluded.source_name,
			year = excluded.year,
			cover = excluded.cover,
			total_episodes = excluded.total_episodes,
			save_time = excluded.save_time,
			search_title = excluded.search_title`,
		key, f.Title, f.SourceName, f.Year, f.Cover, f.TotalEpisodes, f.SaveTime, f.SearchTitle)
}

func (s *SQLiteStore) DeleteFavorite(ctx context.Context, key string) error {
	return s.exec(ctx, `DELETE FROM favorites WHERE key = ?`, key)
}

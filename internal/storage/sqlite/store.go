// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/storage"
	"github.com/tomz197/dontblink/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for progress and settings.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// OpenStore opens the SQLite store at path, or an in-memory store when path is empty.
func OpenStore(ctx context.Context, path string) (storage.Store, error) {
	if strings.TrimSpace(path) == "" {
		return storage.NewMemoryStore(), nil
	}
	store, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) LoadProgress(ctx context.Context, profile string) (storage.Progress, error) {
	profile, err := storage.NormalizeProfile(profile)
	if err != nil {
		return storage.Progress{}, err
	}

	var (
		p          = storage.Progress{Profile: profile}
		survivalMs int64
		difficulty string
		updatedAt  int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT high_score, best_survival_ms, games_played, difficulty, updated_at
		 FROM progress
		 WHERE profile = ?`,
		profile,
	).Scan(&p.HighScore, &survivalMs, &p.GamesPlayed, &difficulty, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Progress{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Progress{}, fmt.Errorf("load progress: %w", err)
	}

	p.BestSurvival = time.Duration(survivalMs) * time.Millisecond
	p.Difficulty = config.Difficulty(difficulty)
	if !p.Difficulty.Valid() {
		p.Difficulty = config.Normal
	}
	p.UpdatedAt = unixMillisToTime(updatedAt)
	return p, nil
}

func (s *Store) SaveProgress(ctx context.Context, p storage.Progress) error {
	profile, err := storage.NormalizeProfile(p.Profile)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO progress (profile, high_score, best_survival_ms, games_played, difficulty, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET
		    high_score = excluded.high_score,
		    best_survival_ms = excluded.best_survival_ms,
		    games_played = excluded.games_played,
		    difficulty = excluded.difficulty,
		    updated_at = excluded.updated_at`,
		profile,
		p.HighScore,
		p.BestSurvival.Milliseconds(),
		p.GamesPlayed,
		string(p.Difficulty),
		timeToUnixMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *Store) TopProgress(ctx context.Context, limit int) ([]storage.Progress, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT profile, high_score, best_survival_ms, games_played, difficulty, updated_at
		 FROM progress
		 ORDER BY high_score DESC, profile ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []storage.Progress
	for rows.Next() {
		var (
			p          storage.Progress
			survivalMs int64
			difficulty string
			updatedAt  int64
		)
		if err := rows.Scan(&p.Profile, &p.HighScore, &survivalMs, &p.GamesPlayed, &difficulty, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.BestSurvival = time.Duration(survivalMs) * time.Millisecond
		p.Difficulty = config.Difficulty(difficulty)
		p.UpdatedAt = unixMillisToTime(updatedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return out, nil
}

// LoadSettings returns the stored bundle, normalized.
func (s *Store) LoadSettings(ctx context.Context, profile string) (settings.Settings, error) {
	profile, err := storage.NormalizeProfile(profile)
	if err != nil {
		return settings.Settings{}, err
	}

	var raw string
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT settings_json FROM settings WHERE profile = ?`,
		profile,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Settings{}, storage.ErrNotFound
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	// Fields missing from older rows keep their defaults.
	out := settings.Default()
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return settings.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	out.Normalize()
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, profile string, bundle settings.Settings) error {
	profile, err := storage.NormalizeProfile(profile)
	if err != nil {
		return err
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (profile, settings_json, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET
		    settings_json = excluded.settings_json,
		    updated_at = excluded.updated_at`,
		profile,
		string(data),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var _ storage.Store = (*Store)(nil)

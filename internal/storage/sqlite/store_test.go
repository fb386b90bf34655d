package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/storage"
	"github.com/tomz197/dontblink/internal/tracking"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dontblink.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store, path
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenStoreFallsBackToMemory(t *testing.T) {
	store, err := OpenStore(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*storage.MemoryStore); !ok {
		t.Fatalf("store = %T, want *storage.MemoryStore", store)
	}

	store, err = OpenStore(context.Background(), filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*Store); !ok {
		t.Fatalf("store = %T, want *Store", store)
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	_, path := openTestStore(t)

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sqlDB.Close()

	for _, table := range []string{"progress", "settings", migrationTable} {
		var name string
		err := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dontblink.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProgressRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadProgress(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing progress err = %v, want ErrNotFound", err)
	}

	updated := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	want := storage.Progress{
		Profile:      "alice",
		HighScore:    345,
		BestSurvival: 34500 * time.Millisecond,
		GamesPlayed:  3,
		Difficulty:   config.Hard,
		UpdatedAt:    updated,
	}
	if err := store.SaveProgress(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.HighScore != want.HighScore || got.BestSurvival != want.BestSurvival ||
		got.GamesPlayed != want.GamesPlayed || got.Difficulty != want.Difficulty ||
		!got.UpdatedAt.Equal(want.UpdatedAt) || got.Profile != want.Profile {
		t.Errorf("LoadProgress = %+v, want %+v", got, want)
	}

	want.HighScore = 500
	want.GamesPlayed = 4
	if err := store.SaveProgress(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = store.LoadProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.HighScore != 500 || got.GamesPlayed != 4 {
		t.Errorf("after upsert = %+v", got)
	}
}

func TestTopProgress(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for _, p := range []storage.Progress{
		{Profile: "carol", HighScore: 50, Difficulty: config.Normal},
		{Profile: "alice", HighScore: 90, Difficulty: config.Hard},
		{Profile: "bob", HighScore: 50, Difficulty: config.Easy},
	} {
		if err := store.SaveProgress(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	top, err := store.TopProgress(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Profile != "alice" || top[1].Profile != "bob" {
		t.Errorf("TopProgress = %+v", top)
	}
	if top[0].Difficulty != config.Hard {
		t.Errorf("difficulty = %q", top[0].Difficulty)
	}

	none, err := store.TopProgress(ctx, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("TopProgress(0) = %v, %v", none, err)
	}
}

func TestSaveProgressRequiresProfile(t *testing.T) {
	store, _ := openTestStore(t)
	err := store.SaveProgress(context.Background(), storage.Progress{HighScore: 1})
	if !errors.Is(err, storage.ErrProfileRequired) {
		t.Errorf("err = %v, want ErrProfileRequired", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadSettings(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing settings err = %v, want ErrNotFound", err)
	}

	s := settings.Default()
	s.Gameplay.Difficulty = config.Nightmare
	s.Gameplay.TrackingMode = tracking.ModeMouse
	s.Accessibility.HighContrast = true
	s.Advanced.ShowFPS = true
	if err := store.SaveSettings(ctx, "bob", s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadSettings(ctx, "bob")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != s {
		t.Errorf("LoadSettings = %+v, want %+v", got, s)
	}
}

func TestLoadSettingsNormalizesStoredRows(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, err := store.sqlDB.ExecContext(ctx,
		`INSERT INTO settings (profile, settings_json, updated_at) VALUES (?, ?, 0)`,
		"carol", `{"audio":{"masterVolume":3},"gameplay":{"difficulty":"bogus"}}`,
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadSettings(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if got.Audio.MasterVolume != 1 {
		t.Errorf("master volume = %v, want 1", got.Audio.MasterVolume)
	}
	if got.Gameplay.Difficulty != config.Normal {
		t.Errorf("difficulty = %q, want normal", got.Gameplay.Difficulty)
	}
	if got.Gameplay.TrackingMode != tracking.ModeAuto {
		t.Errorf("tracking mode = %q, want default auto", got.Gameplay.TrackingMode)
	}
}

func TestApplyMigrationsOrder(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	fsys := fstest.MapFS{
		"002_add.sql":    {Data: []byte("-- +migrate Up\nALTER TABLE items ADD COLUMN label TEXT;\n-- +migrate Down\nSELECT 1;")},
		"001_create.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);")},
		"README.md":      {Data: []byte("ignored")},
	}
	ctx := context.Background()
	if err := applyMigrations(ctx, sqlDB, fsys); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := applyMigrations(ctx, sqlDB, fsys); err != nil {
		t.Fatalf("reapply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM ` + migrationTable).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("recorded migrations = %d, want 2", count)
	}
	if _, err := sqlDB.Exec(`INSERT INTO items (id, label) VALUES ('a', 'b')`); err != nil {
		t.Errorf("migrated schema: %v", err)
	}
}

func TestExtractUp(t *testing.T) {
	got := extractUp("-- +migrate Up\nA;\n-- +migrate Down\nB;")
	if got != "\nA;\n" {
		t.Errorf("extractUp = %q", got)
	}
	if got := extractUp("PLAIN;"); got != "PLAIN;" {
		t.Errorf("extractUp without markers = %q", got)
	}
}

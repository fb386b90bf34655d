// Package storage defines persistence for player progress and settings.
package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/settings"
)

// ErrNotFound is returned when no record exists for a profile.
var ErrNotFound = errors.New("record not found")

// ErrProfileRequired is returned for an empty profile name.
var ErrProfileRequired = errors.New("profile is required")

// Progress is the persisted best result of one player.
type Progress struct {
	Profile      string
	HighScore    int
	BestSurvival time.Duration
	GamesPlayed  int
	Difficulty   config.Difficulty // Difficulty of the last finished game
	UpdatedAt    time.Time
}

// Record folds a finished game into the progress. Best values never decrease.
func (p *Progress) Record(score int, survival time.Duration, d config.Difficulty, now time.Time) {
	p.HighScore = max(p.HighScore, score)
	p.BestSurvival = max(p.BestSurvival, survival)
	p.GamesPlayed++
	p.Difficulty = d
	p.UpdatedAt = now
}

// Store persists progress and settings keyed by profile.
type Store interface {
	LoadProgress(ctx context.Context, profile string) (Progress, error)
	SaveProgress(ctx context.Context, p Progress) error
	// TopProgress returns up to limit records ordered by high score, best first.
	TopProgress(ctx context.Context, limit int) ([]Progress, error)
	LoadSettings(ctx context.Context, profile string) (settings.Settings, error)
	SaveSettings(ctx context.Context, profile string, s settings.Settings) error
	Close() error
}

// NormalizeProfile trims a profile name and rejects empty ones.
func NormalizeProfile(profile string) (string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return "", ErrProfileRequired
	}
	return profile, nil
}

// MemoryStore keeps records in process memory. Used by the local game when
// no database is configured, and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	progress map[string]Progress
	settings map[string]settings.Settings
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]Progress),
		settings: make(map[string]settings.Settings),
	}
}

func (m *MemoryStore) LoadProgress(ctx context.Context, profile string) (Progress, error) {
	profile, err := NormalizeProfile(profile)
	if err != nil {
		return Progress{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[profile]
	if !ok {
		return Progress{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) SaveProgress(ctx context.Context, p Progress) error {
	profile, err := NormalizeProfile(p.Profile)
	if err != nil {
		return err
	}
	p.Profile = profile
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[profile] = p
	return nil
}

func (m *MemoryStore) TopProgress(ctx context.Context, limit int) ([]Progress, error) {
	m.mu.Lock()
	out := make([]Progress, 0, len(m.progress))
	for _, p := range m.progress {
		out = append(out, p)
	}
	m.mu.Unlock()

	slices.SortFunc(out, CompareProgress)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CompareProgress orders records by high score descending, then profile.
func CompareProgress(a, b Progress) int {
	if c := cmp.Compare(b.HighScore, a.HighScore); c != 0 {
		return c
	}
	return cmp.Compare(a.Profile, b.Profile)
}

func (m *MemoryStore) LoadSettings(ctx context.Context, profile string) (settings.Settings, error) {
	profile, err := NormalizeProfile(profile)
	if err != nil {
		return settings.Settings{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[profile]
	if !ok {
		return settings.Settings{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, profile string, s settings.Settings) error {
	profile, err := NormalizeProfile(profile)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[profile] = s
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

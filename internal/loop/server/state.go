package server

import (
	"slices"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/storage"
)

// TopScoreEntry represents a single entry on the leaderboard.
type TopScoreEntry struct {
	Profile  string
	Score    int
	Survival time.Duration
}

// LobbySnapshot is an immutable view of the shared lobby for rendering.
type LobbySnapshot struct {
	Players   int
	TopScores []TopScoreEntry // Best results across all profiles, best first
}

// Result is a finished game reported by a client.
type Result struct {
	Score      int
	Survival   time.Duration
	Frozen     int
	Difficulty config.Difficulty
}

// ClientHandle represents a client's connection to the server.
type ClientHandle struct {
	ID       int
	Profile  string
	Progress storage.Progress  // Loaded at registration
	Settings settings.Settings // Loaded at registration
	EventsCh chan ClientEvent  // Events sent to client
}

// ClientEvent represents an event sent from server to client.
type ClientEvent struct {
	Type    ClientEventType
	Profile string // Player the event is about
	Score   int
}

// ClientEventType identifies the type of client event.
type ClientEventType int

const (
	EventServerShutdown ClientEventType = iota
	// EventNewRecord announces a result that took first place on the leaderboard.
	EventNewRecord
)

type clientResult struct {
	profile string
	result  Result
}

type clientSettings struct {
	profile  string
	settings settings.Settings
}

// leaderboard keeps one entry per profile, best first.
type leaderboard struct {
	entries []TopScoreEntry
	size    int
}

func newLeaderboard(size int) *leaderboard {
	return &leaderboard{size: size}
}

// load replaces the board with persisted progress.
func (l *leaderboard) load(records []storage.Progress) {
	l.entries = l.entries[:0]
	for _, p := range records {
		l.entries = append(l.entries, TopScoreEntry{Profile: p.Profile, Score: p.HighScore, Survival: p.BestSurvival})
	}
	l.sort()
}

// submit folds a result into the board and reports whether it is now first.
func (l *leaderboard) submit(e TopScoreEntry) bool {
	if e.Score <= 0 {
		return false
	}
	prevBest := 0
	if len(l.entries) > 0 {
		prevBest = l.entries[0].Score
	}

	i := slices.IndexFunc(l.entries, func(x TopScoreEntry) bool { return x.Profile == e.Profile })
	switch {
	case i < 0:
		l.entries = append(l.entries, e)
	case e.Score > l.entries[i].Score:
		l.entries[i].Score = e.Score
		l.entries[i].Survival = max(l.entries[i].Survival, e.Survival)
	default:
		return false
	}
	l.sort()
	return l.entries[0].Profile == e.Profile && e.Score > prevBest
}

func (l *leaderboard) sort() {
	slices.SortStableFunc(l.entries, func(a, b TopScoreEntry) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if a.Profile < b.Profile {
			return -1
		}
		if a.Profile > b.Profile {
			return 1
		}
		return 0
	})
	if len(l.entries) > l.size {
		l.entries = l.entries[:l.size]
	}
}

// top returns a copy safe to publish in a snapshot.
func (l *leaderboard) top() []TopScoreEntry {
	return slices.Clone(l.entries)
}

// Package loop runs the gaze/freeze simulation: the session state machine,
// per-tick orchestration and the loss detector.
package loop

import (
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/object"
	"github.com/tomz197/dontblink/internal/tracking"
)

// Phase is the session's position in the game flow.
type Phase int

const (
	PhaseMenu        Phase = iota // Title screen
	PhaseCalibration              // Calibration grid
	PhasePlaying                  // Active simulation
	PhasePaused                   // Simulation suspended
	PhaseGameOver                 // Loss screen
)

func (p Phase) String() string {
	switch p {
	case PhaseMenu:
		return "menu"
	case PhaseCalibration:
		return "calibration"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Session is the aggregate root of one game. It exclusively owns its entities
// and is driven from a single goroutine.
type Session struct {
	Phase  Phase
	Paused bool

	StartTime      time.Time // Zero while no game is running
	SurvivalTime   time.Duration
	Score          int
	HighScore      int
	EntitiesFrozen int
	PeakEntities   int

	Entities      []*object.Entity
	MaxEntities   int
	SpawnInterval time.Duration

	Difficulty config.Difficulty
	Multiplier float64

	TrackingMode tracking.Mode
	Calibrated   bool
	Gaze         *gaze.Sample

	clock    func() time.Time
	pausedAt time.Time
	pool     *object.Pool
	spawner  *object.EntitySpawner
	detector Detector
	pending  []*object.Entity
	logger   *charmlog.Logger
}

// SessionOptions configures a new Session.
type SessionOptions struct {
	Difficulty   config.Difficulty
	HighScore    int
	TrackingMode tracking.Mode
	Seed         int64            // Spawn RNG seed; zero picks a time-based seed
	Clock        func() time.Time // Defaults to time.Now
	Logger       *charmlog.Logger // Defaults to the process logger
}

// NewSession creates a session in the menu phase.
func NewSession(opts SessionOptions) *Session {
	if !opts.Difficulty.Valid() {
		opts.Difficulty = config.Normal
	}
	if opts.TrackingMode == "" {
		opts.TrackingMode = tracking.ModeAuto
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.L()
	}

	spawnCfg := object.DefaultSpawnerConfig()
	if opts.Seed != 0 {
		spawnCfg.Seed = opts.Seed
	}
	pool := object.NewPool(config.EntityPoolSize)

	s := &Session{
		Phase:        PhaseMenu,
		HighScore:    opts.HighScore,
		Difficulty:   opts.Difficulty,
		Multiplier:   1,
		TrackingMode: opts.TrackingMode,
		clock:        opts.Clock,
		pool:         pool,
		spawner:      object.NewEntitySpawner(spawnCfg, pool),
		detector:     NewDetector(),
		logger:       opts.Logger,
	}
	s.applyPreset()
	return s
}

// applyPreset seeds the entity cap and base spawn interval from the difficulty
// preset. Entity speed and freeze radius keep their stock values on every preset.
func (s *Session) applyPreset() {
	p := config.Preset(s.Difficulty)
	s.MaxEntities = p.MaxEntities
	s.SpawnInterval = p.SpawnInterval
	s.spawner.SetBaseInterval(p.SpawnInterval)
}

// clearRound releases all entities and zeroes the per-round counters.
func (s *Session) clearRound() {
	s.Entities = object.ReleaseAll(s.pool, s.Entities)
	s.pending = object.ReleaseAll(s.pool, s.pending)
	s.spawner.Reset()
	s.SurvivalTime = 0
	s.Score = 0
	s.EntitiesFrozen = 0
	s.PeakEntities = 0
	s.Multiplier = 1
	s.Paused = false
	s.pausedAt = time.Time{}
}

// Running reports whether the simulation should tick.
func (s *Session) Running() bool {
	return s.Phase == PhasePlaying && !s.Paused
}

// BeginCalibration moves from the menu to the calibration phase.
func (s *Session) BeginCalibration() bool {
	if s.Phase != PhaseMenu {
		return false
	}
	s.Phase = PhaseCalibration
	s.logger.Debug("calibration started")
	return true
}

// StartGame resets the round counters, seeds the entity cap and spawn interval
// from the difficulty preset and enters the playing phase.
func (s *Session) StartGame() {
	s.clearRound()
	s.applyPreset()
	s.StartTime = s.clock()
	s.Phase = PhasePlaying
	s.logger.Info("game started", "difficulty", s.Difficulty, "tracking", s.TrackingMode)
}

// TogglePause flips between playing and paused. Paused time does not count
// toward survival. Outside those phases it does nothing.
func (s *Session) TogglePause() {
	switch s.Phase {
	case PhasePlaying:
		s.Paused = true
		s.Phase = PhasePaused
		s.pausedAt = s.clock()
	case PhasePaused:
		if !s.pausedAt.IsZero() && !s.StartTime.IsZero() {
			s.StartTime = s.StartTime.Add(s.clock().Sub(s.pausedAt))
		}
		s.pausedAt = time.Time{}
		s.Paused = false
		s.Phase = PhasePlaying
	}
}

// EndGame records the high score and enters the game over phase.
// It does nothing unless a game is in progress.
func (s *Session) EndGame() {
	if s.Phase != PhasePlaying && s.Phase != PhasePaused {
		return
	}
	s.HighScore = max(s.HighScore, s.Score)
	s.StartTime = time.Time{}
	s.Paused = false
	s.pausedAt = time.Time{}
	s.Phase = PhaseGameOver
	s.Entities = object.ReleaseAll(s.pool, s.Entities)
	s.pending = object.ReleaseAll(s.pool, s.pending)
	s.logger.Info("game over", "score", s.Score, "high_score", s.HighScore,
		"survival", FormatDuration(s.SurvivalTime), "frozen", s.EntitiesFrozen)
}

// ResetGame returns to the menu, clearing everything but the difficulty,
// tracking selection and high score.
func (s *Session) ResetGame() {
	s.clearRound()
	s.applyPreset()
	s.StartTime = time.Time{}
	s.Gaze = nil
	s.Phase = PhaseMenu
}

// SetDifficulty selects a preset and re-seeds the spawn tuning immediately.
func (s *Session) SetDifficulty(d config.Difficulty) {
	if !d.Valid() {
		return
	}
	s.Difficulty = d
	s.applyPreset()
}

// SetTrackingMode records the selected tracking mode.
func (s *Session) SetTrackingMode(m tracking.Mode) {
	s.TrackingMode = m
}

// SetCalibrated records whether calibration was completed.
func (s *Session) SetCalibrated(ok bool) {
	s.Calibrated = ok
}

// SetGaze sets the smoothed gaze used by the next tick. nil means no gaze.
func (s *Session) SetGaze(g *gaze.Sample) {
	s.Gaze = g
}

// Stats summarizes the current or last round.
type Stats struct {
	SurvivalTime   time.Duration
	EntitiesFrozen int
	Score          int
	HighScore      int
	PeakEntities   int
}

// Stats returns the round statistics.
func (s *Session) Stats() Stats {
	return Stats{
		SurvivalTime:   s.SurvivalTime,
		EntitiesFrozen: s.EntitiesFrozen,
		Score:          s.Score,
		HighScore:      s.HighScore,
		PeakEntities:   s.PeakEntities,
	}
}

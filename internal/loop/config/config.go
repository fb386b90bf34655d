// Package config centralizes all tunable game parameters.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Gaze and freeze
const (
	FreezeRadius   = 150.0 // Default freeze radius in pixels
	GazeBufferSize = 5     // Samples averaged by the gaze processor
)

// Termination
const (
	DangerRadius      = 100.0 // Entities closer than this to center end the game
	DangerRangeFactor = 3.0   // Danger level reaches zero at DangerRadius * DangerRangeFactor
	OutOfBoundsMargin = 200.0
)

// Entity rendering hints
const (
	EntityScale          = 1.0
	EntityOpacityMoving  = 0.3
	EntityOpacityFrozen  = 0.7
	EntityFadeStartRatio = 1.5 // Fade starts at freezeRadius * ratio
	EntityFadeEndRatio   = 2.0 // Fade ends at freezeRadius * ratio
	EntityRadius         = 30.0
)

// Spawning
const (
	BaseSpawnInterval     = 5 * time.Second
	MinSpawnInterval      = 2 * time.Second
	SpawnIntervalStep     = 10 * time.Second       // Interval shrinks once per step of survival
	SpawnIntervalDecrease = 500 * time.Millisecond // Amount removed per step
	SpawnEdgeMargin       = 50.0                   // Pixels outside the viewport
	BaseEntitySpeed       = 1.0
	SpeedStep             = 30 * time.Second
	SpeedIncrease         = 0.2
)

// Difficulty multiplier
const (
	MultiplierStep     = 30 * time.Second
	MultiplierIncrease = 0.1
	MaxMultiplier      = 2.5
)

// Pooling
const (
	EntityPoolSize = 20
)

// Scoring
const (
	ScoreInterval = 100 * time.Millisecond // One point per interval survived
)

// Movement is normalized to a 60fps-equivalent step.
const (
	MovementFrameRate = 60
)

// Calibration
const (
	CalibrationMargin  = 100.0
	CalibrationPoints  = 9
	CalibrationClicks  = 1 // Confirmations needed per point
	CalibrationTimeout = 30 * time.Second
)

// Eye tracking
const (
	EyeSampleDebounce   = 16 * time.Millisecond
	EyeAcquireRetries   = 1
	EyeHandshakeTimeout = 5 * time.Second
)

// Terminal mapping: each cell covers CellWidth x CellHeight logical pixels.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

// Client rendering
const (
	ClientTargetFPS       = 60
	ClientTargetFrameTime = time.Second / ClientTargetFPS
	FirstFrameDelta       = 16 * time.Millisecond
	FPSWindow             = 60
	FPSRefresh            = time.Second
	MaxTermWidth          = 240
	MaxTermHeight         = 80
	NoticeDuration        = 5 * time.Second
	DangerBarWidth        = 20
	DangerWarnLevel       = 0.7
)

// Lobby server
const (
	LobbyTickTime   = 100 * time.Millisecond
	LeaderboardSize = 5
	StoreTimeout    = 2 * time.Second // Bound on a single storage call
	ClientEventBuf  = 16
)

// Shutdown
const (
	ShutdownDisplaySeconds = 10.0 // Seconds to show shutdown message before auto-disconnect
	ShutdownWait           = 15 * time.Second
)

// Inactivity (menus only; gameplay is gaze driven and may go without key presses)
const (
	InactivityWarnUser       = 240 // Seconds
	InactivityDisconnectUser = 300 // Seconds
)

// Difficulty identifies a preset.
type Difficulty string

const (
	Easy      Difficulty = "easy"
	Normal    Difficulty = "normal"
	Hard      Difficulty = "hard"
	Nightmare Difficulty = "nightmare"
)

// Difficulties lists the presets in menu order.
var Difficulties = []Difficulty{Easy, Normal, Hard, Nightmare}

// DifficultyConfig is the immutable tuning for one preset. A session seeds only
// MaxEntities and SpawnInterval from it; spawned entities always start at
// BaseEntitySpeed and FreezeRadius from the constants above.
type DifficultyConfig struct {
	BaseEntitySpeed float64
	MaxEntities     int
	SpawnInterval   time.Duration
	FreezeRadius    float64
}

var presets = map[Difficulty]DifficultyConfig{
	Easy:      {BaseEntitySpeed: 0.5, MaxEntities: 3, SpawnInterval: 6 * time.Second, FreezeRadius: 200},
	Normal:    {BaseEntitySpeed: 1.0, MaxEntities: 5, SpawnInterval: 5 * time.Second, FreezeRadius: 150},
	Hard:      {BaseEntitySpeed: 1.5, MaxEntities: 7, SpawnInterval: 4 * time.Second, FreezeRadius: 120},
	Nightmare: {BaseEntitySpeed: 2.0, MaxEntities: 10, SpawnInterval: 3 * time.Second, FreezeRadius: 100},
}

// Preset returns the tuning for d. Unknown values resolve to Normal.
func Preset(d Difficulty) DifficultyConfig {
	if cfg, ok := presets[d]; ok {
		return cfg
	}
	return presets[Normal]
}

// Valid reports whether d names a known preset.
func (d Difficulty) Valid() bool {
	_, ok := presets[d]
	return ok
}

// Title returns the display name.
func (d Difficulty) Title() string {
	s := string(d)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseDifficulty converts a case-insensitive name to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

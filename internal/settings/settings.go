// Package settings holds the per-player preferences bundle.
package settings

import (
	"math"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/tracking"
)

// UI scale bounds.
const (
	MinUIScale = 0.5
	MaxUIScale = 2.0
)

// Audio controls the terminal bell cues.
type Audio struct {
	MasterVolume  float64 `json:"masterVolume"`
	SFXVolume     float64 `json:"sfxVolume"`
	AmbientVolume float64 `json:"ambientVolume"`
	Muted         bool    `json:"isMuted"`
}

// Gameplay holds the round defaults.
type Gameplay struct {
	Difficulty   config.Difficulty `json:"difficulty"`
	ShowTutorial bool              `json:"showTutorial"`
	TrackingMode tracking.Mode     `json:"trackingMode"`
}

// Accessibility adjusts presentation.
type Accessibility struct {
	HighContrast bool    `json:"highContrast"`
	ReduceMotion bool    `json:"reduceMotion"`
	UIScale      float64 `json:"uiScale"`
}

// Advanced toggles diagnostic overlays.
type Advanced struct {
	ShowFPS       bool `json:"showFPS"`
	ShowDebugInfo bool `json:"showDebugInfo"`
}

// Settings is the complete bundle persisted per player.
type Settings struct {
	Audio         Audio         `json:"audio"`
	Gameplay      Gameplay      `json:"gameplay"`
	Accessibility Accessibility `json:"accessibility"`
	Advanced      Advanced      `json:"advanced"`
}

// Default returns the settings a new player starts with.
func Default() Settings {
	return Settings{
		Audio: Audio{
			MasterVolume:  0.7,
			SFXVolume:     0.8,
			AmbientVolume: 0.6,
		},
		Gameplay: Gameplay{
			Difficulty:   config.Normal,
			ShowTutorial: true,
			TrackingMode: tracking.ModeAuto,
		},
		Accessibility: Accessibility{
			UIScale: 1.0,
		},
	}
}

// Normalize clamps numeric fields and replaces unknown enum values with defaults.
// Bundles loaded from storage go through it before use.
func (s *Settings) Normalize() {
	def := Default()

	s.Audio.MasterVolume = clamp01(s.Audio.MasterVolume)
	s.Audio.SFXVolume = clamp01(s.Audio.SFXVolume)
	s.Audio.AmbientVolume = clamp01(s.Audio.AmbientVolume)

	if !s.Gameplay.Difficulty.Valid() {
		s.Gameplay.Difficulty = def.Gameplay.Difficulty
	}
	if m, err := tracking.ParseMode(string(s.Gameplay.TrackingMode)); err == nil {
		s.Gameplay.TrackingMode = m
	} else {
		s.Gameplay.TrackingMode = def.Gameplay.TrackingMode
	}

	switch {
	case s.Accessibility.UIScale == 0:
		s.Accessibility.UIScale = def.Accessibility.UIScale
	case s.Accessibility.UIScale < MinUIScale:
		s.Accessibility.UIScale = MinUIScale
	case s.Accessibility.UIScale > MaxUIScale:
		s.Accessibility.UIScale = MaxUIScale
	}
}

// BellEnabled reports whether sound cues should ring the terminal bell.
func (s Settings) BellEnabled() bool {
	return !s.Audio.Muted && s.Audio.MasterVolume > 0 && s.Audio.SFXVolume > 0
}

// ToggleMute flips the mute flag.
func (s *Settings) ToggleMute() {
	s.Audio.Muted = !s.Audio.Muted
}

// ToggleHighContrast flips high-contrast rendering.
func (s *Settings) ToggleHighContrast() {
	s.Accessibility.HighContrast = !s.Accessibility.HighContrast
}

// ToggleReduceMotion flips reduced motion.
func (s *Settings) ToggleReduceMotion() {
	s.Accessibility.ReduceMotion = !s.Accessibility.ReduceMotion
}

// ToggleFPS flips the FPS meter.
func (s *Settings) ToggleFPS() {
	s.Advanced.ShowFPS = !s.Advanced.ShowFPS
}

// ToggleDebug flips the debug overlay.
func (s *Settings) ToggleDebug() {
	s.Advanced.ShowDebugInfo = !s.Advanced.ShowDebugInfo
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

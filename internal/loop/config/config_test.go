package config

import (
	"testing"
	"time"
)

func TestPresetTable(t *testing.T) {
	tests := []struct {
		d        Difficulty
		speed    float64
		max      int
		interval time.Duration
		radius   float64
	}{
		{Easy, 0.5, 3, 6 * time.Second, 200},
		{Normal, 1.0, 5, 5 * time.Second, 150},
		{Hard, 1.5, 7, 4 * time.Second, 120},
		{Nightmare, 2.0, 10, 3 * time.Second, 100},
	}
	for _, tc := range tests {
		t.Run(string(tc.d), func(t *testing.T) {
			got := Preset(tc.d)
			if got.BaseEntitySpeed != tc.speed || got.MaxEntities != tc.max ||
				got.SpawnInterval != tc.interval || got.FreezeRadius != tc.radius {
				t.Errorf("Preset(%s) = %+v", tc.d, got)
			}
		})
	}
}

func TestPresetUnknownFallsBackToNormal(t *testing.T) {
	if got := Preset("insane"); got != Preset(Normal) {
		t.Errorf("Preset(insane) = %+v, want normal", got)
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" HARD ")
	if err != nil {
		t.Fatalf("ParseDifficulty: %v", err)
	}
	if d != Hard {
		t.Errorf("got %q, want hard", d)
	}

	if _, err := ParseDifficulty("impossible"); err == nil {
		t.Error("expected error for unknown difficulty")
	}
}

func TestTitle(t *testing.T) {
	if got := Nightmare.Title(); got != "Nightmare" {
		t.Errorf("Title = %q", got)
	}
}

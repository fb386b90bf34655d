package object

import (
	"math"
	"testing"
	"time"

	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
)

var testViewport = physics.Viewport{Width: 800, Height: 600}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestEntityFreezesWithinRadius(t *testing.T) {
	now := time.Now()
	e := NewEntity(EntityConfig{Position: physics.Vector{X: 100, Y: 100}, Speed: 1, FreezeRadius: 150}, now)
	g := &gaze.Sample{X: 240, Y: 100} // 140px away

	froze := e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: g, Multiplier: 1, Viewport: testViewport, Now: now})

	if !froze {
		t.Error("expected Update to report a new freeze")
	}
	if !e.Frozen {
		t.Fatal("entity should be frozen")
	}
	if e.Velocity != (physics.Vector{}) {
		t.Errorf("velocity = %+v, want zero", e.Velocity)
	}
	if e.Opacity != config.EntityOpacityFrozen {
		t.Errorf("opacity = %v, want %v", e.Opacity, config.EntityOpacityFrozen)
	}
	if e.Position != (physics.Vector{X: 100, Y: 100}) {
		t.Errorf("frozen entity moved to %+v", e.Position)
	}

	// Staying frozen is not a new freeze.
	if e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: g, Multiplier: 1, Viewport: testViewport, Now: now}) {
		t.Error("second frozen tick should not report a new freeze")
	}
}

func TestEntityFrozenAtSpawnTargetsCenter(t *testing.T) {
	now := time.Now()
	e := NewEntity(EntityConfig{Position: physics.Vector{X: 100, Y: 100}, Target: testViewport.Center(), Speed: 1}, now)
	if e.Target != testViewport.Center() {
		t.Fatalf("target at spawn = %+v, want viewport center", e.Target)
	}

	g := &gaze.Sample{X: 100, Y: 100}
	e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: g, Multiplier: 1, Viewport: testViewport, Now: now})
	if !e.Frozen {
		t.Fatal("entity should be frozen")
	}
	if e.Target != testViewport.Center() {
		t.Errorf("frozen target = %+v, want viewport center", e.Target)
	}

	// A resize moves the target even while frozen.
	wide := physics.Viewport{Width: 1000, Height: 600}
	e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: g, Multiplier: 1, Viewport: wide, Now: now})
	if e.Target != wide.Center() {
		t.Errorf("target after resize = %+v, want %+v", e.Target, wide.Center())
	}
}

func TestEntityMovesTowardCenterWithoutGaze(t *testing.T) {
	now := time.Now()
	start := physics.Vector{X: -50, Y: 300}
	e := NewEntity(EntityConfig{Position: start, Speed: 1}, now)

	froze := e.Update(UpdateContext{Delta: time.Second, Multiplier: 1, Viewport: testViewport, Now: now})
	if froze || e.Frozen {
		t.Fatal("entity must not freeze without gaze")
	}

	dir := physics.Direction(start, testViewport.Center())
	want := start.Add(dir.Scale(60))
	if !near(e.Position.X, want.X) || !near(e.Position.Y, want.Y) {
		t.Errorf("position = %+v, want %+v", e.Position, want)
	}
	if e.Target != testViewport.Center() {
		t.Errorf("target = %+v, want viewport center", e.Target)
	}
	if e.Opacity != config.EntityOpacityMoving {
		t.Errorf("opacity = %v, want %v", e.Opacity, config.EntityOpacityMoving)
	}
}

func TestEntityUnfreezesWhenGazeLeaves(t *testing.T) {
	now := time.Now()
	e := NewEntity(EntityConfig{Position: physics.Vector{X: 100, Y: 100}, Speed: 1}, now)
	e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: &gaze.Sample{X: 100, Y: 100}, Multiplier: 1, Viewport: testViewport, Now: now})
	if !e.Frozen {
		t.Fatal("expected freeze")
	}

	later := now.Add(time.Second)
	e.Update(UpdateContext{Delta: 16 * time.Millisecond, Multiplier: 1, Viewport: testViewport, Now: later})
	if e.Frozen {
		t.Fatal("entity should resume moving when gaze is lost")
	}
	if !e.LastMoveTime.Equal(later) {
		t.Errorf("LastMoveTime = %v, want %v", e.LastMoveTime, later)
	}
	if e.Velocity == (physics.Vector{}) {
		t.Error("moving entity should have non-zero velocity")
	}
}

func TestEntityOpacityFade(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		dist float64
		want float64
	}{
		{"inside fade start", 200, config.EntityOpacityMoving},
		{"halfway through fade", 262.5, 0.5},
		{"beyond fade end", 400, config.EntityOpacityMoving},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEntity(EntityConfig{Position: physics.Vector{X: 400, Y: 300}, Speed: 0, FreezeRadius: 150}, now)
			g := &gaze.Sample{X: 400 + tc.dist, Y: 300}
			e.Update(UpdateContext{Delta: 16 * time.Millisecond, Gaze: g, Multiplier: 1, Viewport: testViewport, Now: now})
			if !near(e.Opacity, tc.want) {
				t.Errorf("opacity at %v = %v, want %v", tc.dist, e.Opacity, tc.want)
			}
		})
	}
}

func TestEntityInvalidViewportTargetsOrigin(t *testing.T) {
	now := time.Now()
	e := NewEntity(EntityConfig{Position: physics.Vector{X: 10, Y: 0}, Speed: 1}, now)
	e.Update(UpdateContext{Delta: time.Second / 60, Multiplier: 1, Now: now})
	if e.Target != (physics.Vector{}) {
		t.Errorf("target = %+v, want origin", e.Target)
	}
	if !near(e.Position.X, 9) {
		t.Errorf("position.X = %v, want 9", e.Position.X)
	}
}

func TestEntityDefaultFreezeRadius(t *testing.T) {
	e := NewEntity(EntityConfig{}, time.Now())
	if e.FreezeRadius != config.FreezeRadius {
		t.Errorf("FreezeRadius = %v, want %v", e.FreezeRadius, config.FreezeRadius)
	}
	if e.ID == "" {
		t.Error("expected an ID")
	}
}

func TestBehaviorOfUnknownType(t *testing.T) {
	if BehaviorOf(EntityType(42)) != BehaviorOf(EntityShadow) {
		t.Error("unknown types should use the shadow behaviour")
	}
	if EntityShadow.String() != "shadow" {
		t.Errorf("String = %q", EntityShadow.String())
	}
}

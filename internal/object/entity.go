package object

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
)

// EntityType selects the behaviour profile of an entity.
type EntityType int

const (
	EntityShadow EntityType = iota
)

// String returns the type name.
func (t EntityType) String() string {
	switch t {
	case EntityShadow:
		return "shadow"
	default:
		return "unknown"
	}
}

// Behavior holds the per-type freeze and fade tuning.
type Behavior struct {
	MovingOpacity float64
	FrozenOpacity float64
	FadeStart     float64 // Multiple of freeze radius where fading begins
	FadeEnd       float64 // Multiple of freeze radius where fading ends
	Scale         float64
}

var behaviors = map[EntityType]Behavior{
	EntityShadow: {
		MovingOpacity: config.EntityOpacityMoving,
		FrozenOpacity: config.EntityOpacityFrozen,
		FadeStart:     config.EntityFadeStartRatio,
		FadeEnd:       config.EntityFadeEndRatio,
		Scale:         config.EntityScale,
	},
}

// BehaviorOf returns the behaviour for t, falling back to the shadow profile.
func BehaviorOf(t EntityType) Behavior {
	if b, ok := behaviors[t]; ok {
		return b
	}
	return behaviors[EntityShadow]
}

// EntityConfig describes a new or recycled entity.
// A zero FreezeRadius selects config.FreezeRadius.
type EntityConfig struct {
	Type         EntityType
	Position     physics.Vector
	Target       physics.Vector // Viewport center at spawn time
	Speed        float64
	FreezeRadius float64
}

// Entity is a hostile shadow that drifts toward the viewport center
// unless the gaze holds it.
type Entity struct {
	ID       string
	Type     EntityType
	Position physics.Vector
	Velocity physics.Vector
	Target   physics.Vector
	Speed    float64

	Frozen       bool
	FreezeRadius float64
	Opacity      float64
	Scale        float64

	SpawnTime    time.Time
	LastMoveTime time.Time
	CreatedAt    time.Time
}

// NewEntity creates an entity from cfg with a fresh ID.
func NewEntity(cfg EntityConfig, now time.Time) *Entity {
	e := &Entity{}
	e.Reset(&cfg, now)
	e.ID = uuid.NewString()
	return e
}

// Reset reinitializes the entity for reuse. When cfg is nil the type,
// position, target, speed and freeze radius are kept.
func (e *Entity) Reset(cfg *EntityConfig, now time.Time) {
	if cfg != nil {
		e.Type = cfg.Type
		e.Position = cfg.Position
		e.Target = cfg.Target
		e.Speed = cfg.Speed
		e.FreezeRadius = cfg.FreezeRadius
		if e.FreezeRadius <= 0 {
			e.FreezeRadius = config.FreezeRadius
		}
	}

	b := BehaviorOf(e.Type)
	e.Velocity = physics.Vector{}
	e.Frozen = false
	e.Opacity = b.MovingOpacity
	e.Scale = b.Scale
	e.SpawnTime = now
	e.LastMoveTime = now
	e.CreatedAt = now
}

// DistanceTo returns the distance to the gaze point, or +Inf when there is none.
func (e *Entity) DistanceTo(g *gaze.Sample) float64 {
	if g == nil {
		return math.Inf(1)
	}
	return e.Position.DistanceTo(g.Point())
}

// Update advances the entity by one tick. It returns true when the entity
// went from moving to frozen during this tick.
func (e *Entity) Update(ctx UpdateContext) (froze bool) {
	e.Target = ctx.Viewport.Center()
	d := e.DistanceTo(ctx.Gaze)

	if d < e.FreezeRadius {
		froze = !e.Frozen
		e.Frozen = true
		e.Velocity = physics.Vector{}
	} else {
		if e.Frozen {
			e.Frozen = false
			e.LastMoveTime = ctx.Now
		}
		e.move(ctx)
	}

	e.updateOpacity(d)
	return froze
}

func (e *Entity) move(ctx UpdateContext) {
	dir := physics.Direction(e.Position, e.Target)
	step := e.Speed * ctx.Multiplier * ctx.Delta.Seconds() * config.MovementFrameRate
	e.Velocity = dir.Scale(step)
	e.Position = e.Position.Add(e.Velocity)
}

func (e *Entity) updateOpacity(d float64) {
	b := BehaviorOf(e.Type)
	if e.Frozen {
		e.Opacity = b.FrozenOpacity
		return
	}

	fadeStart := e.FreezeRadius * b.FadeStart
	fadeEnd := e.FreezeRadius * b.FadeEnd
	if d > fadeStart && fadeEnd > fadeStart {
		fade := (d - fadeStart) / (fadeEnd - fadeStart)
		e.Opacity = math.Max(b.MovingOpacity, 1-fade)
		return
	}
	e.Opacity = b.MovingOpacity
}

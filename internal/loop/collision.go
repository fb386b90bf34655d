package loop

import (
	"math"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/object"
	"github.com/tomz197/dontblink/internal/physics"
)

// Detector evaluates the loss condition and the proximity metrics derived from it.
// All methods degrade to neutral results when the viewport is invalid.
type Detector struct {
	DangerRadius float64
	Margin       float64 // Out-of-bounds margin
}

// NewDetector creates a detector with the default radii.
func NewDetector() Detector {
	return Detector{
		DangerRadius: config.DangerRadius,
		Margin:       config.OutOfBoundsMargin,
	}
}

// CheckGameOver reports whether any entity is strictly within the danger radius
// of the viewport center.
func (d Detector) CheckGameOver(entities []*object.Entity, vp physics.Viewport) bool {
	if !vp.Valid() {
		return false
	}
	c := vp.Center()
	for _, e := range entities {
		if physics.PointInCircle(e.Position.X, e.Position.Y, c.X, c.Y, d.DangerRadius) {
			return true
		}
	}
	return false
}

// ClosestEntity returns the entity nearest to the viewport center.
// Ties go to the first entity encountered.
func (d Detector) ClosestEntity(entities []*object.Entity, vp physics.Viewport) *object.Entity {
	if !vp.Valid() {
		return nil
	}
	c := vp.Center()
	var closest *object.Entity
	best := math.Inf(1)
	for _, e := range entities {
		dist := physics.DistanceSquared(e.Position.X, e.Position.Y, c.X, c.Y)
		if dist < best {
			best = dist
			closest = e
		}
	}
	return closest
}

// MinDistanceFromCenter returns the smallest entity distance to the viewport
// center, or +Inf when there are no entities.
func (d Detector) MinDistanceFromCenter(entities []*object.Entity, vp physics.Viewport) float64 {
	e := d.ClosestEntity(entities, vp)
	if e == nil {
		return math.Inf(1)
	}
	return e.Position.DistanceTo(vp.Center())
}

// IsOutOfBounds reports whether e lies outside the viewport grown by the margin.
func (d Detector) IsOutOfBounds(e *object.Entity, vp physics.Viewport) bool {
	if !vp.Valid() {
		return false
	}
	return !vp.Contains(e.Position, d.Margin)
}

// DangerLevel maps a distance from center to [0,1], reaching 1 at the center
// and 0 at DangerRadius * config.DangerRangeFactor.
func (d Detector) DangerLevel(minDistance float64) float64 {
	return physics.Clamp(1-minDistance/(d.DangerRadius*config.DangerRangeFactor), 0, 1)
}

// Package object holds the simulated entities together with the policies
// that create and recycle them.
package object

import (
	"time"

	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/physics"
)

// UpdateContext provides all the information an entity needs during update.
type UpdateContext struct {
	Delta      time.Duration
	Gaze       *gaze.Sample // nil when no gaze is available this tick
	Multiplier float64      // Difficulty multiplier applied to movement
	Viewport   physics.Viewport
	Now        time.Time
}

// Spawner receives entities produced by a spawn policy.
type Spawner interface {
	Spawn(e *Entity)
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(e *Entity)

// Spawn calls f(e).
func (f SpawnerFunc) Spawn(e *Entity) {
	f(e)
}

// Releaser is implemented by anything that can take an entity back for reuse.
type Releaser interface {
	Release(e *Entity)
}

// ReleaseAll hands every entity to r and returns the emptied slice,
// keeping its backing array.
func ReleaseAll(r Releaser, entities []*Entity) []*Entity {
	for i, e := range entities {
		if r != nil {
			r.Release(e)
		}
		entities[i] = nil
	}
	return entities[:0]
}

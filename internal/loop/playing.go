package loop

import (
	"time"

	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/object"
	"github.com/tomz197/dontblink/internal/physics"
)

// TickResult reports what happened during one tick.
type TickResult struct {
	Spawned  int
	Frozen   int // Entities that froze this tick
	GameOver bool
}

// Tick advances the simulation by dt. It only runs while playing and not paused.
// Order: survival time, score, multiplier, spawning, entity updates, loss check.
func (s *Session) Tick(dt time.Duration, vp physics.Viewport) TickResult {
	var res TickResult
	if !s.Running() || s.StartTime.IsZero() {
		return res
	}

	now := s.clock()
	s.SurvivalTime = max(0, now.Sub(s.StartTime))
	s.Score = ScoreFor(s.SurvivalTime)
	s.Multiplier = max(s.Multiplier, Multiplier(s.SurvivalTime))

	// New entities join after this tick's updates.
	s.spawner.Update(dt, s.SurvivalTime, len(s.Entities), s.MaxEntities, vp, object.SpawnerFunc(s.queueSpawn))
	res.Spawned = len(s.pending)

	ctx := object.UpdateContext{
		Delta:      dt,
		Gaze:       s.Gaze,
		Multiplier: s.Multiplier,
		Viewport:   vp,
		Now:        now,
	}
	for _, e := range s.Entities {
		if e.Update(ctx) {
			res.Frozen++
		}
	}
	s.EntitiesFrozen += res.Frozen
	s.flushSpawned()

	if s.detector.CheckGameOver(s.Entities, vp) {
		res.GameOver = true
		s.EndGame()
	}
	return res
}

// queueSpawn holds a spawned entity until the current update cycle finishes.
func (s *Session) queueSpawn(e *object.Entity) {
	s.pending = append(s.pending, e)
}

// flushSpawned adds all queued entities to the session and clears the queue.
func (s *Session) flushSpawned() {
	s.Entities = append(s.Entities, s.pending...)
	clear(s.pending)
	s.pending = s.pending[:0]
	s.PeakEntities = max(s.PeakEntities, len(s.Entities))
}

// DangerLevel returns how close the nearest entity is to the center, in [0,1].
func (s *Session) DangerLevel(vp physics.Viewport) float64 {
	return s.detector.DangerLevel(s.detector.MinDistanceFromCenter(s.Entities, vp))
}

// EntityView is the read-only render data of one entity.
type EntityView struct {
	ID       string
	Type     object.EntityType
	Position physics.Vector
	Opacity  float64
	Scale    float64
	Frozen   bool
	Radius   float64 // Freeze radius
}

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	Phase        Phase
	Entities     []EntityView
	Danger       float64
	Gaze         *gaze.Sample
	SurvivalTime time.Duration
	Score        int
	HighScore    int
	Multiplier   float64
	Difficulty   config.Difficulty
	Stats        Stats
}

// Snapshot copies the render-relevant state. buf is reused when large enough.
func (s *Session) Snapshot(vp physics.Viewport, buf []EntityView) Snapshot {
	views := buf[:0]
	for _, e := range s.Entities {
		views = append(views, EntityView{
			ID:       e.ID,
			Type:     e.Type,
			Position: e.Position,
			Opacity:  e.Opacity,
			Scale:    e.Scale,
			Frozen:   e.Frozen,
			Radius:   e.FreezeRadius,
		})
	}

	var g *gaze.Sample
	if s.Gaze != nil {
		copied := *s.Gaze
		g = &copied
	}

	return Snapshot{
		Phase:        s.Phase,
		Entities:     views,
		Danger:       s.DangerLevel(vp),
		Gaze:         g,
		SurvivalTime: s.SurvivalTime,
		Score:        s.Score,
		HighScore:    s.HighScore,
		Multiplier:   s.Multiplier,
		Difficulty:   s.Difficulty,
		Stats:        s.Stats(),
	}
}

package object

import (
	"math/rand"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
)

// Edge identifies a viewport side.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
)

// TypeSelector picks the type of the next entity from the survival time.
type TypeSelector func(survival time.Duration, rng *rand.Rand) EntityType

// ShadowsOnly always selects EntityShadow.
func ShadowsOnly(time.Duration, *rand.Rand) EntityType {
	return EntityShadow
}

// SpawnerConfig tunes an EntitySpawner.
type SpawnerConfig struct {
	BaseInterval time.Duration
	MinInterval  time.Duration
	BaseSpeed    float64
	FreezeRadius float64 // Zero selects the entity default
	EdgeMargin   float64
	Seed         int64
	Select       TypeSelector
}

// DefaultSpawnerConfig returns the stock spawning tuning.
func DefaultSpawnerConfig() SpawnerConfig {
	return SpawnerConfig{
		BaseInterval: config.BaseSpawnInterval,
		MinInterval:  config.MinSpawnInterval,
		BaseSpeed:    config.BaseEntitySpeed,
		EdgeMargin:   config.SpawnEdgeMargin,
		Seed:         time.Now().UnixNano(),
		Select:       ShadowsOnly,
	}
}

// EntitySpawner injects entities at the viewport edges at a rate that rises
// with survival time.
type EntitySpawner struct {
	cfg   SpawnerConfig
	timer time.Duration
	rng   *rand.Rand
	pool  *Pool
}

// NewEntitySpawner creates a spawner. Entities are drawn from pool when it is non-nil.
func NewEntitySpawner(cfg SpawnerConfig, pool *Pool) *EntitySpawner {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = config.MinSpawnInterval
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = config.BaseSpawnInterval
	}
	if cfg.Select == nil {
		cfg.Select = ShadowsOnly
	}
	return &EntitySpawner{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		pool: pool,
	}
}

// Update advances the spawn timer and spawns one entity when it elapses.
// Nothing happens, not even timer accumulation, while count >= limit.
// The timer restarts from zero after a spawn, so overshoot is discarded.
func (s *EntitySpawner) Update(dt, survival time.Duration, count, limit int, vp physics.Viewport, out Spawner) {
	if count >= limit {
		return
	}

	s.timer += dt
	if s.timer < s.Interval(survival) {
		return
	}

	cfg := EntityConfig{
		Type:         s.cfg.Select(survival, s.rng),
		Position:     s.spawnPosition(vp),
		Target:       vp.Center(),
		Speed:        s.Speed(survival),
		FreezeRadius: s.cfg.FreezeRadius,
	}
	now := time.Now()
	var e *Entity
	if s.pool != nil {
		e = s.pool.Acquire(cfg, now)
	} else {
		e = NewEntity(cfg, now)
	}
	if out != nil {
		out.Spawn(e)
	}
	s.timer = 0
}

// Interval returns the spawn interval for the given survival time.
func (s *EntitySpawner) Interval(survival time.Duration) time.Duration {
	steps := survival / config.SpawnIntervalStep
	interval := s.cfg.BaseInterval - steps*config.SpawnIntervalDecrease
	return max(s.cfg.MinInterval, interval)
}

// Speed returns the base speed of an entity spawned at the given survival time.
func (s *EntitySpawner) Speed(survival time.Duration) float64 {
	steps := float64(survival / config.SpeedStep)
	return s.cfg.BaseSpeed + steps*config.SpeedIncrease
}

// Reset clears the spawn timer.
func (s *EntitySpawner) Reset() {
	s.timer = 0
}

// SetBaseInterval changes the base spawn interval.
func (s *EntitySpawner) SetBaseInterval(d time.Duration) {
	if d > 0 {
		s.cfg.BaseInterval = d
	}
}

// Timer returns the accumulated time since the last spawn.
func (s *EntitySpawner) Timer() time.Duration {
	return s.timer
}

// spawnPosition picks a random point just outside a random viewport edge.
// An invalid viewport yields the origin.
func (s *EntitySpawner) spawnPosition(vp physics.Viewport) physics.Vector {
	if !vp.Valid() {
		return physics.Vector{}
	}

	m := s.cfg.EdgeMargin
	switch Edge(s.rng.Intn(4)) {
	case EdgeTop:
		return physics.Vector{X: s.rng.Float64() * vp.Width, Y: -m}
	case EdgeRight:
		return physics.Vector{X: vp.Width + m, Y: s.rng.Float64() * vp.Height}
	case EdgeBottom:
		return physics.Vector{X: s.rng.Float64() * vp.Width, Y: vp.Height + m}
	default:
		return physics.Vector{X: -m, Y: s.rng.Float64() * vp.Height}
	}
}

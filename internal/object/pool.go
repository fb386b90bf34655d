package object

import (
	"time"

	"github.com/google/uuid"
	"github.com/tomz197/dontblink/internal/loop/config"
)

// Pool recycles entities to keep allocation churn bounded.
// Unlike sync.Pool it keeps a hard cap and is owned by a single session,
// so it needs no locking.
type Pool struct {
	free []*Entity
	cap  int
}

// NewPool creates a pool holding at most size idle entities.
// Non-positive sizes fall back to config.EntityPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = config.EntityPoolSize
	}
	return &Pool{
		free: make([]*Entity, 0, size),
		cap:  size,
	}
}

// Acquire returns an idle entity reset with cfg, or a new one when the pool is empty.
// Recycled entities receive a fresh ID.
func (p *Pool) Acquire(cfg EntityConfig, now time.Time) *Entity {
	n := len(p.free)
	if n == 0 {
		return NewEntity(cfg, now)
	}

	e := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]

	e.Reset(&cfg, now)
	e.ID = uuid.NewString()
	return e
}

// Release returns e to the pool. It is dropped when the pool is full.
func (p *Pool) Release(e *Entity) {
	if e == nil || len(p.free) >= p.cap {
		return
	}
	e.Reset(nil, time.Time{})
	p.free = append(p.free, e)
}

// Clear drops all idle entities.
func (p *Pool) Clear() {
	clear(p.free)
	p.free = p.free[:0]
}

// Len returns the number of idle entities.
func (p *Pool) Len() int {
	return len(p.free)
}

// Compile-time check that Pool implements Releaser.
var _ Releaser = (*Pool)(nil)

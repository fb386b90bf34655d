package client

import (
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
)

// FPSMeter averages frame deltas over a sliding window and publishes the
// result at a fixed refresh rate so the HUD value does not flicker.
type FPSMeter struct {
	samples     [config.FPSWindow]time.Duration
	next        int
	count       int
	sum         time.Duration
	value       float64
	lastRefresh time.Time
}

// Frame records one frame delta observed at now.
func (m *FPSMeter) Frame(delta time.Duration, now time.Time) {
	if delta <= 0 {
		return
	}
	if m.count == len(m.samples) {
		m.sum -= m.samples[m.next]
	} else {
		m.count++
	}
	m.samples[m.next] = delta
	m.sum += delta
	m.next = (m.next + 1) % len(m.samples)

	if m.lastRefresh.IsZero() {
		m.lastRefresh = now
		return
	}
	if now.Sub(m.lastRefresh) >= config.FPSRefresh {
		m.value = float64(m.count) / m.sum.Seconds()
		m.lastRefresh = now
	}
}

// Value returns the last published frames per second, 0 before the first refresh.
func (m *FPSMeter) Value() float64 {
	return m.value
}

// Package gaze smooths raw gaze samples over a short moving window.
package gaze

import (
	"time"

	"github.com/tomz197/dontblink/internal/physics"
)

// DefaultBufferSize is the number of samples averaged by a Processor.
const DefaultBufferSize = 5

// Sample is a single gaze reading in viewport pixels.
// Confidence is nil when the source does not report one.
type Sample struct {
	X, Y       float64
	Timestamp  time.Time
	Confidence *float64
}

// Point returns the sample position as a vector.
func (s Sample) Point() physics.Vector {
	return physics.Vector{X: s.X, Y: s.Y}
}

// Confidence returns a pointer to c, for building samples inline.
func Confidence(c float64) *float64 {
	return &c
}

// Processor keeps the most recent samples in a fixed-size ring buffer
// and reports their moving average.
type Processor struct {
	buf   []Sample
	head  int // Index of the oldest sample
	count int
}

// NewProcessor creates a processor that averages over size samples.
// Non-positive sizes fall back to DefaultBufferSize.
func NewProcessor(size int) *Processor {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Processor{buf: make([]Sample, size)}
}

// Add appends a sample, evicting the oldest one once the buffer is full.
func (p *Processor) Add(s Sample) {
	if p.count < len(p.buf) {
		p.buf[(p.head+p.count)%len(p.buf)] = s
		p.count++
		return
	}
	p.buf[p.head] = s
	p.head = (p.head + 1) % len(p.buf)
}

// Smoothed returns the mean position of the buffered samples, the timestamp
// of the newest sample and the mean confidence of the samples that carry one.
// The second result is false when the buffer is empty.
func (p *Processor) Smoothed() (Sample, bool) {
	if p.count == 0 {
		return Sample{}, false
	}

	var sumX, sumY, sumConf float64
	var confN int
	for i := 0; i < p.count; i++ {
		s := p.buf[(p.head+i)%len(p.buf)]
		sumX += s.X
		sumY += s.Y
		if s.Confidence != nil {
			sumConf += *s.Confidence
			confN++
		}
	}

	n := float64(p.count)
	out := Sample{
		X:         sumX / n,
		Y:         sumY / n,
		Timestamp: p.buf[(p.head+p.count-1)%len(p.buf)].Timestamp,
	}
	if confN > 0 {
		out.Confidence = Confidence(sumConf / float64(confN))
	}
	return out, true
}

// Clear drops all buffered samples.
func (p *Processor) Clear() {
	clear(p.buf)
	p.head = 0
	p.count = 0
}

// Len returns the number of buffered samples.
func (p *Processor) Len() int {
	return p.count
}

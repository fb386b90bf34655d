package tracking

import (
	"math"

	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
)

// CalibrationPoint is one target of the calibration grid.
type CalibrationPoint struct {
	Position  physics.Vector
	Order     int
	Completed bool
	Error     float64 // Gaze distance from the target when confirmed, NaN without gaze
}

// Calibration walks the player through a 3x3 grid of targets.
type Calibration struct {
	Points  []CalibrationPoint
	current int
}

// NewCalibration lays out the grid inside vp, inset by config.CalibrationMargin.
func NewCalibration(vp physics.Viewport) *Calibration {
	m := config.CalibrationMargin
	w := math.Max(0, vp.Width-2*m)
	h := math.Max(0, vp.Height-2*m)

	c := &Calibration{Points: make([]CalibrationPoint, 0, config.CalibrationPoints)}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c.Points = append(c.Points, CalibrationPoint{
				Position: physics.Vector{X: m + w*float64(col)/2, Y: m + h*float64(row)/2},
				Order:    len(c.Points),
				Error:    math.NaN(),
			})
		}
	}
	return c
}

// Current returns the active target. The second result is false once complete.
func (c *Calibration) Current() (CalibrationPoint, bool) {
	if c.current >= len(c.Points) {
		return CalibrationPoint{}, false
	}
	return c.Points[c.current], true
}

// Index returns the position of the active target.
func (c *Calibration) Index() int {
	return c.current
}

// Confirm completes the active target, recording how far g was from it,
// and advances. It reports whether the grid is now complete.
func (c *Calibration) Confirm(g *gaze.Sample) bool {
	if c.current >= len(c.Points) {
		return true
	}
	p := &c.Points[c.current]
	p.Completed = true
	if g != nil {
		p.Error = p.Position.DistanceTo(g.Point())
	}
	c.current++
	return c.Complete()
}

// Complete reports whether every target was confirmed.
func (c *Calibration) Complete() bool {
	return c.current >= len(c.Points)
}

// Progress returns the completed fraction in [0,1].
func (c *Calibration) Progress() float64 {
	if len(c.Points) == 0 {
		return 1
	}
	return float64(c.current) / float64(len(c.Points))
}

// Accuracy scores the recorded gaze errors in [0,1], where 1 means the gaze
// was on every target. Errors at or beyond the freeze radius score 0.
// Targets confirmed without gaze are ignored; with none recorded it returns 0.
func (c *Calibration) Accuracy() float64 {
	var sum float64
	var n int
	for _, p := range c.Points {
		if !p.Completed || math.IsNaN(p.Error) {
			continue
		}
		sum += 1 - math.Min(p.Error/config.FreezeRadius, 1)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

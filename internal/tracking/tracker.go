package tracking

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/tomz197/dontblink/internal/gaze"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
)

// SourceFactory creates a fresh eye tracking source. It returns nil when
// no eye tracker is configured.
type SourceFactory func() Source

type acquireResult struct {
	gen int
	src Source
	err error
}

// Tracker selects the active gaze source and smooths its samples.
// Acquisition runs on its own goroutine; everything else must be called
// from the frame loop goroutine.
type Tracker struct {
	mode   Mode
	active Mode // Source currently feeding samples: ModeEye or ModeMouse
	status Status
	err    error

	proc   *gaze.Processor
	newEye SourceFactory
	eye    Source

	gen     int
	results chan acquireResult
	cancel  context.CancelFunc

	now    func() time.Time
	logger *charmlog.Logger
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	EyeSource  SourceFactory
	BufferSize int
	Clock      func() time.Time
	Logger     *charmlog.Logger
}

// NewTracker creates an idle tracker. Call SetMode to begin acquisition.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = config.GazeBufferSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	return &Tracker{
		proc:    gaze.NewProcessor(opts.BufferSize),
		newEye:  opts.EyeSource,
		results: make(chan acquireResult, 1),
		now:     opts.Clock,
		logger:  opts.Logger,
	}
}

// SetMode switches the tracking mode. The gaze buffer is cleared and any
// running eye source is stopped. Eye and auto modes start acquisition in
// the background.
func (t *Tracker) SetMode(m Mode) {
	t.stopEye()
	t.proc.Clear()
	t.mode = m
	t.err = nil

	switch m {
	case ModeMouse:
		t.useMouse()
	case ModeEye, ModeAuto:
		t.acquire()
	}
}

func (t *Tracker) useMouse() {
	t.active = ModeMouse
	t.status = StatusReady
}

func (t *Tracker) acquire() {
	t.active = ModeEye
	t.status = StatusPending
	t.gen++

	var src Source
	if t.newEye != nil {
		src = t.newEye()
	}
	if src == nil {
		t.fail(ErrNoSource)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	gen := t.gen
	results := t.results
	go func() {
		err := src.Start(ctx)
		select {
		case results <- acquireResult{gen: gen, src: src, err: err}:
		case <-ctx.Done():
			_ = src.Close()
		}
	}()
	t.logger.Info("eye tracking acquisition started")
}

// fail records an eye source failure and falls back to the pointer in auto mode.
func (t *Tracker) fail(err error) {
	t.err = err
	t.proc.Clear()
	if t.mode == ModeAuto {
		t.logger.Warn("eye tracking unavailable, using pointer", "err", err)
		t.useMouse()
		return
	}
	t.logger.Warn("eye tracking unavailable", "err", err)
	t.status = StatusFailed
}

func (t *Tracker) stopEye() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.eye != nil {
		_ = t.eye.Close()
		t.eye = nil
	}
	t.gen++
}

// PointerMoved feeds a pointer position in viewport pixels.
func (t *Tracker) PointerMoved(x, y float64) {
	if t.active != ModeMouse {
		return
	}
	t.proc.Add(gaze.Sample{X: x, Y: y, Timestamp: t.now(), Confidence: gaze.Confidence(1.0)})
}

// PointerLeft drops the pointer gaze until the next move.
func (t *Tracker) PointerLeft() {
	if t.active != ModeMouse {
		return
	}
	t.proc.Clear()
}

// Poll collects pending acquisition results and eye samples without
// blocking and returns the smoothed gaze, or nil when there is none.
func (t *Tracker) Poll(vp physics.Viewport) *gaze.Sample {
	t.pollAcquisition()
	t.drainEye(vp)

	if t.active == ModeEye && t.status != StatusReady {
		return nil
	}
	s, ok := t.proc.Smoothed()
	if !ok {
		return nil
	}
	return &s
}

func (t *Tracker) pollAcquisition() {
	for {
		select {
		case r := <-t.results:
			if r.gen != t.gen {
				if r.err == nil {
					_ = r.src.Close()
				}
				continue
			}
			if r.err != nil {
				t.fail(r.err)
				continue
			}
			t.eye = r.src
			t.status = StatusReady
			t.logger.Info("eye tracking ready")
		default:
			return
		}
	}
}

func (t *Tracker) drainEye(vp physics.Viewport) {
	if t.eye == nil {
		return
	}
	for {
		select {
		case msg, ok := <-t.eye.Messages():
			if !ok {
				err := t.eye.Err()
				if err == nil {
					err = ErrTrackingLost
				}
				t.eye = nil
				t.fail(err)
				return
			}
			if msg.Lost() {
				t.proc.Clear()
				continue
			}
			s := msg.Sample(t.now())
			s.X *= vp.Width
			s.Y *= vp.Height
			t.proc.Add(s)
		default:
			return
		}
	}
}

// Mode returns the selected mode.
func (t *Tracker) Mode() Mode {
	return t.mode
}

// Active returns the source currently feeding samples.
func (t *Tracker) Active() Mode {
	return t.active
}

// Status returns the acquisition status.
func (t *Tracker) Status() Status {
	return t.status
}

// Err returns the last acquisition error.
func (t *Tracker) Err() error {
	return t.err
}

// Close stops any running source.
func (t *Tracker) Close() {
	t.stopEye()
	t.proc.Clear()
	t.status = StatusIdle
}

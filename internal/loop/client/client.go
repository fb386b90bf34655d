package client

import (
	"bufio"
	"fmt"
	"io"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/tomz197/dontblink/internal/draw"
	"github.com/tomz197/dontblink/internal/input"
	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/loop"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/loop/server"
	"github.com/tomz197/dontblink/internal/physics"
	"github.com/tomz197/dontblink/internal/relay"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/tracking"
)

// Fallback terminal size when the real one cannot be read.
const (
	defaultTermWidth  = 80
	defaultTermHeight = 24
)

// Client handles rendering, input and gaze tracking for a single connection.
// The game session itself runs here; the server only sees results.
type Client struct {
	server       server.GameServer
	handle       *server.ClientHandle
	state        *ClientState
	session      *loop.Session
	tracker      *tracking.Tracker
	settings     settings.Settings
	frameClock   *loop.FrameClock
	fps          FPSMeter
	canvas       *draw.Canvas
	chunkWriter  *draw.ChunkWriter // Accumulates UI text for chunked output
	writer       io.Writer
	inputStream  *input.Stream
	lastInput    time.Time
	pairURL      string // Where the player opens the webcam page, empty without a relay
	termSizeFunc draw.TermSizeFunc
	logger       *charmlog.Logger
}

// ClientOptions configures the client.
type ClientOptions struct {
	TermSizeFunc draw.TermSizeFunc
	Username     string
	// EyeTrackerURL is the public address of the gaze relay. Each client gets
	// its own pairing code on it. Empty disables eye tracking.
	EyeTrackerURL string
	// EyeSource overrides EyeTrackerURL, mainly for tests.
	EyeSource tracking.SourceFactory
	Seed      int64 // Spawn seed; zero picks a time-based seed
	Logger    *charmlog.Logger
}

// NewClient creates a new client connected to the given server.
func NewClient(gs server.GameServer, r *bufio.Reader, w io.Writer, opts ClientOptions) *Client {
	termSizeFunc := opts.TermSizeFunc
	if termSizeFunc == nil {
		termSizeFunc = draw.DefaultTermSizeFunc
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}

	handle := gs.RegisterClient(opts.Username)
	logger = logger.With("profile", handle.Profile)
	st := handle.Settings
	st.Normalize()

	eyeSource := opts.EyeSource
	var pairURL string
	if eyeSource == nil && opts.EyeTrackerURL != "" {
		code := relay.NewCode()
		gazeURL := relay.SubscribeURL(opts.EyeTrackerURL, code)
		pairURL = relay.PairURL(opts.EyeTrackerURL, code)
		eyeSource = func() tracking.Source {
			return tracking.NewEyeSource(gazeURL, tracking.EyeSourceOptions{
				Retries:  config.EyeAcquireRetries,
				Debounce: config.EyeSampleDebounce,
				Logger:   logger,
			})
		}
	}

	tracker := tracking.NewTracker(tracking.TrackerOptions{
		EyeSource: eyeSource,
		Logger:    logger,
	})
	tracker.SetMode(st.Gameplay.TrackingMode)

	session := loop.NewSession(loop.SessionOptions{
		Difficulty:   st.Gameplay.Difficulty,
		HighScore:    handle.Progress.HighScore,
		TrackingMode: st.Gameplay.TrackingMode,
		Seed:         opts.Seed,
		Logger:       logger,
	})

	termWidth, termHeight, err := termSizeFunc()
	if err != nil {
		termWidth, termHeight = defaultTermWidth, defaultTermHeight
	}
	renderWidth, renderHeight, offsetCol, offsetRow := clampTermSize(termWidth, termHeight)
	vp := viewportFor(renderWidth, renderHeight)
	canvas := draw.NewScaledCanvas(renderWidth, renderHeight, vp.Width, vp.Height)
	canvas.SetOffset(offsetCol, offsetRow)
	canvas.SetHighContrast(st.Accessibility.HighContrast)
	chunkWriter := draw.NewChunkWriter(w, offsetCol, offsetRow)

	state := NewClientState()
	state.Viewport = vp

	return &Client{
		server:       gs,
		handle:       handle,
		state:        state,
		session:      session,
		tracker:      tracker,
		settings:     st,
		frameClock:   loop.NewFrameClock(nil),
		canvas:       canvas,
		chunkWriter:  chunkWriter,
		writer:       w,
		inputStream:  input.StartStream(r),
		lastInput:    time.Now(),
		pairURL:      pairURL,
		termSizeFunc: termSizeFunc,
		logger:       logger,
	}
}

// Run starts the client loop. Blocks until the client disconnects or server stops.
func (c *Client) Run() error {
	draw.HideCursor(c.writer)
	input.EnablePointer(c.writer)
	defer func() {
		input.DisablePointer(c.writer)
		draw.ResetStyle(c.writer)
		draw.ShowCursor(c.writer)
	}()
	draw.ClearScreen(c.writer)

	lastTime := time.Now()

	for c.state.Running {
		frameStart := time.Now()
		c.state.delta = frameStart.Sub(lastTime)
		lastTime = frameStart

		c.processInput()
		c.processServerEvents()
		c.updateScreen()
		c.updateGaze()

		if c.state.shutdown {
			c.updateShutdownState()
		} else {
			c.handleCommands()
			c.updateSession()
		}

		if err := c.drawFrame(); err != nil {
			c.close()
			return fmt.Errorf("draw frame: %w", err)
		}
		c.fps.Frame(c.state.delta, frameStart)

		// Frame timing
		elapsed := time.Since(frameStart)
		if elapsed < config.ClientTargetFrameTime {
			time.Sleep(config.ClientTargetFrameTime - elapsed)
		}
	}

	c.close()
	draw.ClearScreen(c.writer)
	return nil
}

func (c *Client) close() {
	c.tracker.Close()
	c.server.UnregisterClient(c.handle.ID)
}

// processInput reads pending input and applies it.
func (c *Client) processInput() {
	c.applyInput(input.ReadInput(c.inputStream), time.Now())
}

// applyInput tracks activity, quitting and the pointer.
// Inactivity only counts outside of gameplay, which is driven by gaze alone.
func (c *Client) applyInput(in input.Input, now time.Time) {
	c.state.Input = in

	if in.Any() || in.Mouse != nil || c.session.Phase == loop.PhasePlaying {
		c.lastInput = now
		c.state.isInactive = false
	} else if idle := now.Sub(c.lastInput).Seconds(); idle > config.InactivityDisconnectUser {
		c.logger.Info("disconnecting inactive client")
		c.state.Running = false
	} else if idle > config.InactivityWarnUser {
		c.state.isInactive = true
	}

	if in.Quit {
		c.state.Running = false
	}

	if in.Mouse != nil {
		if p, ok := c.canvas.TerminalToLogical(in.Mouse.Col, in.Mouse.Row); ok {
			c.tracker.PointerMoved(p.X, p.Y)
		} else {
			c.tracker.PointerLeft()
		}
	}
	if in.FocusLost {
		c.tracker.PointerLeft()
	}
}

// processServerEvents handles events from the server.
func (c *Client) processServerEvents() {
	for {
		select {
		case event, ok := <-c.handle.EventsCh:
			if !ok {
				// Server closed the channel
				c.state.Running = false
				return
			}
			c.handleEvent(event, time.Now())
		default:
			return
		}
	}
}

func (c *Client) handleEvent(event server.ClientEvent, now time.Time) {
	switch event.Type {
	case server.EventServerShutdown:
		if c.session.Running() {
			c.session.TogglePause()
		}
		c.state.shutdown = true
		c.state.shutdownTimer = config.ShutdownDisplaySeconds
	case server.EventNewRecord:
		if event.Profile == c.handle.Profile {
			c.state.notice = fmt.Sprintf("New record! You lead the board with %d", event.Score)
		} else {
			c.state.notice = fmt.Sprintf("%s set a new record: %d", event.Profile, event.Score)
		}
		c.state.noticeUntil = now.Add(config.NoticeDuration)
	}
}

// updateScreen handles terminal resize, clamping to max render resolution.
// On actual size changes, clears the terminal to remove residual pixels
// outside the new canvas area (e.g. old borders or offset content).
func (c *Client) updateScreen() {
	termWidth, termHeight, err := c.termSizeFunc()
	if err != nil {
		return
	}
	renderWidth, renderHeight, offsetCol, offsetRow := clampTermSize(termWidth, termHeight)

	if renderWidth == c.canvas.TerminalWidth() && renderHeight == c.canvas.TerminalHeight() &&
		offsetCol == c.canvas.OffsetCol() && offsetRow == c.canvas.OffsetRow() {
		return
	}

	draw.ClearScreen(c.writer)
	c.canvas.Resize(renderWidth, renderHeight)
	c.canvas.ForceRedraw()
	c.canvas.SetOffset(offsetCol, offsetRow)
	c.chunkWriter.SetOffset(offsetCol, offsetRow)

	c.state.Viewport = viewportFor(renderWidth, renderHeight)
	c.canvas.SetLogicalSize(c.state.Viewport.Width, c.state.Viewport.Height)
	if c.state.calibration != nil {
		// Targets are laid out for the viewport, so start over.
		c.state.calibration = tracking.NewCalibration(c.state.Viewport)
	}
}

// clampTermSize clamps terminal dimensions to the max render resolution and computes
// the centering offset for the render area.
func clampTermSize(termWidth, termHeight int) (renderWidth, renderHeight, offsetCol, offsetRow int) {
	renderWidth = termWidth
	renderHeight = termHeight
	if renderWidth > config.MaxTermWidth {
		renderWidth = config.MaxTermWidth
	}
	if renderHeight > config.MaxTermHeight {
		renderHeight = config.MaxTermHeight
	}
	offsetCol = (termWidth - renderWidth) / 2
	offsetRow = (termHeight - renderHeight) / 2
	return
}

// viewportFor returns the logical pixel area covered by a render area of cells.
func viewportFor(cols, rows int) physics.Viewport {
	return physics.Viewport{
		Width:  float64(cols) * config.CellWidth,
		Height: float64(rows) * config.CellHeight,
	}
}

// updateGaze feeds the latest smoothed gaze into the session.
func (c *Client) updateGaze() {
	c.session.SetGaze(c.tracker.Poll(c.state.Viewport))
}

// updateSession ticks the simulation while a game is running.
func (c *Client) updateSession() {
	if !c.session.Running() {
		c.frameClock.Stop()
		return
	}
	res := c.session.Tick(c.frameClock.Tick(), c.state.Viewport)
	if res.GameOver {
		c.frameClock.Stop()
		c.reportResult()
	}
}

// reportResult sends the finished round to the server and rings the bell.
func (c *Client) reportResult() {
	stats := c.session.Stats()
	c.server.ReportResult(c.handle.ID, server.Result{
		Score:      stats.Score,
		Survival:   stats.SurvivalTime,
		Frozen:     stats.EntitiesFrozen,
		Difficulty: c.session.Difficulty,
	})
	if c.settings.BellEnabled() {
		c.chunkWriter.WriteString("\a")
	}
}

// updateShutdownState handles the shutdown screen countdown.
func (c *Client) updateShutdownState() {
	c.state.shutdownTimer -= c.state.delta.Seconds()
	if c.state.shutdownTimer <= 0 {
		c.state.Running = false
	}
}

// handleCommands maps the frame's keys to session actions for the current phase.
func (c *Client) handleCommands() {
	in := c.state.Input

	switch c.session.Phase {
	case loop.PhaseMenu:
		c.handleMenu(in)
	case loop.PhaseCalibration:
		c.handleCalibration(in)
	case loop.PhasePlaying:
		if in.Escape || in.Key('p') {
			c.session.TogglePause()
		}
	case loop.PhasePaused:
		switch {
		case in.Escape || in.Key('p') || in.Space:
			c.session.TogglePause()
		case in.Key('r'):
			c.session.ResetGame()
		}
	case loop.PhaseGameOver:
		switch {
		case in.Space || in.Enter:
			c.startGame()
		case in.Key('r') || in.Escape:
			c.session.ResetGame()
		}
	}

	c.handleToggles(in)
}

func (c *Client) handleMenu(in input.Input) {
	switch {
	case in.Number >= 1 && in.Number <= len(config.Difficulties):
		c.setDifficulty(config.Difficulties[in.Number-1])
	case in.Key('t'):
		c.setTrackingMode(c.session.TrackingMode.Next())
	case in.Key('c'):
		c.beginCalibration()
	case in.Key('s'):
		c.skipCalibration()
	case in.Space || in.Enter:
		if c.needsCalibration() {
			c.beginCalibration()
		} else {
			c.startGame()
		}
	}
}

func (c *Client) handleCalibration(in input.Input) {
	cal := c.state.calibration
	if cal == nil {
		c.skipCalibration()
		return
	}

	switch {
	case in.Escape || in.Key('s'):
		c.skipCalibration()
	case in.Clicked || in.Space || in.Enter:
		c.state.calibrationStart = time.Now()
		if cal.Confirm(c.session.Gaze) {
			c.finishCalibration()
		}
	case time.Since(c.state.calibrationStart) > config.CalibrationTimeout:
		c.logger.Info("calibration timed out")
		c.skipCalibration()
	}
}

// handleToggles flips settings bound to single keys in every phase.
func (c *Client) handleToggles(in input.Input) {
	switch {
	case in.Key('f'):
		c.settings.ToggleFPS()
	case in.Key('d'):
		c.settings.ToggleDebug()
	case in.Key('h'):
		c.settings.ToggleHighContrast()
		c.canvas.SetHighContrast(c.settings.Accessibility.HighContrast)
	case in.Key('m'):
		c.settings.ToggleMute()
	case in.Key('v'):
		c.settings.ToggleReduceMotion()
	default:
		return
	}
	c.saveSettings()
}

// needsCalibration reports whether starting should go through the grid first.
func (c *Client) needsCalibration() bool {
	return c.session.TrackingMode != tracking.ModeMouse &&
		!c.session.Calibrated &&
		c.tracker.Active() == tracking.ModeEye
}

func (c *Client) beginCalibration() {
	if !c.session.BeginCalibration() {
		return
	}
	c.state.calibration = tracking.NewCalibration(c.state.Viewport)
	c.state.calibrationStart = time.Now()
}

// skipCalibration falls back to the pointer and starts playing.
func (c *Client) skipCalibration() {
	c.state.calibration = nil
	if c.session.TrackingMode != tracking.ModeMouse {
		c.setTrackingMode(tracking.ModeMouse)
	}
	c.startGame()
}

// finishCalibration marks the session calibrated. The eye source keeps
// running, so an auto selection backed by the camera is recorded as eye.
func (c *Client) finishCalibration() {
	cal := c.state.calibration
	c.state.calibration = nil
	c.logger.Info("calibration complete", "accuracy", fmt.Sprintf("%.0f%%", cal.Accuracy()*100))

	c.session.SetCalibrated(true)
	if c.tracker.Active() == tracking.ModeEye && c.session.TrackingMode != tracking.ModeEye {
		c.session.SetTrackingMode(tracking.ModeEye)
		c.settings.Gameplay.TrackingMode = tracking.ModeEye
		c.saveSettings()
	}
	c.startGame()
}

// startGame starts or restarts the game.
func (c *Client) startGame() {
	c.state.calibration = nil
	c.frameClock.Stop()
	c.session.StartGame()
}

func (c *Client) setDifficulty(d config.Difficulty) {
	if d == c.session.Difficulty {
		return
	}
	c.session.SetDifficulty(d)
	c.settings.Gameplay.Difficulty = d
	c.saveSettings()
}

func (c *Client) setTrackingMode(m tracking.Mode) {
	c.session.SetTrackingMode(m)
	c.session.SetCalibrated(false)
	c.tracker.SetMode(m)
	c.settings.Gameplay.TrackingMode = m
	c.saveSettings()
}

func (c *Client) saveSettings() {
	c.settings.Normalize()
	c.server.SaveSettings(c.handle.ID, c.settings)
}

// noticeActive reports whether a lobby notice should be shown at now.
func (c *Client) noticeActive(now time.Time) bool {
	return c.state.notice != "" && now.Before(c.state.noticeUntil)
}

package client

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomz197/dontblink/internal/input"
	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/loop"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/loop/server"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/storage"
	"github.com/tomz197/dontblink/internal/tracking"
)

type fakeServer struct {
	mu           sync.Mutex
	handle       *server.ClientHandle
	results      []server.Result
	saved        []settings.Settings
	unregistered bool
	snapshot     server.LobbySnapshot
}

var _ server.GameServer = (*fakeServer)(nil)

func newFakeServer() *fakeServer {
	return &fakeServer{
		handle: &server.ClientHandle{
			ID:       1,
			Profile:  "tester",
			Progress: storage.Progress{Profile: "tester", HighScore: 42},
			Settings: settings.Default(),
			EventsCh: make(chan server.ClientEvent, config.ClientEventBuf),
		},
	}
}

func (f *fakeServer) RegisterClient(string) *server.ClientHandle { return f.handle }

func (f *fakeServer) UnregisterClient(int) {
	f.mu.Lock()
	f.unregistered = true
	f.mu.Unlock()
}

func (f *fakeServer) ReportResult(_ int, r server.Result) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func (f *fakeServer) SaveSettings(_ int, s settings.Settings) {
	f.mu.Lock()
	f.saved = append(f.saved, s)
	f.mu.Unlock()
}

func (f *fakeServer) GetSnapshot() *server.LobbySnapshot {
	return &f.snapshot
}

func (f *fakeServer) lastSaved(t *testing.T) settings.Settings {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		t.Fatal("no settings saved")
	}
	return f.saved[len(f.saved)-1]
}

func fixedSize(w, h int) func() (int, int, error) {
	return func() (int, int, error) { return w, h, nil }
}

// newTestClient builds a client on a 100x40 terminal with no eye source, so
// auto tracking falls back to the pointer immediately.
func newTestClient(t *testing.T, fs *fakeServer, w io.Writer) *Client {
	t.Helper()
	if w == nil {
		w = io.Discard
	}
	c := NewClient(fs, bufio.NewReader(strings.NewReader("")), w, ClientOptions{
		TermSizeFunc: fixedSize(100, 40),
		Username:     "tester",
		Seed:         7,
		Logger:       log.Discard(),
	})
	t.Cleanup(c.tracker.Close)
	return c
}

func press(c *Client, in input.Input) {
	if in.Number == 0 {
		in.Number = -1
	}
	c.applyInput(in, time.Now())
	c.handleCommands()
}

func keys(k string) input.Input {
	return input.Input{Keys: []byte(k), Number: -1}
}

func TestClampTermSize(t *testing.T) {
	tests := []struct {
		name             string
		w, h             int
		rw, rh, oc, orow int
	}{
		{"fits", 100, 40, 100, 40, 0, 0},
		{"too wide", config.MaxTermWidth + 20, 40, config.MaxTermWidth, 40, 10, 0},
		{"too tall", 100, config.MaxTermHeight + 5, 100, config.MaxTermHeight, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw, rh, oc, orow := clampTermSize(tt.w, tt.h)
			if rw != tt.rw || rh != tt.rh || oc != tt.oc || orow != tt.orow {
				t.Errorf("clampTermSize(%d,%d) = %d,%d,%d,%d want %d,%d,%d,%d",
					tt.w, tt.h, rw, rh, oc, orow, tt.rw, tt.rh, tt.oc, tt.orow)
			}
		})
	}
}

func TestNewClientUsesProfile(t *testing.T) {
	fs := newFakeServer()
	fs.handle.Settings.Gameplay.Difficulty = config.Hard
	c := newTestClient(t, fs, nil)

	if c.session.HighScore != 42 {
		t.Errorf("HighScore = %d, want 42", c.session.HighScore)
	}
	if c.session.Difficulty != config.Hard {
		t.Errorf("Difficulty = %q, want hard", c.session.Difficulty)
	}
	if c.state.Viewport.Width != 800 || c.state.Viewport.Height != 640 {
		t.Errorf("Viewport = %+v, want 800x640", c.state.Viewport)
	}
	if c.tracker.Active() != tracking.ModeMouse {
		t.Errorf("auto without eye source should use the pointer, got %q", c.tracker.Active())
	}
}

func TestPointerMapsToCellCenter(t *testing.T) {
	c := newTestClient(t, newFakeServer(), nil)

	c.applyInput(input.Input{Number: -1, Mouse: &input.MouseEvent{Col: 10, Row: 5}}, time.Now())
	g := c.tracker.Poll(c.state.Viewport)
	if g == nil {
		t.Fatal("no gaze after pointer move")
	}
	if math.Abs(g.X-84) > 1e-9 || math.Abs(g.Y-88) > 1e-9 {
		t.Errorf("gaze = (%v,%v), want (84,88)", g.X, g.Y)
	}

	c.applyInput(input.Input{Number: -1, FocusLost: true}, time.Now())
	if g := c.tracker.Poll(c.state.Viewport); g != nil {
		t.Errorf("gaze after focus loss = %+v, want nil", g)
	}
}

func TestMenuDifficultyAndStart(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, nil)

	press(c, input.Input{Number: 3})
	if c.session.Difficulty != config.Hard {
		t.Fatalf("Difficulty = %q, want hard", c.session.Difficulty)
	}
	if got := fs.lastSaved(t).Gameplay.Difficulty; got != config.Hard {
		t.Errorf("saved difficulty = %q", got)
	}

	press(c, input.Input{Space: true})
	if c.session.Phase != loop.PhasePlaying {
		t.Fatalf("Phase = %v, want playing", c.session.Phase)
	}

	press(c, keys("p"))
	if c.session.Phase != loop.PhasePaused {
		t.Fatalf("Phase = %v, want paused", c.session.Phase)
	}
	press(c, keys("r"))
	if c.session.Phase != loop.PhaseMenu {
		t.Fatalf("Phase = %v, want menu", c.session.Phase)
	}
}

func TestCalibrationFlow(t *testing.T) {
	c := newTestClient(t, newFakeServer(), nil)

	press(c, keys("c"))
	if c.session.Phase != loop.PhaseCalibration || c.state.calibration == nil {
		t.Fatalf("Phase = %v, want calibration", c.session.Phase)
	}

	for i := 0; i < config.CalibrationPoints; i++ {
		press(c, input.Input{Clicked: true})
	}
	if c.session.Phase != loop.PhasePlaying {
		t.Fatalf("Phase = %v, want playing after the last point", c.session.Phase)
	}
	if !c.session.Calibrated {
		t.Error("session not marked calibrated")
	}
	if c.state.calibration != nil {
		t.Error("calibration state not cleared")
	}
}

func TestSkipCalibrationUsesMouse(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, nil)

	press(c, keys("c"))
	press(c, input.Input{Escape: true})
	if c.session.Phase != loop.PhasePlaying {
		t.Fatalf("Phase = %v, want playing", c.session.Phase)
	}
	if c.session.TrackingMode != tracking.ModeMouse || c.tracker.Mode() != tracking.ModeMouse {
		t.Errorf("mode = %q/%q, want mouse", c.session.TrackingMode, c.tracker.Mode())
	}
	if got := fs.lastSaved(t).Gameplay.TrackingMode; got != tracking.ModeMouse {
		t.Errorf("saved mode = %q", got)
	}
}

func TestTrackingModeCycles(t *testing.T) {
	c := newTestClient(t, newFakeServer(), nil)
	start := c.session.TrackingMode

	press(c, keys("t"))
	if c.session.TrackingMode != start.Next() {
		t.Errorf("mode = %q, want %q", c.session.TrackingMode, start.Next())
	}
	if c.tracker.Mode() != c.session.TrackingMode {
		t.Errorf("tracker mode %q out of sync with %q", c.tracker.Mode(), c.session.TrackingMode)
	}
}

func TestToggles(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, nil)

	press(c, keys("f"))
	if !c.settings.Advanced.ShowFPS {
		t.Error("F did not enable the FPS meter")
	}
	press(c, keys("m"))
	if !fs.lastSaved(t).Audio.Muted {
		t.Error("mute not saved")
	}
	press(c, keys("h"))
	if !c.settings.Accessibility.HighContrast {
		t.Error("H did not enable high contrast")
	}
}

func TestReportResultAndBell(t *testing.T) {
	fs := newFakeServer()
	var out bytes.Buffer
	c := newTestClient(t, fs, &out)

	c.session.StartGame()
	c.session.EndGame()
	c.reportResult()
	if err := c.chunkWriter.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(fs.results) != 1 {
		t.Fatalf("results = %d, want 1", len(fs.results))
	}
	if fs.results[0].Difficulty != c.session.Difficulty {
		t.Errorf("result difficulty = %q", fs.results[0].Difficulty)
	}
	if !strings.Contains(out.String(), "\a") {
		t.Error("bell not rung")
	}

	c.settings.ToggleMute()
	out.Reset()
	c.reportResult()
	c.chunkWriter.Flush()
	if strings.Contains(out.String(), "\a") {
		t.Error("bell rung while muted")
	}
}

func TestInactivityOnlyOutsideGameplay(t *testing.T) {
	c := newTestClient(t, newFakeServer(), nil)
	now := time.Now()
	idle := input.Input{Number: -1}

	c.lastInput = now.Add(-time.Duration(config.InactivityWarnUser+1) * time.Second)
	c.applyInput(idle, now)
	if !c.state.isInactive {
		t.Error("menu idle past the warning should warn")
	}

	c.applyInput(keys("x"), now)
	if c.state.isInactive {
		t.Error("a key press should clear the warning")
	}

	c.session.StartGame()
	c.lastInput = now.Add(-time.Duration(config.InactivityDisconnectUser+1) * time.Second)
	c.applyInput(idle, now)
	if !c.state.Running || c.state.isInactive {
		t.Error("gameplay should never count as inactive")
	}

	c.session.EndGame()
	c.lastInput = now.Add(-time.Duration(config.InactivityDisconnectUser+1) * time.Second)
	c.applyInput(idle, now)
	if c.state.Running {
		t.Error("idle past the limit should disconnect")
	}
}

func TestServerEvents(t *testing.T) {
	fs := newFakeServer()
	c := newTestClient(t, fs, nil)
	now := time.Now()

	c.handleEvent(server.ClientEvent{Type: server.EventNewRecord, Profile: "alice", Score: 99}, now)
	if !c.noticeActive(now) || !strings.Contains(c.state.notice, "alice") {
		t.Errorf("notice = %q", c.state.notice)
	}
	if c.noticeActive(now.Add(config.NoticeDuration + time.Second)) {
		t.Error("notice should expire")
	}

	c.session.StartGame()
	c.handleEvent(server.ClientEvent{Type: server.EventServerShutdown}, now)
	if !c.state.shutdown || c.session.Phase != loop.PhasePaused {
		t.Errorf("shutdown = %v phase = %v, want paused shutdown", c.state.shutdown, c.session.Phase)
	}

	close(fs.handle.EventsCh)
	c.processServerEvents()
	if c.state.Running {
		t.Error("closed event channel should stop the client")
	}
}

func TestResizeUpdatesViewport(t *testing.T) {
	c := newTestClient(t, newFakeServer(), nil)
	c.termSizeFunc = fixedSize(config.MaxTermWidth+40, 30)
	c.updateScreen()

	if c.canvas.TerminalWidth() != config.MaxTermWidth || c.canvas.OffsetCol() != 20 {
		t.Errorf("canvas = %d cols offset %d", c.canvas.TerminalWidth(), c.canvas.OffsetCol())
	}
	want := float64(config.MaxTermWidth) * config.CellWidth
	if c.state.Viewport.Width != want || c.state.Viewport.Height != 30*config.CellHeight {
		t.Errorf("Viewport = %+v", c.state.Viewport)
	}
}

func TestDrawFrameScreens(t *testing.T) {
	fs := newFakeServer()
	fs.snapshot = server.LobbySnapshot{Players: 2, TopScores: []server.TopScoreEntry{{Profile: "alice", Score: 77}}}
	var out bytes.Buffer
	c := newTestClient(t, fs, &out)

	if err := c.drawFrame(); err != nil {
		t.Fatal(err)
	}
	menu := out.String()
	for _, want := range []string{"Top scores", "alice", "Players online: 2"} {
		if !strings.Contains(menu, want) {
			t.Errorf("menu missing %q", want)
		}
	}

	out.Reset()
	c.session.StartGame()
	c.session.EndGame()
	if err := c.drawFrame(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Entities frozen") {
		t.Error("game over screen missing stats")
	}
}

func TestFPSMeter(t *testing.T) {
	var m FPSMeter
	start := time.Unix(0, 0)
	now := start
	for i := 0; i < 90; i++ {
		now = now.Add(20 * time.Millisecond)
		m.Frame(20*time.Millisecond, now)
	}
	if got := m.Value(); math.Abs(got-50) > 0.01 {
		t.Errorf("Value = %v, want 50", got)
	}

	// Faster frames only show after the next refresh.
	m.Frame(10*time.Millisecond, now.Add(10*time.Millisecond))
	if got := m.Value(); math.Abs(got-50) > 0.01 {
		t.Errorf("Value changed before refresh: %v", got)
	}
}

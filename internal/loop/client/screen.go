package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/tomz197/dontblink/internal/draw"
	"github.com/tomz197/dontblink/internal/loop"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/physics"
	"github.com/tomz197/dontblink/internal/tracking"
)

// ASCII art titles (figlet "small" font)
var (
	titleArt = []string{
		` ___   ___  _  _ _ _____   ___ _    ___ _  _ _  __`,
		`|   \ / _ \| \| ( )_   _| | _ ) |  |_ _| \| | |/ /`,
		`| |) | (_) | .' |/  | |   | _ \ |__ | || .' | ' < `,
		`|___/ \___/|_|\_|   |_|   |___/____|___|_|\_|_|\_\`,
	}
	gameOverArt = []string{
		`   ___   _   __  __ ___    _____   _____ ___  `,
		`  / __| /_\ |  \/  | __|  / _ \ \ / / __| _ \ `,
		` | (_ |/ _ \| |\/| | _|  | (_) \ V /| _||   / `,
		`  \___/_/ \_\_|  |_|___|  \___/ \_/ |___|_|_\ `,
	}
)

// drawFrame draws the current frame.
func (c *Client) drawFrame() error {
	now := time.Now()
	phase := c.session.Phase
	notice := c.noticeActive(now)

	// On phase or overlay transitions, do a full terminal clear
	// so UI elements from the previous state don't persist on screen.
	if phase != c.state.prevPhase || c.state.isInactive != c.state.wasInactive ||
		c.state.shutdown != c.state.wasShutdown || notice != c.state.hadNotice {
		c.chunkWriter.WriteString("\033[H\033[2J")
		c.canvas.ForceRedraw()
		c.state.prevPhase = phase
		c.state.wasInactive = c.state.isInactive
		c.state.wasShutdown = c.state.shutdown
		c.state.hadNotice = notice
	}

	snap := c.session.Snapshot(c.state.Viewport, c.state.entityBuf)
	c.state.entityBuf = snap.Entities

	c.canvas.Clear()
	if !c.state.shutdown && !c.state.isInactive {
		switch phase {
		case loop.PhasePlaying, loop.PhasePaused:
			c.drawEntities(snap)
			c.drawGaze(snap)
		case loop.PhaseCalibration:
			c.drawCalibrationTargets()
			c.drawGaze(snap)
		}
	}

	// Render canvas to terminal
	c.canvas.Render(c.chunkWriter)

	// Draw border when terminal exceeds max render resolution
	c.canvas.RenderBorder(c.chunkWriter)

	c.drawUI(snap, now)

	return c.chunkWriter.Flush()
}

// drawEntities draws each entity as a hooded silhouette, brighter when frozen.
func (c *Client) drawEntities(snap loop.Snapshot) {
	for _, e := range snap.Entities {
		r := config.EntityRadius * e.Scale
		x, y := e.Position.X, e.Position.Y

		c.canvas.DrawDisc(draw.Point{X: x, Y: y - r*0.45}, r*0.35, e.Opacity)

		body := c.canvas.BorrowPoints(4)
		body[0] = draw.Point{X: x - r*0.55, Y: y + r}
		body[1] = draw.Point{X: x - r*0.3, Y: y - r*0.15}
		body[2] = draw.Point{X: x + r*0.3, Y: y - r*0.15}
		body[3] = draw.Point{X: x + r*0.55, Y: y + r}
		c.canvas.DrawPolygon(body, e.Opacity, true)

		if e.Frozen {
			c.canvas.DrawRing(draw.Point{X: x, Y: y}, r*1.2, e.Opacity*0.5)
		}
	}
}

// drawGaze marks the gaze point. Debug mode adds the freeze radius.
func (c *Client) drawGaze(snap loop.Snapshot) {
	if snap.Gaze == nil {
		return
	}
	p := draw.Point{X: snap.Gaze.X, Y: snap.Gaze.Y}
	c.canvas.DrawRing(p, 12, 0.9)
	c.canvas.DrawDisc(p, 3, 1)

	if c.settings.Advanced.ShowDebugInfo {
		c.canvas.DrawRing(p, config.FreezeRadius, 0.35)
	}
}

func (c *Client) drawCalibrationTargets() {
	cal := c.state.calibration
	if cal == nil {
		return
	}
	for _, pt := range cal.Points {
		if pt.Completed {
			c.canvas.DrawDisc(toPoint(pt.Position), 6, 0.3)
		}
	}
	if cur, ok := cal.Current(); ok {
		p := toPoint(cur.Position)
		c.canvas.DrawDisc(p, 12, 1)
		c.canvas.DrawRing(p, 28, 0.6)
	}
}

func toPoint(v physics.Vector) draw.Point {
	return draw.Point{X: v.X, Y: v.Y}
}

// drawUI draws the text overlay for the current phase.
func (c *Client) drawUI(snap loop.Snapshot, now time.Time) {
	width := c.canvas.TerminalWidth()
	height := c.canvas.TerminalHeight()
	centerY := height / 2

	switch {
	case c.state.shutdown:
		c.drawShutdownScreen(width, centerY)
		return
	case c.state.isInactive:
		c.drawInactivityScreen(width, centerY, now)
		return
	}

	switch snap.Phase {
	case loop.PhaseMenu:
		c.drawMenuScreen(width, centerY, now)
	case loop.PhaseCalibration:
		c.drawCalibrationScreen(width, height)
	case loop.PhasePlaying:
		c.drawPlayingHUD(width, height, snap, now)
	case loop.PhasePaused:
		c.drawPlayingHUD(width, height, snap, now)
		c.drawPauseScreen(width, centerY)
	case loop.PhaseGameOver:
		c.drawGameOverScreen(width, centerY, snap, now)
	}

	if c.noticeActive(now) {
		c.chunkWriter.WriteCentered(width, height-1, c.state.notice, draw.Bold)
	}
	if c.settings.Advanced.ShowFPS {
		fps := fmt.Sprintf("FPS %-3.0f", c.fps.Value())
		c.chunkWriter.WriteAt(max(width-len(fps), 1), height, fps)
	}
}

// blinkOn drives blinking prompts. Reduced motion keeps them steady.
func (c *Client) blinkOn(now time.Time) bool {
	return c.settings.Accessibility.ReduceMotion || now.UnixMilli()/600%2 == 0
}

// writeBlinking writes text when the blink is on and blanks it otherwise.
func (c *Client) writeBlinking(width, row int, text string, now time.Time) {
	if c.blinkOn(now) {
		c.chunkWriter.WriteCentered(width, row, text, draw.Bold)
		return
	}
	c.chunkWriter.WriteCentered(width, row, strings.Repeat(" ", runewidth.StringWidth(text)))
}

func (c *Client) writeArt(width, startRow int, art []string) {
	artWidth := 0
	for _, line := range art {
		artWidth = max(artWidth, len(line))
	}
	col := draw.CenteredCol(width, artWidth)
	for i, line := range art {
		c.chunkWriter.WriteAt(col, startRow+i, line)
	}
}

// drawMenuScreen draws the title screen.
func (c *Client) drawMenuScreen(width, centerY int, now time.Time) {
	cw := c.chunkWriter
	lobby := c.server.GetSnapshot()

	row := max(centerY-14, 1)
	c.writeArt(width, row, titleArt)
	row += len(titleArt) + 1
	cw.WriteCentered(width, row, "~ They only move when you look away ~", draw.Dim)
	row += 2

	c.writeDifficultySelector(width, row)
	row += 2
	cw.WriteCentered(width, row, fmt.Sprintf("Tracking: %-28s", c.trackingLabel()))
	row++
	if c.pairURL != "" && c.tracker.Active() == tracking.ModeEye {
		cw.WriteCentered(width, row, "Webcam: open "+c.pairURL, draw.Dim)
	}
	row += 2

	players := 0
	if lobby != nil {
		players = lobby.Players
	}
	cw.WriteCentered(width, row, fmt.Sprintf("High score: %-6d  Players online: %-4d", c.session.HighScore, players))
	row += 2

	// Fixed number of rows so a growing board never leaves stale lines.
	cw.WriteCentered(width, row, "Top scores", draw.Bold)
	row++
	for i := range config.LeaderboardSize {
		line := fmt.Sprintf("%d. %-16s %6s  %5s", i+1, "-", "", "")
		if lobby != nil && i < len(lobby.TopScores) {
			e := lobby.TopScores[i]
			line = fmt.Sprintf("%d. %-16s %6d  %5s", i+1, truncate(e.Profile, 16), e.Score, loop.FormatDuration(e.Survival))
		}
		cw.WriteCentered(width, row, line)
		row++
	}
	row++

	c.writeBlinking(width, row, ">>  Press SPACE to Start  <<", now)
	row += 2
	cw.WriteCentered(width, row, "1-4 difficulty  T tracking  C calibrate  S mouse only  Q quit", draw.Dim)
	row++
	cw.WriteCentered(width, row, "F fps  D debug  H contrast  M mute  V reduce motion", draw.Dim)
}

// writeDifficultySelector draws the presets with the selected one highlighted.
func (c *Client) writeDifficultySelector(width, row int) {
	var plain, styled strings.Builder
	for i, d := range config.Difficulties {
		item := fmt.Sprintf(" %d %s ", i+1, d.Title())
		if i > 0 {
			plain.WriteString(" ")
			styled.WriteString(" ")
		}
		plain.WriteString(item)
		if d == c.session.Difficulty {
			styled.WriteString(draw.Inverse(item))
		} else {
			styled.WriteString(item)
		}
	}
	col := draw.CenteredCol(width, runewidth.StringWidth(plain.String()))
	c.chunkWriter.WriteAt(col, row, styled.String())
}

// trackingLabel describes the selected mode and what currently feeds the gaze.
func (c *Client) trackingLabel() string {
	mode := c.session.TrackingMode
	var source string
	switch {
	case c.tracker.Active() == tracking.ModeMouse:
		source = "mouse pointer"
	default:
		source = "camera " + c.tracker.Status().String()
	}
	label := fmt.Sprintf("%s (%s)", strings.ToUpper(string(mode)), source)
	if c.session.Calibrated {
		label += " calibrated"
	}
	return label
}

// drawCalibrationScreen draws the instructions and progress around the targets.
func (c *Client) drawCalibrationScreen(width, height int) {
	cal := c.state.calibration
	if cal == nil {
		return
	}
	cw := c.chunkWriter
	cw.WriteCentered(width, 2, fmt.Sprintf("CALIBRATION  point %d/%d", min(cal.Index()+1, len(cal.Points)), len(cal.Points)), draw.Bold)
	cw.WriteCentered(width, 3, "Look at the dot, then click it or press SPACE")

	const barWidth = 30
	filled := int(cal.Progress()*barWidth + 0.5)
	bar := fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), cal.Progress()*100)
	cw.WriteCentered(width, height-2, bar)
	cw.WriteCentered(width, height-1, "S / ESC skip and play with the mouse", draw.Dim)
}

// drawPlayingHUD draws the in-game HUD.
// Text fields use fixed-width formatting so shrinking values don't leave
// residual characters on screen.
func (c *Client) drawPlayingHUD(width, height int, snap loop.Snapshot, now time.Time) {
	cw := c.chunkWriter

	left := fmt.Sprintf("Time %s  Score %-7d  Best %-7d", loop.FormatDuration(snap.SurvivalTime), snap.Score, snap.HighScore)
	cw.WriteAt(2, 1, left)

	gazeLabel := "NO GAZE"
	if snap.Gaze != nil {
		gazeLabel = strings.ToUpper(string(c.tracker.Active()))
	}
	right := fmt.Sprintf("x%.1f  %-9s  %-7s", snap.Multiplier, snap.Difficulty.Title(), gazeLabel)
	cw.WriteAt(max(width-len(right), 1), 1, right)

	if c.settings.Advanced.ShowDebugInfo {
		gx, gy := -1.0, -1.0
		if snap.Gaze != nil {
			gx, gy = snap.Gaze.X, snap.Gaze.Y
		}
		debug := fmt.Sprintf("entities %2d/%-2d  frozen %-4d  peak %-2d  gaze %5.0f,%-5.0f",
			len(snap.Entities), c.session.MaxEntities, snap.Stats.EntitiesFrozen, snap.Stats.PeakEntities, gx, gy)
		cw.WriteAt(2, 2, debug)
	}

	filled := int(snap.Danger*config.DangerBarWidth + 0.5)
	bar := fmt.Sprintf("DANGER [%s%s]", strings.Repeat("#", filled), strings.Repeat("-", config.DangerBarWidth-filled))
	if snap.Danger >= config.DangerWarnLevel && c.blinkOn(now) {
		cw.WriteCentered(width, height, bar, draw.Red)
	} else {
		cw.WriteCentered(width, height, bar)
	}
}

// drawPauseScreen draws the pause overlay.
func (c *Client) drawPauseScreen(width, centerY int) {
	cw := c.chunkWriter
	cw.WriteCentered(width, centerY-1, "  PAUSED  ", draw.Inverse)
	cw.WriteCentered(width, centerY+1, "P / ESC / SPACE resume   R back to menu")
}

// drawGameOverScreen draws the round summary.
func (c *Client) drawGameOverScreen(width, centerY int, snap loop.Snapshot, now time.Time) {
	cw := c.chunkWriter
	stats := snap.Stats

	row := max(centerY-8, 1)
	c.writeArt(width, row, gameOverArt)
	row += len(gameOverArt) + 1

	if stats.Score > 0 && stats.Score >= stats.HighScore {
		cw.WriteCentered(width, row, "NEW HIGH SCORE!", draw.Bold)
	}
	row += 2

	lines := []string{
		fmt.Sprintf("Survived         %8s", loop.FormatDuration(stats.SurvivalTime)),
		fmt.Sprintf("Score            %8d", stats.Score),
		fmt.Sprintf("High score       %8d", stats.HighScore),
		fmt.Sprintf("Entities frozen  %8d", stats.EntitiesFrozen),
		fmt.Sprintf("Most at once     %8d", stats.PeakEntities),
	}
	for _, line := range lines {
		cw.WriteCentered(width, row, line)
		row++
	}
	row++

	c.writeBlinking(width, row, ">>  Press SPACE to play again  <<", now)
	cw.WriteCentered(width, row+2, "R / ESC menu   Q quit", draw.Dim)
}

// drawInactivityScreen draws the inactivity warning screen.
func (c *Client) drawInactivityScreen(width, centerY int, now time.Time) {
	cw := c.chunkWriter
	cw.WriteCentered(width, centerY-2, "INACTIVITY WARNING", draw.Bold)

	remaining := max(int(config.InactivityDisconnectUser-now.Sub(c.lastInput).Seconds()), 0)
	msg := fmt.Sprintf("You have been inactive for too long. You will be disconnected in %3d seconds.", remaining)
	cw.WriteCentered(width, centerY, msg)

	cw.WriteCentered(width, centerY+2, "Press any key to continue")
}

// drawShutdownScreen draws the server shutdown notification screen.
func (c *Client) drawShutdownScreen(width, centerY int) {
	cw := c.chunkWriter
	cw.WriteCentered(width, centerY-3, "SERVER SHUTTING DOWN", draw.Bold)
	cw.WriteCentered(width, centerY-1, "The server is restarting for maintenance.")
	cw.WriteCentered(width, centerY, "Please reconnect in a moment.")

	remaining := int(c.state.shutdownTimer) + 1
	cw.WriteCentered(width, centerY+2, fmt.Sprintf("Disconnecting in %2d seconds...", remaining))
	cw.WriteCentered(width, centerY+4, "Press Q to disconnect now")
}

// truncate shortens s to at most n display columns.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "~")
}

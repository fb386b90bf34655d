package client

import (
	"time"

	"github.com/tomz197/dontblink/internal/input"
	"github.com/tomz197/dontblink/internal/loop"
	"github.com/tomz197/dontblink/internal/physics"
	"github.com/tomz197/dontblink/internal/tracking"
)

// ClientState holds the per-connection presentation state around the session.
type ClientState struct {
	Input         input.Input
	Viewport      physics.Viewport // Logical pixels covered by the render area
	Running       bool             // Client loop running
	delta         time.Duration    // Frame delta time (client-side)
	shutdown      bool             // Server is shutting down
	shutdownTimer float64          // Countdown before auto-disconnect on shutdown
	isInactive    bool             // Whether the client is in inactive warning state

	calibration      *tracking.Calibration // Non-nil while calibrating
	calibrationStart time.Time

	notice      string    // One-line lobby message, e.g. a new record
	noticeUntil time.Time

	prevPhase   loop.Phase // Used to detect transitions that need a full clear
	wasInactive bool
	wasShutdown bool
	hadNotice   bool

	entityBuf []loop.EntityView // Reused snapshot buffer
}

// NewClientState creates a new initialized client state.
func NewClientState() *ClientState {
	return &ClientState{
		Running:   true,
		prevPhase: -1,
	}
}

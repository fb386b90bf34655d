package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects where gaze samples come from.
type Mode string

const (
	ModeEye   Mode = "eye"
	ModeMouse Mode = "mouse"
	ModeAuto  Mode = "auto" // Eye tracking with pointer fallback
)

// Modes lists the modes in cycling order.
var Modes = []Mode{ModeAuto, ModeEye, ModeMouse}

// Next returns the mode after m in cycling order.
func (m Mode) Next() Mode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeAuto
}

// ParseMode converts a case-insensitive name to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeEye, ModeMouse, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown tracking mode %q", s)
}

// Status is the acquisition state of a tracking source.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Acquisition failures. They are never fatal to a session.
var (
	ErrNoSource         = errors.New("tracking: no source configured")
	ErrPermissionDenied = errors.New("tracking: permission denied")
	ErrInitFailed       = errors.New("tracking: initialization failed")
	ErrTrackingLost     = errors.New("tracking: stream lost")
)

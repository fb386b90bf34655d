// Package input decodes terminal keyboard, mouse and focus events.
package input

import (
	"bufio"
	"io"
)

// Terminal mode sequences. Any-motion tracking with SGR coordinates, plus focus reports.
const (
	enableSequences  = "\033[?1003h\033[?1006h\033[?1004h"
	disableSequences = "\033[?1004l\033[?1006l\033[?1003l"
)

// EnablePointer turns on mouse motion and focus reporting.
func EnablePointer(w io.Writer) {
	io.WriteString(w, enableSequences)
}

// DisablePointer turns mouse motion and focus reporting off again.
func DisablePointer(w io.Writer) {
	io.WriteString(w, disableSequences)
}

// MouseButton identifies the button of a mouse report.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// MouseAction is what a mouse report describes.
type MouseAction int

const (
	MouseMove MouseAction = iota
	MousePress
	MouseRelease
	MouseDrag
)

// MouseEvent is one SGR mouse report. Col and Row are 0-based cells.
type MouseEvent struct {
	Col, Row int
	Button   MouseButton
	Action   MouseAction
}

// Input represents the current frame's input state.
// Keys are edge triggered: each flag is set only on the frame the key arrived.
type Input struct {
	Quit   bool
	Up     bool
	Down   bool
	Left   bool
	Right  bool
	Space  bool
	Enter  bool
	Escape bool
	Number int // Last digit pressed, or -1

	Keys []byte // Printable keys this frame, lowercased

	Mouse   *MouseEvent // Last pointer report this frame
	Clicked bool        // A left button press arrived this frame

	FocusLost   bool
	FocusGained bool

	Pressed []byte // Raw bytes received this frame
}

// Key reports whether the printable key k (lowercase) was pressed this frame.
func (in Input) Key(k byte) bool {
	for _, b := range in.Keys {
		if b == k {
			return true
		}
	}
	return false
}

// Any reports whether any key or click arrived this frame.
func (in Input) Any() bool {
	return len(in.Keys) > 0 || in.Space || in.Enter || in.Escape || in.Clicked ||
		in.Up || in.Down || in.Left || in.Right
}

// Stream delivers input bytes via a channel.
type Stream struct {
	ch      chan byte
	pending []byte // Incomplete escape sequence carried to the next frame
	closed  bool
}

// StartStream spawns a goroutine that reads from r and sends bytes to the stream.
func StartStream(r *bufio.Reader) *Stream {
	s := &Stream{
		ch: make(chan byte, 256),
	}
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(s.ch)
				return
			}
			s.ch <- b
		}
	}()
	return s
}

// Closed reports whether the underlying reader has ended.
func (s *Stream) Closed() bool {
	return s.closed
}

// ReadInput drains all available bytes from the stream (non-blocking) and decodes them.
// A closed stream is reported as Quit.
func ReadInput(s *Stream) Input {
	buf := s.pending
	s.pending = nil
	fresh := 0

drain:
	for {
		select {
		case b, ok := <-s.ch:
			if !ok {
				s.closed = true
				break drain
			}
			buf = append(buf, b)
			fresh++
		default:
			break drain
		}
	}

	// An escape sequence left incomplete with nothing new behind it is a bare Escape.
	in, rest := Parse(buf, fresh == 0)
	s.pending = rest
	if s.closed {
		in.Quit = true
	}
	return in
}

// maxSequenceLen bounds how long an unterminated escape sequence is carried.
const maxSequenceLen = 32

// Parse decodes buf. An incomplete trailing escape sequence is returned as
// rest so the next frame can finish it. idle reports that no new bytes
// arrived since the last call, which turns a lone ESC into the Escape key.
func Parse(buf []byte, idle bool) (in Input, rest []byte) {
	in.Number = -1
	in.Pressed = buf

	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b != '\x1b' {
			applyByte(&in, b)
			continue
		}

		n, complete := parseEscape(&in, buf[i:])
		if !complete {
			// Nothing followed a bare ESC, so it was the Escape key.
			if idle && len(buf)-i == 1 {
				in.Escape = true
				return in, nil
			}
			if len(buf)-i > maxSequenceLen {
				in.Pressed = buf[:i]
				return in, nil
			}
			rest = append([]byte(nil), buf[i:]...)
			in.Pressed = buf[:i]
			return in, rest
		}
		i += n - 1
	}
	return in, nil
}

// parseEscape decodes the sequence at the start of data. It returns the
// number of bytes consumed and whether the sequence was complete.
func parseEscape(in *Input, data []byte) (int, bool) {
	if len(data) == 1 {
		return 1, false
	}
	if data[1] != '[' {
		// ESC followed by a regular key: Escape, then let the key parse on its own.
		in.Escape = true
		return 1, true
	}
	if len(data) < 3 {
		return 0, false
	}

	switch data[2] {
	case 'A':
		in.Up = true
		return 3, true
	case 'B':
		in.Down = true
		return 3, true
	case 'C':
		in.Right = true
		return 3, true
	case 'D':
		in.Left = true
		return 3, true
	case 'I':
		in.FocusGained = true
		in.FocusLost = false
		return 3, true
	case 'O':
		in.FocusLost = true
		in.FocusGained = false
		return 3, true
	case '<':
		n, ev, valid := parseSGRMouse(data)
		if n == 0 {
			return 0, false
		}
		if !valid {
			return n, true
		}
		in.Mouse = &ev
		if ev.Action == MousePress && ev.Button == MouseLeft {
			in.Clicked = true
		}
		return n, true
	}

	// Unknown CSI: skip to its final byte.
	for j := 2; j < len(data); j++ {
		if data[j] >= 0x40 && data[j] <= 0x7e {
			return j + 1, true
		}
	}
	return 0, false
}

// parseSGRMouse parses ESC [ < Btn ; X ; Y (M|m). n is 0 when more bytes are
// needed; a malformed report is skipped whole with valid false.
func parseSGRMouse(data []byte) (n int, ev MouseEvent, valid bool) {
	end := 3
	for end < len(data) && end < maxSequenceLen {
		if data[end] == 'M' || data[end] == 'm' {
			break
		}
		end++
	}
	if end >= maxSequenceLen {
		return 3, ev, false
	}
	if end >= len(data) {
		return 0, ev, false
	}

	btn, x, y, ok := parseSGRParams(data[3:end])
	if !ok {
		return end + 1, ev, false
	}

	ev.Col = x - 1
	ev.Row = y - 1

	buttonID := btn & 0x03
	motion := btn&32 != 0
	scroll := btn&64 != 0

	if scroll {
		ev.Button = MouseWheelDown
		if buttonID == 0 {
			ev.Button = MouseWheelUp
		}
		ev.Action = MousePress
		return end + 1, ev, true
	}

	switch buttonID {
	case 0:
		ev.Button = MouseLeft
	case 1:
		ev.Button = MouseMiddle
	case 2:
		ev.Button = MouseRight
	default:
		ev.Button = MouseNone
	}

	switch {
	case data[end] == 'm':
		ev.Action = MouseRelease
	case motion && ev.Button != MouseNone:
		ev.Action = MouseDrag
	case motion:
		ev.Action = MouseMove
	default:
		ev.Action = MousePress
	}
	return end + 1, ev, true
}

// parseSGRParams extracts btn, x, y from "Btn;X;Y".
func parseSGRParams(data []byte) (btn, x, y int, ok bool) {
	field := 0
	val := 0
	digits := 0
	for _, b := range data {
		switch {
		case b == ';':
			if digits == 0 || field >= 2 {
				return 0, 0, 0, false
			}
			if field == 0 {
				btn = val
			} else {
				x = val
			}
			field++
			val = 0
			digits = 0
		case b >= '0' && b <= '9':
			val = val*10 + int(b-'0')
			digits++
		default:
			return 0, 0, 0, false
		}
	}
	if field != 2 || digits == 0 {
		return 0, 0, 0, false
	}
	return btn, x, val, true
}

// applyByte updates the input from a single non-escape byte.
func applyByte(in *Input, b byte) {
	switch b {
	case ' ':
		in.Space = true
		return
	case '\n', '\r':
		in.Enter = true
		return
	case 0x03: // Ctrl+C
		in.Quit = true
		return
	}

	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	if b == 'q' {
		in.Quit = true
	}
	if b >= '0' && b <= '9' {
		in.Number = int(b - '0')
	}
	if b > ' ' && b < 0x7f {
		in.Keys = append(in.Keys, b)
	}
}

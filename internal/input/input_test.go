package input

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseKeys(t *testing.T) {
	in, rest := Parse([]byte("aP3 \r"), false)
	if rest != nil {
		t.Fatalf("rest = %q, want nil", rest)
	}
	if !in.Key('a') || !in.Key('p') {
		t.Errorf("keys = %q, want a and p", in.Keys)
	}
	if in.Number != 3 {
		t.Errorf("Number = %d, want 3", in.Number)
	}
	if !in.Space || !in.Enter {
		t.Errorf("Space=%v Enter=%v, want both", in.Space, in.Enter)
	}
	if in.Quit {
		t.Error("Quit set without q")
	}
}

func TestParseQuit(t *testing.T) {
	for _, raw := range []string{"q", "Q", "\x03"} {
		in, _ := Parse([]byte(raw), true)
		if !in.Quit {
			t.Errorf("Parse(%q).Quit = false", raw)
		}
	}
}

func TestParseNoDigit(t *testing.T) {
	in, _ := Parse([]byte("x"), true)
	if in.Number != -1 {
		t.Errorf("Number = %d, want -1", in.Number)
	}
}

func TestParseArrows(t *testing.T) {
	in, _ := Parse([]byte("\x1b[A\x1b[B\x1b[C\x1b[D"), false)
	if !in.Up || !in.Down || !in.Right || !in.Left {
		t.Errorf("arrows = %v %v %v %v", in.Up, in.Down, in.Right, in.Left)
	}
	if len(in.Keys) != 0 {
		t.Errorf("arrow bytes leaked into keys: %q", in.Keys)
	}
}

func TestParseFocus(t *testing.T) {
	in, _ := Parse([]byte("\x1b[O"), false)
	if !in.FocusLost || in.FocusGained {
		t.Errorf("focus out: lost=%v gained=%v", in.FocusLost, in.FocusGained)
	}

	in, _ = Parse([]byte("\x1b[O\x1b[I"), false)
	if in.FocusLost || !in.FocusGained {
		t.Errorf("focus out then in: lost=%v gained=%v", in.FocusLost, in.FocusGained)
	}
}

func TestParseMouse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    MouseEvent
		clicked bool
	}{
		{"left press", "\x1b[<0;10;5M", MouseEvent{Col: 9, Row: 4, Button: MouseLeft, Action: MousePress}, true},
		{"left release", "\x1b[<0;10;5m", MouseEvent{Col: 9, Row: 4, Button: MouseLeft, Action: MouseRelease}, false},
		{"move", "\x1b[<35;1;1M", MouseEvent{Col: 0, Row: 0, Button: MouseNone, Action: MouseMove}, false},
		{"drag", "\x1b[<32;3;4M", MouseEvent{Col: 2, Row: 3, Button: MouseLeft, Action: MouseDrag}, false},
		{"right press", "\x1b[<2;7;8M", MouseEvent{Col: 6, Row: 7, Button: MouseRight, Action: MousePress}, false},
		{"wheel up", "\x1b[<64;2;2M", MouseEvent{Col: 1, Row: 1, Button: MouseWheelUp, Action: MousePress}, false},
		{"wheel down", "\x1b[<65;2;2M", MouseEvent{Col: 1, Row: 1, Button: MouseWheelDown, Action: MousePress}, false},
		{"large coords", "\x1b[<35;200;120M", MouseEvent{Col: 199, Row: 119, Button: MouseNone, Action: MouseMove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, rest := Parse([]byte(tt.raw), false)
			if rest != nil {
				t.Fatalf("rest = %q, want nil", rest)
			}
			if in.Mouse == nil {
				t.Fatal("Mouse = nil")
			}
			if *in.Mouse != tt.want {
				t.Errorf("Mouse = %+v, want %+v", *in.Mouse, tt.want)
			}
			if in.Clicked != tt.clicked {
				t.Errorf("Clicked = %v, want %v", in.Clicked, tt.clicked)
			}
			if len(in.Keys) != 0 {
				t.Errorf("mouse bytes leaked into keys: %q", in.Keys)
			}
		})
	}
}

func TestParseMouseKeepsLastReport(t *testing.T) {
	in, _ := Parse([]byte("\x1b[<35;1;1M\x1b[<35;5;6M"), false)
	if in.Mouse == nil || in.Mouse.Col != 4 || in.Mouse.Row != 5 {
		t.Errorf("Mouse = %+v, want col 4 row 5", in.Mouse)
	}
}

func TestParseMalformedMouse(t *testing.T) {
	in, rest := Parse([]byte("\x1b[<a;1;1Mx"), false)
	if rest != nil {
		t.Fatalf("rest = %q, want nil", rest)
	}
	if in.Mouse != nil {
		t.Errorf("Mouse = %+v, want nil", in.Mouse)
	}
	if len(in.Keys) != 1 || !in.Key('x') {
		t.Errorf("keys = %q, want only trailing x", in.Keys)
	}
}

func TestParsePartialSequence(t *testing.T) {
	in, rest := Parse([]byte("a\x1b[<35;10"), false)
	if string(rest) != "\x1b[<35;10" {
		t.Fatalf("rest = %q", rest)
	}
	if !in.Key('a') {
		t.Error("key before partial sequence lost")
	}
	if in.Mouse != nil {
		t.Error("partial report decoded")
	}

	in, rest = Parse(append(rest, []byte(";4M")...), false)
	if rest != nil {
		t.Fatalf("rest = %q, want nil", rest)
	}
	if in.Mouse == nil || in.Mouse.Col != 9 || in.Mouse.Row != 3 {
		t.Errorf("Mouse = %+v, want col 9 row 3", in.Mouse)
	}
}

func TestParseLoneEscape(t *testing.T) {
	in, rest := Parse([]byte("\x1b"), false)
	if in.Escape {
		t.Error("Escape decoded before the sequence could complete")
	}
	if string(rest) != "\x1b" {
		t.Fatalf("rest = %q", rest)
	}

	in, rest = Parse(rest, true)
	if !in.Escape || rest != nil {
		t.Errorf("final: Escape=%v rest=%q", in.Escape, rest)
	}
}

func TestParseIdleKeepsPartialReport(t *testing.T) {
	in, rest := Parse([]byte("\x1b[<35;1"), true)
	if in.Escape {
		t.Error("partial report decoded as Escape")
	}
	if string(rest) != "\x1b[<35;1" {
		t.Errorf("rest = %q", rest)
	}
}

func TestParseOverlongSequenceDropped(t *testing.T) {
	raw := "\x1b[" + strings.Repeat("1", maxSequenceLen+4)
	in, rest := Parse([]byte(raw), false)
	if rest != nil {
		t.Errorf("rest = %q, want nil", rest)
	}
	if len(in.Keys) != 0 {
		t.Errorf("keys = %q, want none", in.Keys)
	}
}

func TestParseEscapeThenKey(t *testing.T) {
	in, _ := Parse([]byte("\x1bp"), false)
	if !in.Escape || !in.Key('p') {
		t.Errorf("Escape=%v keys=%q", in.Escape, in.Keys)
	}
}

func TestParseUnknownCSI(t *testing.T) {
	in, _ := Parse([]byte("\x1b[2~k"), false)
	if len(in.Keys) != 1 || !in.Key('k') {
		t.Errorf("keys = %q, want only k", in.Keys)
	}
}

func TestInputAny(t *testing.T) {
	if (Input{}).Any() {
		t.Error("empty input reports Any")
	}
	in, _ := Parse([]byte("\x1b[<35;1;1M"), false)
	if in.Any() {
		t.Error("pointer motion reports Any")
	}
	in, _ = Parse([]byte("\x1b[<0;1;1M"), false)
	if !in.Any() {
		t.Error("click does not report Any")
	}
}

func TestPointerSequences(t *testing.T) {
	var buf bytes.Buffer
	EnablePointer(&buf)
	if !strings.Contains(buf.String(), "?1006h") || !strings.Contains(buf.String(), "?1004h") {
		t.Errorf("enable = %q", buf.String())
	}
	buf.Reset()
	DisablePointer(&buf)
	if !strings.Contains(buf.String(), "?1003l") {
		t.Errorf("disable = %q", buf.String())
	}
}

func TestStreamReadInput(t *testing.T) {
	s := StartStream(bufio.NewReader(strings.NewReader("a\x1b[<0;2;3M")))

	deadline := time.Now().Add(time.Second)
	var got Input
	for time.Now().Before(deadline) {
		in := ReadInput(s)
		if in.Key('a') {
			got.Keys = append(got.Keys, 'a')
		}
		if in.Mouse != nil {
			got.Mouse = in.Mouse
			got.Clicked = in.Clicked
		}
		if s.Closed() {
			if !in.Quit {
				t.Error("closed stream not reported as Quit")
			}
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !s.Closed() {
		t.Fatal("stream never closed")
	}
	if !got.Key('a') {
		t.Error("key lost")
	}
	if got.Mouse == nil || !got.Clicked || got.Mouse.Col != 1 || got.Mouse.Row != 2 {
		t.Errorf("Mouse = %+v clicked=%v", got.Mouse, got.Clicked)
	}
}

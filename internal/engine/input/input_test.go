package input

import (
	"bytes"
	"testing"
	"time"
)

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		in   []byte
		want EventType
	}{
		{[]byte("\x1b[A"), EventOrbitUp},
		{[]byte("\x1b[B"), EventOrbitDown},
		{[]byte("\x1b[C"), EventOrbitRight},
		{[]byte("\x1b[D"), EventOrbitLeft},
		{[]byte("\x1b"), EventQuit},
		{[]byte("q"), EventQuit},
		{[]byte{0x03}, EventQuit},
		{[]byte("h"), EventOrbitLeft},
		{[]byte("l"), EventOrbitRight},
		{[]byte("+"), EventZoomIn},
		{[]byte("-"), EventZoomOut},
		{[]byte("n"), EventNextClip},
		{[]byte("p"), EventPrevClip},
		{[]byte(" "), EventTogglePause},
		{[]byte("f"), EventToggleWireframe},
		{[]byte("g"), EventToggleLighting},
		{[]byte("b"), EventToggleSky},
		{[]byte("x"), EventScreenshot},
		{[]byte("z"), EventNone},
		{[]byte("\x1b[Z"), EventNone},
	}

	for _, tc := range tests {
		ev, _ := decodeKey(tc.in)
		if ev.Type != tc.want {
			t.Errorf("decodeKey(%q) = %v, want %v", tc.in, ev.Type, tc.want)
		}
	}
}

func TestDecodeKeyConsumesSequence(t *testing.T) {
	ev, rest := decodeKey([]byte("\x1b[Aq"))
	if ev.Type != EventOrbitUp {
		t.Fatalf("first event = %v, want EventOrbitUp", ev.Type)
	}
	ev, rest = decodeKey(rest)
	if ev.Type != EventQuit || len(rest) != 0 {
		t.Errorf("second event = %v rest=%d, want EventQuit with empty rest", ev.Type, len(rest))
	}
}

func TestReadLoopDeliversEvents(t *testing.T) {
	in := New(bytes.NewReader([]byte("wn q")))
	defer in.Close()

	want := []EventType{EventOrbitUp, EventNextClip, EventTogglePause, EventQuit}
	for _, w := range want {
		select {
		case ev := <-in.Events():
			if ev.Type != w {
				t.Fatalf("event = %v, want %v", ev.Type, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", w)
		}
	}
}

func TestReadLoopEOFQuits(t *testing.T) {
	in := New(bytes.NewReader(nil))
	defer in.Close()

	select {
	case ev := <-in.Events():
		if ev.Type != EventQuit {
			t.Errorf("event = %v, want EventQuit on EOF", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EOF quit")
	}
}

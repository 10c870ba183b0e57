// Package input reads raw-mode stdin and decodes key presses into viewer
// events.
package input

import (
	"io"
	"os"
)

// EventType classifies a decoded key press.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventOrbitLeft
	EventOrbitRight
	EventOrbitUp
	EventOrbitDown
	EventZoomIn
	EventZoomOut
	EventNextClip
	EventPrevClip
	EventTogglePause
	EventToggleWireframe
	EventToggleLighting
	EventToggleSky
	EventScreenshot
)

// Event represents a processed input event.
type Event struct {
	Type EventType
}

// Input decodes key presses off a reader on its own goroutine.
type Input struct {
	events chan Event
	done   chan struct{}
}

// New starts reading from r (normally stdin in raw mode). Close stops the
// reader goroutine on the next read.
func New(r io.Reader) *Input {
	in := &Input{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go in.readLoop(r)
	return in
}

// NewStdin starts an input reader on os.Stdin.
func NewStdin() *Input {
	return New(os.Stdin)
}

// Events returns the channel decoded events arrive on.
func (in *Input) Events() <-chan Event {
	return in.events
}

// Close stops delivering events. The reader goroutine exits after its
// current blocking read returns.
func (in *Input) Close() {
	close(in.done)
}

func (in *Input) readLoop(r io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if err != nil {
			in.emit(Event{Type: EventQuit})
			return
		}

		rest := buf[:n]
		for len(rest) > 0 {
			var ev Event
			ev, rest = decodeKey(rest)
			if ev.Type == EventNone {
				continue
			}
			in.emit(ev)
			if ev.Type == EventQuit {
				return
			}
		}
	}
}

func (in *Input) emit(ev Event) {
	select {
	case in.events <- ev:
	case <-in.done:
	default:
		// Drop events rather than stall the reader when the viewer
		// falls behind.
	}
}

// decodeKey consumes one key press from b and returns the remaining bytes.
func decodeKey(b []byte) (Event, []byte) {
	// CSI arrow sequences: ESC [ A..D.
	if len(b) >= 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			return Event{Type: EventOrbitUp}, b[3:]
		case 'B':
			return Event{Type: EventOrbitDown}, b[3:]
		case 'C':
			return Event{Type: EventOrbitRight}, b[3:]
		case 'D':
			return Event{Type: EventOrbitLeft}, b[3:]
		}
		return Event{}, b[3:]
	}

	switch b[0] {
	case 0x1b: // bare escape
		if len(b) == 1 {
			return Event{Type: EventQuit}, nil
		}
		return Event{}, b[1:]
	case 0x03, 'q', 'Q': // ctrl-C
		return Event{Type: EventQuit}, b[1:]
	case 'a', 'h':
		return Event{Type: EventOrbitLeft}, b[1:]
	case 'd', 'l':
		return Event{Type: EventOrbitRight}, b[1:]
	case 'w', 'k':
		return Event{Type: EventOrbitUp}, b[1:]
	case 's', 'j':
		return Event{Type: EventOrbitDown}, b[1:]
	case '+', '=':
		return Event{Type: EventZoomIn}, b[1:]
	case '-', '_':
		return Event{Type: EventZoomOut}, b[1:]
	case 'n', '\t':
		return Event{Type: EventNextClip}, b[1:]
	case 'p':
		return Event{Type: EventPrevClip}, b[1:]
	case ' ':
		return Event{Type: EventTogglePause}, b[1:]
	case 'f':
		return Event{Type: EventToggleWireframe}, b[1:]
	case 'g':
		return Event{Type: EventToggleLighting}, b[1:]
	case 'b':
		return Event{Type: EventToggleSky}, b[1:]
	case 'x':
		return Event{Type: EventScreenshot}, b[1:]
	}
	return Event{}, b[1:]
}

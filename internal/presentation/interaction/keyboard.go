package interaction

import (
	"errors"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/penwyp/go-agent-timeline/internal/util"
)

// KeyType classifies a key press
type KeyType int

const (
	KeyChar KeyType = iota
	KeyEscape
	KeyCtrlC
	KeyEnter
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
)

// KeyEvent is one decoded key press. Key is set for KeyChar.
type KeyEvent struct {
	Key  rune
	Type KeyType
}

// KeyboardReader puts the terminal in raw mode and decodes key presses
type KeyboardReader struct {
	input   chan KeyEvent
	stop    chan struct{}
	done    chan struct{}
	restore func() error
	once    sync.Once
}

// NewKeyboardReader switches stdin to raw mode and starts reading keys.
// Close restores the terminal.
func NewKeyboardReader() (*KeyboardReader, error) {
	restore, err := makeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return nil, err
	}
	kr := &KeyboardReader{
		input:   make(chan KeyEvent, 10),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		restore: restore,
	}
	go kr.readLoop(os.Stdin)
	return kr, nil
}

func (kr *KeyboardReader) Events() <-chan KeyEvent {
	return kr.input
}

func (kr *KeyboardReader) Close() error {
	var err error
	kr.once.Do(func() {
		close(kr.stop)
		<-kr.done
		if kr.restore != nil {
			err = kr.restore()
		}
	})
	return err
}

// readLoop relies on the raw-mode read timeout to notice stop
func (kr *KeyboardReader) readLoop(r io.Reader) {
	defer close(kr.done)
	buf := make([]byte, 64)
	for {
		select {
		case <-kr.stop:
			return
		default:
		}

		n, err := r.Read(buf)
		for _, ev := range parseAll(buf[:n]) {
			select {
			case kr.input <- ev:
			case <-kr.stop:
				return
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			util.LogDebugf("keyboard read failed: %v", err)
			return
		}
	}
}

// parseInput decodes the first key in b
func (kr *KeyboardReader) parseInput(b []byte) *KeyEvent {
	events := parseAll(b)
	if len(events) == 0 {
		return nil
	}
	return &events[0]
}

// parseAll decodes every key in one read. Unknown escape sequences are dropped.
func parseAll(b []byte) []KeyEvent {
	var events []KeyEvent
	for len(b) > 0 {
		if b[0] == 27 && len(b) > 1 && (b[1] == '[' || b[1] == 'O') {
			n, ev := parseEscape(b)
			if ev != nil {
				events = append(events, *ev)
			}
			b = b[n:]
			continue
		}

		switch b[0] {
		case 27:
			events = append(events, KeyEvent{Key: 27, Type: KeyEscape})
			b = b[1:]
		case 3:
			events = append(events, KeyEvent{Key: 3, Type: KeyCtrlC})
			b = b[1:]
		case '\r', '\n':
			events = append(events, KeyEvent{Key: rune(b[0]), Type: KeyEnter})
			b = b[1:]
		default:
			r, size := utf8.DecodeRune(b)
			events = append(events, KeyEvent{Key: r, Type: KeyChar})
			b = b[size:]
		}
	}
	return events
}

// parseEscape decodes a CSI or SS3 sequence at the start of b and returns
// how many bytes it used
func parseEscape(b []byte) (int, *KeyEvent) {
	// final byte is the first in 0x40..0x7E after the introducer
	end := 2
	for end < len(b) && (b[end] < 0x40 || b[end] > 0x7E) {
		end++
	}
	if end >= len(b) {
		return len(b), nil
	}
	params := string(b[2:end])
	final := b[end]
	used := end + 1

	switch final {
	case 'A':
		return used, &KeyEvent{Type: KeyUp}
	case 'B':
		return used, &KeyEvent{Type: KeyDown}
	case 'C':
		return used, &KeyEvent{Type: KeyRight}
	case 'D':
		return used, &KeyEvent{Type: KeyLeft}
	case 'H':
		return used, &KeyEvent{Type: KeyHome}
	case 'F':
		return used, &KeyEvent{Type: KeyEnd}
	case '~':
		switch params {
		case "1", "7":
			return used, &KeyEvent{Type: KeyHome}
		case "4", "8":
			return used, &KeyEvent{Type: KeyEnd}
		}
	}
	return used, nil
}

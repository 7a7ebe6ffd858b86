// Package device holds the terminal's driver side: a serial text display,
// a bell buzzer, a line-oriented card reader and a console keypad.
package device

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// SerialDisplay writes two lines per update to a byte channel, each ended
// by a line feed. The display firmware does the wrapping.
type SerialDisplay struct {
	mu  sync.Mutex
	w   io.Writer
	eol string
}

func NewSerialDisplay(w io.Writer) *SerialDisplay {
	return &SerialDisplay{w: w, eol: "\n"}
}

// NewConsoleDisplay ends lines with CRLF for a terminal the keypad has put
// in raw mode, where a bare line feed does not return the carriage.
func NewConsoleDisplay(w io.Writer) *SerialDisplay {
	return &SerialDisplay{w: w, eol: "\r\n"}
}

// OpenSerialDisplay opens a serial device file, or stdout for "" and "-".
func OpenSerialDisplay(path string) (*SerialDisplay, io.Closer, error) {
	if path == "" || path == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return NewConsoleDisplay(os.Stdout), io.NopCloser(nil), nil
		}
		return NewSerialDisplay(os.Stdout), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open display %s: %w", path, err)
	}
	return NewSerialDisplay(f), f, nil
}

func (d *SerialDisplay) WriteLines(line1, line2 string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := io.WriteString(d.w, line1+d.eol+line2+d.eol)
	return err
}

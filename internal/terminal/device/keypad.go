package device

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"blikterminal/internal/terminal"
)

const ctrlC = 0x03

// ConsoleKeypad reads keypad presses from a console. When the input is a
// tty it is switched to raw mode so single key presses arrive unbuffered.
type ConsoleKeypad struct {
	In io.Reader
}

// Keys delivers presses until Ctrl-C, end of input or ctx is done. Bytes
// that are not keypad keys are skipped.
func (k *ConsoleKeypad) Keys(ctx context.Context) <-chan terminal.Key {
	out := make(chan terminal.Key)
	restore := func() {}
	if f, ok := k.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if state, err := term.MakeRaw(int(f.Fd())); err == nil {
			restore = func() { _ = term.Restore(int(f.Fd()), state) }
		}
	}
	go func() {
		defer close(out)
		defer restore()
		buf := make([]byte, 1)
		for {
			n, err := k.In.Read(buf)
			if n == 1 {
				if buf[0] == ctrlC {
					return
				}
				if key, ok := terminal.ParseKey(buf[0]); ok {
					select {
					case out <- key:
					case <-ctx.Done():
						return
					}
				}
			}
			if err != nil || ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

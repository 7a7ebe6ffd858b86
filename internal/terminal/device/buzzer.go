package device

import (
	"io"
	"time"
)

// BellBuzzer sounds the terminal bell and holds for the tone's duration.
// The frequency is not adjustable on a bell.
type BellBuzzer struct {
	w     io.Writer
	sleep func(time.Duration)
}

func NewBellBuzzer(w io.Writer) *BellBuzzer {
	return &BellBuzzer{w: w, sleep: time.Sleep}
}

func (b *BellBuzzer) PlayTone(_ int, d time.Duration) error {
	if _, err := b.w.Write([]byte{'\a'}); err != nil {
		return err
	}
	b.sleep(d)
	return nil
}

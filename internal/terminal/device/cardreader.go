package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"blikterminal/internal/terminal"
)

var (
	ErrReaderClosed = errors.New("card reader closed")
	ErrReaderBusy   = errors.New("card read already in progress")
)

type line struct {
	text string
	err  error
}

// LineCardReader reads one card per line, "<id> [payload]", from a device
// file or FIFO fed by the RFID driver. A line only counts as a tap when a
// ReadCard call is waiting for it; cards shown at any other time are
// dropped so they cannot pay for a later sale.
type LineCardReader struct {
	mu      sync.Mutex
	waiting chan line
	err     error
	done    chan struct{}
	dropped atomic.Int64
}

func NewLineCardReader(r io.Reader) *LineCardReader {
	c := &LineCardReader{done: make(chan struct{})}
	go c.scan(r)
	return c
}

func (c *LineCardReader) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		c.deliver(line{text: text})
	}
	err := sc.Err()
	if err == nil {
		err = ErrReaderClosed
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
}

func (c *LineCardReader) deliver(l line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiting == nil {
		c.dropped.Add(1)
		return
	}
	c.waiting <- l
	c.waiting = nil
}

// Dropped reports how many cards were shown while no read was waiting.
func (c *LineCardReader) Dropped() int64 { return c.dropped.Load() }

// ReadCard waits for the next card presented after the call.
func (c *LineCardReader) ReadCard(ctx context.Context) (terminal.CardRead, error) {
	want := make(chan line, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return terminal.CardRead{}, err
	}
	if c.waiting != nil {
		c.mu.Unlock()
		return terminal.CardRead{}, ErrReaderBusy
	}
	c.waiting = want
	c.mu.Unlock()

	select {
	case l := <-want:
		return parseCardLine(l.text)
	case <-c.done:
		select {
		case l := <-want:
			return parseCardLine(l.text)
		default:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.waiting = nil
		return terminal.CardRead{}, c.err
	case <-ctx.Done():
		c.mu.Lock()
		if c.waiting == want {
			c.waiting = nil
		}
		c.mu.Unlock()
		select {
		case <-want:
			// tapped as the read was abandoned
			c.dropped.Add(1)
		default:
		}
		return terminal.CardRead{}, ctx.Err()
	}
}

func parseCardLine(text string) (terminal.CardRead, error) {
	idPart, payload, _ := strings.Cut(text, " ")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return terminal.CardRead{}, fmt.Errorf("bad card id %q", idPart)
	}
	return terminal.CardRead{ID: id, Payload: strings.TrimSpace(payload)}, nil
}

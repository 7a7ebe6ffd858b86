package terminal

import "context"

type cardResult struct {
	read CardRead
	err  error
}

// Run feeds keypad presses and card reads into the machine until keys is
// closed or ctx is done. A card read is in flight only while the session
// waits for a tap; one that finishes after the session moved on is dropped.
func (m *Machine) Run(ctx context.Context, keys <-chan Key, reader CardReader) error {
	s := m.Start()

	var (
		cards      chan cardResult
		cancelRead context.CancelFunc
	)
	stopRead := func() {
		if cancelRead != nil {
			cancelRead()
		}
		cards, cancelRead = nil, nil
	}
	defer stopRead()

	for {
		switch {
		case s.Mode == AwaitingCardTap && cards == nil:
			readCtx, cancel := context.WithCancel(ctx)
			ch := make(chan cardResult, 1)
			go func() {
				read, err := reader.ReadCard(readCtx)
				ch <- cardResult{read: read, err: err}
			}()
			cards, cancelRead = ch, cancel
		case s.Mode != AwaitingCardTap && cards != nil:
			stopRead()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			s = m.Handle(ctx, s, KeyEvent(k))
		case res := <-cards:
			stopRead()
			s = m.Handle(ctx, s, CardEvent(res.read, res.err))
		}
	}
}

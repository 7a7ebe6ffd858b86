package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blikterminal/internal/client/authclient"
)

// Display shows two lines of text.
type Display interface {
	WriteLines(line1, line2 string) error
}

// Buzzer plays a tone and returns when it is over.
type Buzzer interface {
	PlayTone(freqHz int, d time.Duration) error
}

// CardRead is what the reader got off a card. ID is the account id.
type CardRead struct {
	ID      int64
	Payload string
}

// CardReader blocks until a card is presented or ctx is done.
type CardReader interface {
	ReadCard(ctx context.Context) (CardRead, error)
}

// AuthClient is the authorization server as seen by the terminal.
type AuthClient interface {
	VerifyBlik(ctx context.Context, code string, amount decimal.Decimal) (authclient.Result, error)
	ChargeCard(ctx context.Context, cardID int64, amount decimal.Decimal) (authclient.Result, error)
}

const (
	SuccessToneHz       = 880
	SuccessToneDuration = 300 * time.Millisecond
)

// Event is a key press or a finished card read.
type Event struct {
	Key     Key
	Card    *CardRead
	CardErr error
}

func KeyEvent(k Key) Event { return Event{Key: k} }

func CardEvent(read CardRead, err error) Event {
	if err != nil {
		return Event{CardErr: err}
	}
	return Event{Card: &read}
}

func (e Event) isCard() bool { return e.Card != nil || e.CardErr != nil }

type Machine struct {
	display Display
	buzzer  Buzzer
	client  AuthClient
	logger  *zap.Logger
}

func NewMachine(display Display, buzzer Buzzer, client AuthClient, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{display: display, buzzer: buzzer, client: client, logger: logger}
}

func (m *Machine) show(line1, line2 string) {
	if err := m.display.WriteLines(line1, line2); err != nil {
		m.logger.Warn("display", zap.Error(err))
	}
}

// Start shows the method prompt and returns an idle session.
func (m *Machine) Start() Session {
	m.show("Choose method:", "A-card  B-BLIK")
	return Session{}
}

// Handle runs one event to completion and returns the next session. Calls to
// the server block until they return.
func (m *Machine) Handle(ctx context.Context, s Session, ev Event) Session {
	if ev.isCard() {
		if s.Mode != AwaitingCardTap {
			m.logger.Debug("card read ignored", zap.Stringer("mode", s.Mode))
			return s
		}
		return m.cardTapped(ctx, s, ev)
	}

	k := ev.Key
	if k == KeyReset {
		return m.Start()
	}
	switch s.Mode {
	case Idle:
		return m.idle(s, k)
	case EnteringAmount:
		return m.enteringAmount(s, k)
	case EnteringBlikCode:
		return m.enteringCode(ctx, s, k)
	}
	return s
}

func (m *Machine) idle(s Session, k Key) Session {
	switch {
	case k.IsDigit() || k == KeyDot:
		s = Session{Mode: EnteringAmount, Method: MethodCard, Amount: appendAmount("", k)}
		m.show("Amount:", s.Amount)
	case k == KeyCard:
		s = Session{Mode: AwaitingCardTap, Method: MethodCard}
		m.show("Card payment", "Place your card")
	case k == KeyBlik:
		s = Session{Mode: EnteringAmount, Method: MethodBlik}
		m.show("BLIK payment", "Enter amount")
	}
	return s
}

func (m *Machine) enteringAmount(s Session, k Key) Session {
	switch {
	case k.IsDigit() || k == KeyDot:
		s.Amount = appendAmount(s.Amount, k)
		m.show("Amount:", s.Amount)
	case k == KeyBackspace:
		s.Amount = trimLast(s.Amount)
		m.show("Amount:", s.Amount)
	case k == KeyConfirm || k == KeyCard || k == KeyBlik:
		// A and B pick the method and confirm in one press
		switch k {
		case KeyCard:
			s.Method = MethodCard
		case KeyBlik:
			s.Method = MethodBlik
		}
		if _, err := ParseAmount(s.Amount); err != nil {
			m.show("Invalid amount", s.Amount)
			return s
		}
		if s.Method == MethodBlik {
			s.Mode = EnteringBlikCode
			m.show("Enter BLIK code", "")
			return s
		}
		s.Mode = AwaitingCardTap
		m.show("Card payment", "Place your card")
	}
	return s
}

func (m *Machine) enteringCode(ctx context.Context, s Session, k Key) Session {
	switch {
	case k.IsDigit():
		s.Code = appendCode(s.Code, k)
		m.show("Enter BLIK code", s.Code)
	case k == KeyBackspace:
		s.Code = trimLast(s.Code)
		m.show("Enter BLIK code", s.Code)
	case k == KeyConfirm:
		amount, err := ParseAmount(s.Amount)
		if err != nil {
			m.show("Invalid amount", s.Amount)
			return Session{}
		}
		m.show("Verifying BLIK", "Please wait...")
		res, err := m.client.VerifyBlik(ctx, s.Code, amount)
		m.outcome(res, err)
		return Session{}
	}
	return s
}

func (m *Machine) cardTapped(ctx context.Context, s Session, ev Event) Session {
	if ev.CardErr != nil {
		m.logger.Warn("card read", zap.Error(ev.CardErr))
		m.show("Card read failed", "")
		return Session{}
	}
	amount, err := ParseAmount(s.Amount)
	if err != nil {
		m.show("Invalid amount", s.Amount)
		return Session{}
	}
	m.show("Card read", "Processing...")
	res, err := m.client.ChargeCard(ctx, ev.Card.ID, amount)
	m.outcome(res, err)
	return Session{}
}

// outcome leaves the transaction result on the display.
func (m *Machine) outcome(res authclient.Result, err error) {
	if err == nil {
		m.logger.Info("payment authorized", zap.String("new_balance", res.NewBalance.String()))
		m.show("Payment successful", "New balance: "+res.NewBalance.StringFixed(2))
		if err := m.buzzer.PlayTone(SuccessToneHz, SuccessToneDuration); err != nil {
			m.logger.Warn("buzzer", zap.Error(err))
		}
		return
	}

	var oe *authclient.OutcomeError
	if !errors.As(err, &oe) {
		oe = &authclient.OutcomeError{Kind: authclient.InternalError, Err: err}
	}
	m.logger.Info("payment failed", zap.Stringer("kind", oe.Kind), zap.Error(err))
	switch {
	case oe.Kind == authclient.NetworkError:
		m.show("Payment failed", "Network error")
	case oe.Kind.Declined() && oe.Message != "":
		m.show("Payment failed", oe.Message)
	case oe.Kind.Declined():
		m.show("Payment failed", oe.Kind.String())
	default:
		m.show("Payment failed", "Try again later")
	}
}

package terminal

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Mode int

const (
	Idle Mode = iota
	EnteringAmount
	AwaitingCardTap
	EnteringBlikCode
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case EnteringAmount:
		return "entering-amount"
	case AwaitingCardTap:
		return "awaiting-card"
	case EnteringBlikCode:
		return "entering-blik-code"
	}
	return "unknown"
}

// Method is the payment method chosen for the transaction in progress.
type Method int

const (
	MethodCard Method = iota
	MethodBlik
)

const (
	maxAmountLen    = 10
	maxFractionDigs = 2
	blikCodeLen     = 6
)

var ErrInvalidAmount = errors.New("invalid amount")

// Session is the state of the transaction being keyed in. It is a plain
// value: Machine.Handle takes one and returns the next.
type Session struct {
	Mode   Mode
	Method Method
	Amount string
	Code   string
}

func appendAmount(buf string, k Key) string {
	if len(buf) >= maxAmountLen {
		return buf
	}
	if k == KeyDot {
		if strings.Contains(buf, ".") {
			return buf
		}
		return buf + "."
	}
	return buf + string(rune(k))
}

func appendCode(buf string, k Key) string {
	if len(buf) >= blikCodeLen {
		return buf
	}
	return buf + string(rune(k))
}

func trimLast(buf string) string {
	if buf == "" {
		return buf
	}
	return buf[:len(buf)-1]
}

// ParseAmount validates a keyed-in amount: a positive decimal with at most
// two fraction digits.
func ParseAmount(buf string) (decimal.Decimal, error) {
	if buf == "" || len(buf) > maxAmountLen {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(buf)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if i := strings.IndexByte(buf, '.'); i >= 0 && len(buf)-i-1 > maxFractionDigs {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// Package terminal drives the payment terminal: it turns keypad presses and
// card reads into calls to the authorization server and shows the outcome.
package terminal

// Key is one press on the 4x4 keypad.
//
//	1 2 3 A
//	4 5 6 B
//	7 8 9 C
//	* 0 # D
type Key byte

const (
	KeyCard      Key = 'A'
	KeyBlik      Key = 'B'
	KeyReset     Key = 'C'
	KeyDot       Key = 'D'
	KeyBackspace Key = '*'
	KeyConfirm   Key = '#'
)

// ParseKey maps an input byte to a keypad key. Lower case letters and a
// literal '.' (for the decimal point) are accepted from console keypads.
func ParseKey(b byte) (Key, bool) {
	switch {
	case b >= '0' && b <= '9':
		return Key(b), true
	case b >= 'a' && b <= 'd':
		return Key(b - 'a' + 'A'), true
	case b >= 'A' && b <= 'D':
		return Key(b), true
	case b == '.':
		return KeyDot, true
	case b == '*', b == '#':
		return Key(b), true
	}
	return 0, false
}

func (k Key) IsDigit() bool { return k >= '0' && k <= '9' }

func (k Key) String() string { return string(rune(k)) }

package marc

import (
	"fmt"
	"strconv"
	"strings"
)

// Leader layout.
const (
	LeaderSize = 24

	lengthStart      = 0
	lengthEnd        = 5
	codingSchemePos  = 9
	baseAddressStart = 12
	baseAddressEnd   = 17

	maxRecordLength = 99999

	codingUnicode byte = 'a'
	codingMARC8   byte = ' '
)

// Leader is the fixed 24-byte record header.
type Leader struct {
	raw [LeaderSize]byte
}

// ParseLeader parses the record length and base address of a raw leader.
func ParseLeader(b []byte) (Leader, error) {
	var l Leader
	if len(b) != LeaderSize {
		return l, fmt.Errorf("%w: got %d bytes, want %d", ErrBadLeader, len(b), LeaderSize)
	}
	copy(l.raw[:], b)
	if _, err := l.parseNumber(lengthStart, lengthEnd); err != nil {
		return l, fmt.Errorf("%w: record length %q", ErrBadLeader, b[lengthStart:lengthEnd])
	}
	if _, err := l.parseNumber(baseAddressStart, baseAddressEnd); err != nil {
		return l, fmt.Errorf("%w: base address %q", ErrBadLeader, b[baseAddressStart:baseAddressEnd])
	}
	return l, nil
}

func (l Leader) parseNumber(start, end int) (int, error) {
	s := string(l.raw[start:end])
	if !isDigits(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// RecordLength is the logical record length at positions 0-4.
func (l Leader) RecordLength() int {
	n, _ := l.parseNumber(lengthStart, lengthEnd)
	return n
}

// BaseAddress is the base address of data at positions 12-16.
func (l Leader) BaseAddress() int {
	n, _ := l.parseNumber(baseAddressStart, baseAddressEnd)
	return n
}

// SetRecordLength rewrites positions 0-4.
func (l *Leader) SetRecordLength(n int) error {
	if n < 0 || n > maxRecordLength {
		return fmt.Errorf("%w: %d", ErrRecordTooLong, n)
	}
	copy(l.raw[lengthStart:lengthEnd], fmt.Sprintf("%05d", n))
	return nil
}

// SetBaseAddress rewrites positions 12-16.
func (l *Leader) SetBaseAddress(n int) error {
	if n < 0 || n > maxRecordLength {
		return fmt.Errorf("%w: base address %d", ErrRecordTooLong, n)
	}
	copy(l.raw[baseAddressStart:baseAddressEnd], fmt.Sprintf("%05d", n))
	return nil
}

func (l Leader) IsUnicode() bool { return l.raw[codingSchemePos] == codingUnicode }
func (l Leader) IsMARC8() bool   { return l.raw[codingSchemePos] == codingMARC8 }

func (l *Leader) SetUnicode() { l.raw[codingSchemePos] = codingUnicode }
func (l *Leader) SetMARC8()   { l.raw[codingSchemePos] = codingMARC8 }

// At returns the byte at pos.
func (l Leader) At(pos int) (byte, error) {
	if pos < 0 || pos >= LeaderSize {
		return 0, ErrOutOfRange
	}
	return l.raw[pos], nil
}

// Set overwrites the byte at pos.
func (l *Leader) Set(pos int, v byte) error {
	if pos < 0 || pos >= LeaderSize {
		return ErrOutOfRange
	}
	l.raw[pos] = v
	return nil
}

// TestPosition reports whether the byte at pos equals v.
func (l Leader) TestPosition(pos int, v byte) bool {
	b, err := l.At(pos)
	return err == nil && b == v
}

// Bytes returns a copy of the raw leader.
func (l Leader) Bytes() []byte {
	out := make([]byte, LeaderSize)
	copy(out, l.raw[:])
	return out
}

func (l Leader) String() string { return string(l.raw[:]) }

// MRK renders the leader as a mnemonic line.
func (l Leader) MRK() string {
	return "=LDR  " + strings.ReplaceAll(l.String(), " ", string(mnemonicBlank))
}

// blankLeader is the leader template of a new Unicode bibliographic record.
const blankLeader = "00000nam a2200000 a 4500"

// NewLeader returns a leader for a freshly built record. Length and base
// address are filled in by Encode.
func NewLeader() Leader {
	var l Leader
	copy(l.raw[:], blankLeader)
	return l
}

package marc

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a variable field. Valid values are 1 through 999 and the
// text form is always three zero-padded digits.
type Tag uint16

// Well-known tags.
const (
	TagControlNumber Tag = 1   // 001
	TagFixedData     Tag = 8   // 008
	TagSystemNumber  Tag = 35  // 035
	TagTitle         Tag = 245 // 245
	TagElectronic    Tag = 856 // 856

	// firstIndicatorTag is the lowest tag whose content starts with two
	// indicator positions.
	firstIndicatorTag Tag = 10
)

// ParseTag validates a tag name such as "035".
func ParseTag(name string) (Tag, error) {
	s := strings.TrimSpace(name)
	if s == "" || !isDigits(s) {
		return 0, fmt.Errorf("%w: %q must be a value between 001 and 999", ErrInvalidTag, name)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 999 {
		return 0, fmt.Errorf("%w: %q must be a value between 001 and 999", ErrInvalidTag, name)
	}
	return Tag(n), nil
}

// MustTag is like ParseTag but panics on error. Meant for constants and tests.
func MustTag(name string) Tag {
	t, err := ParseTag(name)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) String() string {
	return fmt.Sprintf("%03d", uint16(t))
}

// Bytes returns the three-byte wire form.
func (t Tag) Bytes() []byte {
	return []byte(t.String())
}

// Compare orders tags numerically.
func (t Tag) Compare(o Tag) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	}
	return 0
}

// HasIndicators reports whether fields with this tag carry indicators.
func (t Tag) HasIndicators() bool {
	return t >= firstIndicatorTag
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

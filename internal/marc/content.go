package marc

import (
	"strings"
)

// Wire delimiters.
const (
	FieldTerminator    byte = 0x1E
	RecordTerminator   byte = 0x1D
	SubfieldDelimiter  byte = 0x1F
	SubfieldMarker     byte = '$'
	blankIndicator     byte = ' '
	mnemonicBlank      byte = '\\'
	multilingualCutoff byte = 0x80
)

// Content is the payload of one variable field. Subfields are introduced by
// '$' in memory; the wire form uses 0x1F. Content never holds 0x1E or 0x1F.
type Content struct {
	text string
}

// NewContent builds content from in-memory text. Wire delimiters that slip
// in are normalised the same way decoding does.
func NewContent(text string) Content {
	return Content{text: normalize(text)}
}

// ContentFromWire converts raw field bytes (without the trailing terminator)
// into content.
func ContentFromWire(raw []byte) Content {
	return Content{text: normalize(string(raw))}
}

func normalize(s string) string {
	if strings.IndexByte(s, FieldTerminator) < 0 && strings.IndexByte(s, SubfieldDelimiter) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case FieldTerminator:
		case SubfieldDelimiter:
			b.WriteByte(SubfieldMarker)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Wire returns the content bytes with '$' translated to 0x1F.
func (c Content) Wire() []byte {
	out := []byte(c.text)
	for i, b := range out {
		if b == SubfieldMarker {
			out[i] = SubfieldDelimiter
		}
	}
	return out
}

func (c Content) String() string { return c.text }

// Len is the length of the payload in bytes.
func (c Content) Len() int { return len(c.text) }

// At returns the byte at pos.
func (c Content) At(pos int) (byte, error) {
	if pos < 0 || pos >= len(c.text) {
		return 0, ErrOutOfRange
	}
	return c.text[pos], nil
}

// WithByte returns a copy with the byte at pos replaced.
func (c Content) WithByte(pos int, v byte) (Content, error) {
	if pos < 0 || pos >= len(c.text) {
		return c, ErrOutOfRange
	}
	b := []byte(c.text)
	b[pos] = v
	return NewContent(string(b)), nil
}

// Append returns the content with s concatenated at the end.
func (c Content) Append(s string) Content { return NewContent(c.text + s) }

// Prepend returns the content with s concatenated at the front.
func (c Content) Prepend(s string) Content { return NewContent(s + c.text) }

// Contains reports whether s occurs anywhere in the payload.
func (c Content) Contains(s string) bool { return strings.Contains(c.text, s) }

// Indicator1 returns the first indicator, or a blank for short content.
func (c Content) Indicator1() byte { return c.indicator(0) }

// Indicator2 returns the second indicator, or a blank for short content.
func (c Content) Indicator2() byte { return c.indicator(1) }

func (c Content) indicator(pos int) byte {
	if pos >= len(c.text) {
		return blankIndicator
	}
	return c.text[pos]
}

// TestIndicator compares indicator which (1 or 2) with value.
func (c Content) TestIndicator(which int, value byte) bool {
	switch which {
	case 1:
		return c.Indicator1() == value
	case 2:
		return c.Indicator2() == value
	}
	return false
}

// Subfields returns every subfield with the given code, in order.
func (c Content) Subfields(code byte) []string {
	var out []string
	parts := strings.Split(c.text, string(SubfieldMarker))
	for _, p := range parts[1:] {
		if len(p) > 0 && p[0] == code {
			out = append(out, p[1:])
		}
	}
	return out
}

// Subfield returns the first subfield with the given code.
func (c Content) Subfield(code byte) (string, bool) {
	subs := c.Subfields(code)
	if len(subs) == 0 {
		return "", false
	}
	return subs[0], true
}

// ReplaceSubfield returns the content with every subfield of the given code
// rewritten by fn. The second result is false when nothing changed.
func (c Content) ReplaceSubfield(code byte, fn func(string) string) (Content, bool) {
	parts := strings.Split(c.text, string(SubfieldMarker))
	changed := false
	for i := 1; i < len(parts); i++ {
		p := parts[i]
		if len(p) == 0 || p[0] != code {
			continue
		}
		v := fn(p[1:])
		if v != p[1:] {
			parts[i] = string(code) + v
			changed = true
		}
	}
	if !changed {
		return c, false
	}
	return NewContent(strings.Join(parts, string(SubfieldMarker))), true
}

// SubfieldContains reports whether any subfield with the given code
// contains match.
func (c Content) SubfieldContains(match string, code byte) bool {
	for _, s := range c.Subfields(code) {
		if strings.Contains(s, match) {
			return true
		}
	}
	return false
}

// HasMultilingual reports whether the payload holds a byte >= 0x80.
func (c Content) HasMultilingual() bool {
	for i := 0; i < len(c.text); i++ {
		if c.text[i] >= multilingualCutoff {
			return true
		}
	}
	return false
}

// MRK renders the content the way MarcEdit mnemonic files show it. Fixed
// fields have every blank replaced by '\'; other fields only their blank
// indicators.
func (c Content) MRK(tag Tag) string {
	if !tag.HasIndicators() {
		return strings.ReplaceAll(c.text, " ", string(mnemonicBlank))
	}
	b := []byte(c.text)
	for i := 0; i < 2 && i < len(b); i++ {
		if b[i] == blankIndicator {
			b[i] = mnemonicBlank
		}
	}
	return string(b)
}

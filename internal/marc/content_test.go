package marc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{in: "001", want: 1},
		{in: "245", want: 245},
		{in: "999", want: 999},
		{in: " 035 ", want: 35},
		{in: "000", wantErr: true},
		{in: "1000", wantErr: true},
		{in: "LDR", wantErr: true},
		{in: "-01", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTag)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagFormatting(t *testing.T) {
	assert.Equal(t, "008", TagFixedData.String())
	assert.Equal(t, []byte("035"), TagSystemNumber.Bytes())
	assert.False(t, MustTag("009").HasIndicators())
	assert.True(t, MustTag("010").HasIndicators())
	assert.Equal(t, -1, TagFixedData.Compare(TagTitle))
}

func TestContentWireTranslation(t *testing.T) {
	c := ContentFromWire([]byte("10\x1faTitle\x1e\x1fcAuthor"))
	assert.Equal(t, "10$aTitle$cAuthor", c.String())
	assert.Equal(t, []byte("10\x1faTitle\x1fcAuthor"), c.Wire())

	back := ContentFromWire(c.Wire())
	assert.Equal(t, c, back)
}

func TestContentSubfields(t *testing.T) {
	c := NewContent("40$uhttp://a.example$zfirst$uhttp://b.example")

	if diff := cmp.Diff([]string{"http://a.example", "http://b.example"}, c.Subfields('u')); diff != "" {
		t.Errorf("Subfields mismatch (-want +got):\n%s", diff)
	}
	z, ok := c.Subfield('z')
	require.True(t, ok)
	assert.Equal(t, "first", z)
	_, ok = c.Subfield('q')
	assert.False(t, ok)

	assert.True(t, c.SubfieldContains("b.example", 'u'))
	assert.False(t, c.SubfieldContains("b.example", 'z'))

	up, changed := c.ReplaceSubfield('u', strings.ToUpper)
	require.True(t, changed)
	assert.Equal(t, "40$uHTTP://A.EXAMPLE$zfirst$uHTTP://B.EXAMPLE", up.String())

	_, changed = c.ReplaceSubfield('q', strings.ToUpper)
	assert.False(t, changed)
}

func TestContentIndicators(t *testing.T) {
	c := NewContent("1 $aText")
	assert.Equal(t, byte('1'), c.Indicator1())
	assert.Equal(t, byte(' '), c.Indicator2())
	assert.True(t, c.TestIndicator(1, '1'))
	assert.True(t, c.TestIndicator(2, ' '))
	assert.False(t, c.TestIndicator(3, ' '))
	assert.Equal(t, byte(' '), NewContent("").Indicator1())
}

func TestContentPositions(t *testing.T) {
	c := NewContent("abc")
	b, err := c.At(2)
	require.NoError(t, err)
	assert.Equal(t, byte('c'), b)

	_, err = c.At(3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	n, err := c.WithByte(0, 'x')
	require.NoError(t, err)
	assert.Equal(t, "xbc", n.String())
	assert.Equal(t, "abc", c.String())

	_, err = c.WithByte(9, 'x')
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Equal(t, "abcdef", c.Append("def").String())
	assert.Equal(t, "xyzabc", c.Prepend("xyz").String())
}

func TestContentMRK(t *testing.T) {
	tests := []struct {
		tag  Tag
		text string
		want string
	}{
		{TagFixedData, "850101s1985    xx", `850101s1985\\\\xx`},
		{TagTitle, "  $aTwo words", `\\$aTwo words`},
		{TagTitle, "1 $aTitle", `1\$aTitle`},
		{TagTitle, "1", "1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewContent(tt.text).MRK(tt.tag))
	}
}

func TestLeader(t *testing.T) {
	_, err := ParseLeader([]byte("short"))
	assert.ErrorIs(t, err, ErrBadLeader)

	_, err = ParseLeader([]byte("0004xnam a2200037 a 4500"))
	assert.ErrorIs(t, err, ErrBadLeader)

	_, err = ParseLeader([]byte("00042nam a22000x7 a 4500"))
	assert.ErrorIs(t, err, ErrBadLeader)

	l, err := ParseLeader([]byte("00042nam  2200037 a 4500"))
	require.NoError(t, err)
	assert.Equal(t, 42, l.RecordLength())
	assert.Equal(t, 37, l.BaseAddress())
	assert.True(t, l.IsMARC8())
	assert.True(t, l.TestPosition(5, 'n'))
	assert.False(t, l.TestPosition(24, 'n'))

	require.NoError(t, l.Set(5, 'c'))
	assert.Equal(t, "00042cam  2200037 a 4500", l.String())
	assert.ErrorIs(t, l.Set(24, 'c'), ErrOutOfRange)

	assert.ErrorIs(t, l.SetRecordLength(100000), ErrRecordTooLong)
	require.NoError(t, l.SetRecordLength(99999))
	assert.Equal(t, 99999, l.RecordLength())
}

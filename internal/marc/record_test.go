package marc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixed008(lang string) string {
	return strings.Repeat(" ", languageStart) + lang + "  "
}

func sampleRecord() *Record {
	return NewRecord(NewLeader(),
		NewEntry(TagControlNumber, "ocm00012345"),
		NewEntry(TagFixedData, fixed008("eng")),
		NewEntry(TagSystemNumber, "  $a(Sirsi) i12345"),
		NewEntry(TagTitle, "10$aA title /$cSome Author."),
		NewEntry(TagElectronic, "40$uhttp://example.com/a$zOnline"),
	)
}

var contentCmp = cmp.AllowUnexported(Content{})

func TestEncodeMinimalRecord(t *testing.T) {
	r := NewRecord(NewLeader(), NewEntry(TagControlNumber, "abc"))

	got, err := r.Encode()
	require.NoError(t, err)

	want := "00042nam a2200037 a 4500" + "001000400000\x1e" + "abc\x1e\x1d"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 42, r.Leader().RecordLength())
	assert.Equal(t, 37, r.Leader().BaseAddress())
}

func TestRoundTrip(t *testing.T) {
	r := sampleRecord()
	enc, err := r.Encode()
	require.NoError(t, err)

	got, err := DecodeBytes(enc, DecodeOptions{Strict: true})
	require.NoError(t, err)

	if diff := cmp.Diff(r.Entries(), got.Entries(), contentCmp); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, len(enc), got.Leader().RecordLength())
	assert.Equal(t, LeaderSize+len(r.Entries())*directoryEntrySize+1, got.Leader().BaseAddress())

	again, err := got.Encode()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(enc, again), "re-encoding a decoded record must be byte identical")
}

func TestDecodeDirectoryInvariant(t *testing.T) {
	enc, err := sampleRecord().Encode()
	require.NoError(t, err)
	got, err := DecodeBytes(enc, DecodeOptions{Strict: true})
	require.NoError(t, err)

	dir := enc[LeaderSize:got.Leader().BaseAddress()]
	for i, e := range got.Entries() {
		assert.Equal(t, e.Content.Len()+1, e.DataLength())
		entry := string(dir[i*directoryEntrySize : (i+1)*directoryEntrySize])
		assert.Equal(t, e.Tag.String(), entry[:3])
		assert.NotContains(t, e.Content.String(), string(SubfieldDelimiter))
		assert.NotContains(t, e.Content.String(), string(FieldTerminator))
	}
}

func TestDecodeIgnoresStaleNumbers(t *testing.T) {
	enc, err := sampleRecord().Encode()
	require.NoError(t, err)

	// Corrupt the length and offset of the first directory entry.
	copy(enc[LeaderSize+3:LeaderSize+12], "999999999")

	got, err := DecodeBytes(enc, DecodeOptions{Strict: true})
	require.NoError(t, err)
	text, ok := got.FirstFieldText(TagControlNumber)
	require.True(t, ok)
	assert.Equal(t, "ocm00012345", text)
}

func corruptTag(t *testing.T, field int) []byte {
	t.Helper()
	enc, err := sampleRecord().Encode()
	require.NoError(t, err)
	start := LeaderSize + field*directoryEntrySize
	copy(enc[start:start+3], "x5y")
	return enc
}

func TestDecodeStrictRejectsBadTag(t *testing.T) {
	_, err := DecodeBytes(corruptTag(t, 3), DecodeOptions{Strict: true, Index: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTag)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 7, fe.Record)
	assert.Positive(t, fe.Offset)
}

func TestDecodeRelaxedSkipsBadTag(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	got, err := DecodeBytes(corruptTag(t, 3), DecodeOptions{Logger: zap.New(core)})
	require.NoError(t, err)

	want := []Tag{TagControlNumber, TagFixedData, TagSystemNumber, TagElectronic}
	if diff := cmp.Diff(want, got.Tags()); diff != "" {
		t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, got.Skipped())

	entries := logs.FilterMessage("skipping malformed field").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ocm00012345", entries[0].ContextMap()["control_number"])
}

func TestDecodeWithoutDirectoryTerminator(t *testing.T) {
	l := NewLeader()
	_, err := Decode(l, []byte("001000400000"), DecodeOptions{})
	assert.ErrorIs(t, err, ErrBadDirectory)
}

func TestRecordQueries(t *testing.T) {
	r := sampleRecord()

	assert.Equal(t, "ocm00012345", r.ControlNumber())
	assert.Equal(t, "i12345", r.TCN())

	text, ok := r.FirstFieldText(TagTitle)
	require.True(t, ok)
	assert.Equal(t, "10$aA title /$cSome Author.", text)

	_, ok = r.FirstFieldText(MustTag("500"))
	assert.False(t, ok)

	eng, err := r.MatchesLanguage("eng")
	require.NoError(t, err)
	assert.True(t, eng)
	fre, err := r.MatchesLanguage("fre")
	require.NoError(t, err)
	assert.False(t, fre)

	assert.False(t, r.Dirty(), "queries must not mark the record")
}

func TestMatchesLanguageShort008(t *testing.T) {
	r := NewRecord(NewLeader(), NewEntry(TagFixedData, "too short"))
	_, err := r.MatchesLanguage("eng")
	assert.ErrorIs(t, err, ErrOutOfRange)

	r = NewRecord(NewLeader(), NewEntry(TagTitle, "00$aNo 008"))
	_, err = r.MatchesLanguage("eng")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestContainsMultilingual(t *testing.T) {
	tests := []struct {
		name  string
		entry DirectoryEntry
		want  bool
	}{
		{"ascii", NewEntry(TagTitle, "00$aPlain"), false},
		{"high byte in title", NewEntry(TagTitle, "00$aCaf\xc3\xa9"), true},
		{"high byte in 008 ignored", NewEntry(TagFixedData, "\xe9\xe9"), false},
		{"high byte in 035 ignored", NewEntry(TagSystemNumber, "  $a\xe9"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(NewLeader(), NewEntry(TagControlNumber, "1"), tt.entry)
			assert.Equal(t, tt.want, r.ContainsMultilingual())
		})
	}
}

func TestAddFieldSortsStable(t *testing.T) {
	r := sampleRecord()
	r.AddField(MustTag("500"), "  $aFirst note")
	r.AddField(MustTag("500"), "  $aSecond note")
	r.AddField(MustTag("020"), "  $a0123456789")

	want := []Tag{1, 8, 20, 35, 245, 500, 500, 856}
	if diff := cmp.Diff(want, r.Tags()); diff != "" {
		t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
	}
	notes := r.AllFieldBytes(MustTag("500"))
	require.Len(t, notes, 2)
	assert.Equal(t, "  $aFirst note", string(notes[0]))
	assert.Equal(t, "  $aSecond note", string(notes[1]))
	assert.True(t, r.Dirty())
}

func TestRemoveFields(t *testing.T) {
	r := sampleRecord()
	r.AddField(MustTag("500"), "  $akeep me")
	r.AddField(MustTag("500"), "  $adrop me")
	r.Untouch()

	assert.False(t, r.RemoveFields(MustTag("600"), ""))
	assert.False(t, r.Dirty())

	assert.True(t, r.RemoveFields(MustTag("500"), "drop"))
	assert.Len(t, r.Fields(MustTag("500")), 1)
	assert.True(t, r.Dirty())

	assert.True(t, r.RemoveFields(MustTag("500"), ""))
	assert.False(t, r.HasField(MustTag("500")))
}

func TestSetFirstNFieldBytes(t *testing.T) {
	r := sampleRecord()
	r.AddField(MustTag("500"), "  $aone")
	r.AddField(MustTag("500"), "  $atwo")
	r.Untouch()

	assert.False(t, r.SetFirstNFieldBytes(MustTag("600"), [][]byte{[]byte("x")}))
	assert.True(t, r.SetFirstNFieldBytes(MustTag("500"), [][]byte{[]byte("  \x1faONE")}))

	notes := r.AllFieldBytes(MustTag("500"))
	require.Len(t, notes, 2)
	assert.Equal(t, "  $aONE", string(notes[0]))
	assert.Equal(t, "  $atwo", string(notes[1]))
	assert.True(t, r.Dirty())
}

func TestCodingSchemeFlags(t *testing.T) {
	r := sampleRecord()
	assert.True(t, r.Leader().IsUnicode())

	r.SetMARC8Flag()
	assert.True(t, r.Leader().IsMARC8())
	assert.True(t, r.Dirty())

	r.SetUnicodeFlag()
	assert.True(t, r.Leader().IsUnicode())
}

func TestRecordString(t *testing.T) {
	r := NewRecord(NewLeader(),
		NewEntry(TagControlNumber, "ocm 1"),
		NewEntry(TagTitle, " 0$aTitle"),
	)
	want := "=LDR  00000nam\\a2200000\\a\\4500\n" +
		"=001  ocm\\1\n" +
		"=245  \\0$aTitle\n"
	if diff := cmp.Diff(want, r.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTooLong(t *testing.T) {
	r := NewRecord(NewLeader(), NewEntry(MustTag("500"), strings.Repeat("x", 100000)))
	_, err := r.Encode()
	assert.ErrorIs(t, err, ErrRecordTooLong)
}

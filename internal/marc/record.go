package marc

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ignoredMultilingualTags hold coded data rather than free text.
var ignoredMultilingualTags = map[Tag]bool{
	TagFixedData:    true,
	TagSystemNumber: true,
}

// languagePosition is the start of the language code in field 008.
const (
	languageStart = 35
	languageEnd   = 38
)

// Record is one MARC21 record: a leader plus its ordered variable fields.
// Every successful mutator sets the dirty flag.
type Record struct {
	leader  Leader
	entries []DirectoryEntry
	dirty   bool
	skipped int
}

// NewRecord builds a record from a leader and entries in the given order.
func NewRecord(leader Leader, entries ...DirectoryEntry) *Record {
	return &Record{leader: leader, entries: slices.Clone(entries)}
}

// DecodeOptions control Decode.
type DecodeOptions struct {
	// Strict turns a malformed field into an error instead of a skipped field.
	Strict bool
	// Index is the record's position in its stream, used in errors and logs.
	Index  int
	Logger *zap.Logger
}

type skippedField struct {
	offset int
	err    error
}

// Decode builds a record from a parsed leader and the bytes that follow it.
// Fields are found by walking field terminators; the encoded lengths and
// offsets of the directory are not used for slicing.
func Decode(leader Leader, body []byte, opts DecodeOptions) (*Record, error) {
	r := &Record{leader: leader}

	dirEnd := bytes.IndexByte(body, FieldTerminator)
	if dirEnd < 0 {
		return nil, &FormatError{Record: opts.Index, Offset: 0, Err: fmt.Errorf("%w: no field terminator", ErrBadDirectory)}
	}
	directory := body[:dirEnd]

	var skipped []skippedField
	if len(directory)%directoryEntrySize != 0 {
		err := fmt.Errorf("%w: length %d is not a multiple of %d", ErrBadDirectory, len(directory), directoryEntrySize)
		if opts.Strict {
			return nil, &FormatError{Record: opts.Index, Offset: 0, Err: err}
		}
		skipped = append(skipped, skippedField{offset: 0, err: err})
	}
	count := len(directory) / directoryEntrySize

	offset := dirEnd + 1
	for i := 0; offset < len(body); i++ {
		end := bytes.IndexByte(body[offset:], FieldTerminator)
		var payload []byte
		next := len(body)
		if end < 0 {
			payload = bytes.TrimRight(body[offset:], string(RecordTerminator))
			if len(payload) == 0 {
				break
			}
		} else {
			payload = body[offset : offset+end]
			next = offset + end + 1
		}

		tag, err := entryTag(directory, i, count)
		if err != nil {
			if opts.Strict {
				return nil, &FormatError{Record: opts.Index, Offset: offset, Err: err}
			}
			skipped = append(skipped, skippedField{offset: offset, err: err})
			offset = next
			continue
		}
		r.entries = append(r.entries, DirectoryEntry{Tag: tag, Content: ContentFromWire(payload)})
		offset = next
	}

	if len(skipped) > 0 {
		r.skipped = len(skipped)
		logger := opts.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		for _, s := range skipped {
			logger.Warn("skipping malformed field",
				zap.Int("record", opts.Index),
				zap.Int("offset", s.offset),
				zap.String("control_number", r.ControlNumber()),
				zap.String("tcn", r.TCN()),
				zap.Error(s.err))
		}
	}
	return r, nil
}

func entryTag(directory []byte, i, count int) (Tag, error) {
	if i >= count {
		return 0, fmt.Errorf("%w: field %d has no directory entry", ErrBadDirectory, i)
	}
	start := i * directoryEntrySize
	return ParseTag(string(directory[start : start+entryTagWidth]))
}

// Leader returns a copy of the record's leader.
func (r *Record) Leader() Leader { return r.leader }

// Entries returns a copy of the entries in their current order.
func (r *Record) Entries() []DirectoryEntry { return slices.Clone(r.entries) }

// Skipped is the number of fields dropped by a relaxed decode.
func (r *Record) Skipped() int { return r.skipped }

// Fields returns the content of every field with the tag, in order.
func (r *Record) Fields(tag Tag) []Content {
	var out []Content
	for _, e := range r.entries {
		if e.Tag == tag {
			out = append(out, e.Content)
		}
	}
	return out
}

// HasField reports whether any field carries the tag.
func (r *Record) HasField(tag Tag) bool {
	return slices.ContainsFunc(r.entries, func(e DirectoryEntry) bool { return e.Tag == tag })
}

// FirstFieldText returns the text of the first field with the tag.
func (r *Record) FirstFieldText(tag Tag) (string, bool) {
	for _, e := range r.entries {
		if e.Tag == tag {
			return e.Content.String(), true
		}
	}
	return "", false
}

// AllFieldBytes returns the in-memory bytes of every field with the tag.
func (r *Record) AllFieldBytes(tag Tag) [][]byte {
	var out [][]byte
	for _, e := range r.entries {
		if e.Tag == tag {
			out = append(out, []byte(e.Content.String()))
		}
	}
	return out
}

// SetFirstNFieldBytes replaces fields with the tag, in encounter order, with
// the given replacements. Extra fields keep their content; extra
// replacements are ignored. It reports false if the tag is absent.
func (r *Record) SetFirstNFieldBytes(tag Tag, replacements [][]byte) bool {
	found := false
	n := 0
	for i := range r.entries {
		if r.entries[i].Tag != tag {
			continue
		}
		found = true
		if n >= len(replacements) {
			break
		}
		r.entries[i].Content = ContentFromWire(replacements[n])
		n++
	}
	if n > 0 {
		r.dirty = true
	}
	return found
}

// UpdateFields calls fn for every field with the tag and stores the returned
// content when fn reports a change. found is false if the tag is absent.
func (r *Record) UpdateFields(tag Tag, fn func(Content) (Content, bool)) (found bool, changed int) {
	for i := range r.entries {
		if r.entries[i].Tag != tag {
			continue
		}
		found = true
		if c, ok := fn(r.entries[i].Content); ok {
			r.entries[i].Content = c
			changed++
		}
	}
	if changed > 0 {
		r.dirty = true
	}
	return found, changed
}

// AddField appends a field and re-sorts the entries by tag. Fields with
// equal tags keep their relative order.
func (r *Record) AddField(tag Tag, text string) {
	r.entries = append(r.entries, NewEntry(tag, text))
	slices.SortStableFunc(r.entries, func(a, b DirectoryEntry) int { return a.Tag.Compare(b.Tag) })
	r.dirty = true
}

// RemoveFields removes every field with the tag, or only those containing
// match when match is non-empty. It reports false if the tag is absent.
func (r *Record) RemoveFields(tag Tag, match string) bool {
	if !r.HasField(tag) {
		return false
	}
	before := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e DirectoryEntry) bool {
		return e.Tag == tag && (match == "" || e.Content.Contains(match))
	})
	if len(r.entries) != before {
		r.dirty = true
	}
	return true
}

// Tags lists the tag of every field in order.
func (r *Record) Tags() []Tag {
	out := make([]Tag, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Tag
	}
	return out
}

// ControlNumber is the text of field 001.
func (r *Record) ControlNumber() string {
	s, _ := r.FirstFieldText(TagControlNumber)
	return strings.TrimSpace(s)
}

// TCN is the title control number held in field 035, with any "(Source)"
// prefix removed. Empty when the record has no 035.
func (r *Record) TCN() string {
	text, ok := r.FirstFieldText(TagSystemNumber)
	if !ok {
		return ""
	}
	c := NewContent(text)
	if a, ok := c.Subfield('a'); ok {
		text = a
	}
	text = strings.TrimSpace(text)
	if i := strings.LastIndexByte(text, ' '); i >= 0 {
		text = text[i+1:]
	}
	return text
}

// MatchesLanguage compares the language code in 008/35-37 with code.
func (r *Record) MatchesLanguage(code string) (bool, error) {
	text, ok := r.FirstFieldText(TagFixedData)
	if !ok {
		return false, fmt.Errorf("%w: record %s has no 008 field", ErrOutOfRange, r.ControlNumber())
	}
	if len(text) < languageEnd {
		return false, fmt.Errorf("%w: 008 of record %s is %d bytes, language code needs %d", ErrOutOfRange, r.ControlNumber(), len(text), languageEnd)
	}
	return text[languageStart:languageEnd] == code, nil
}

// ContainsMultilingual reports whether any free-text field holds a byte
// >= 0x80. Fields 008 and 035 are not checked.
func (r *Record) ContainsMultilingual() bool {
	for _, e := range r.entries {
		if ignoredMultilingualTags[e.Tag] {
			continue
		}
		if e.Content.HasMultilingual() {
			return true
		}
	}
	return false
}

// SetUnicodeFlag marks the record as UCS/Unicode in leader position 9.
func (r *Record) SetUnicodeFlag() {
	r.leader.SetUnicode()
	r.dirty = true
}

// SetMARC8Flag marks the record as MARC-8 in leader position 9.
func (r *Record) SetMARC8Flag() {
	r.leader.SetMARC8()
	r.dirty = true
}

// SetLeaderByte overwrites one leader position.
func (r *Record) SetLeaderByte(pos int, v byte) error {
	if err := r.leader.Set(pos, v); err != nil {
		return err
	}
	r.dirty = true
	return nil
}

// Touch marks the record as selected for output.
func (r *Record) Touch() { r.dirty = true }

// Untouch clears the dirty flag.
func (r *Record) Untouch() { r.dirty = false }

// Dirty reports whether the record was mutated or selected.
func (r *Record) Dirty() bool { return r.dirty }

// Encode serialises the record, rewriting the leader's record length and
// base address.
func (r *Record) Encode() ([]byte, error) {
	dir := make([]byte, 0, len(r.entries)*directoryEntrySize+1)
	var payload []byte
	offset := 0
	for _, e := range r.entries {
		dir = appendDirectoryEntry(dir, e, offset)
		offset += e.DataLength()
		payload = append(payload, e.Content.Wire()...)
		payload = append(payload, FieldTerminator)
	}
	dir = append(dir, FieldTerminator)
	payload = append(payload, RecordTerminator)

	leader := r.leader
	if err := leader.SetRecordLength(LeaderSize + len(dir) + len(payload)); err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ControlNumber(), err)
	}
	if err := leader.SetBaseAddress(LeaderSize + len(dir)); err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ControlNumber(), err)
	}
	r.leader = leader

	out := make([]byte, 0, LeaderSize+len(dir)+len(payload))
	out = append(out, leader.raw[:]...)
	out = append(out, dir...)
	out = append(out, payload...)
	return out, nil
}

// WriteTo writes the encoded record to w.
func (r *Record) WriteTo(w io.Writer) (int64, error) {
	b, err := r.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// String renders the record in MRK form, one line per field, leader first.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.leader.MRK())
	for _, e := range r.entries {
		b.WriteByte('\n')
		b.WriteString(e.String())
	}
	b.WriteByte('\n')
	return b.String()
}

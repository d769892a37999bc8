package dsl

import (
	"fmt"
	"regexp"
	"strings"

	"marcer/internal/marc"
)

// Instruction is one parsed statement. The set of implementations is closed;
// the interpreter dispatches on the concrete type.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// SubjectKind says what a statement operates on.
type SubjectKind int

const (
	SubjectTag SubjectKind = iota
	SubjectRecord
	SubjectLeader
)

// Subject is the first token of a statement.
type Subject struct {
	Kind SubjectKind
	Tag  marc.Tag // valid when Kind is SubjectTag
}

// TagSubject is a convenience constructor.
func TagSubject(t marc.Tag) Subject { return Subject{Kind: SubjectTag, Tag: t} }

func (s Subject) String() string {
	switch s.Kind {
	case SubjectRecord:
		return "record"
	case SubjectLeader:
		return "LDR"
	}
	return s.Tag.String()
}

// Scope of a write.
type Scope int

const (
	// ScopeRecord flushes after every record.
	ScopeRecord Scope = iota
	// ScopeRecords flushes once, after all records were processed.
	ScopeRecords
)

func (s Scope) String() string {
	if s == ScopeRecords {
		return "records"
	}
	return "record"
}

// Format of a write.
type Format int

const (
	FormatBinary Format = iota
	FormatText
	FormatSQLite
)

var formatNames = map[Format]string{
	FormatBinary: "binary",
	FormatText:   "text",
	FormatSQLite: "sqlite",
}

func (f Format) String() string { return formatNames[f] }

func parseFormat(s string) (Format, bool) {
	for f, name := range formatNames {
		if strings.EqualFold(name, s) {
			return f, true
		}
	}
	return 0, false
}

// SetPosition overwrites one byte of the leader or of every matching field.
type SetPosition struct {
	Subject  Subject
	Position int
	Value    byte
}

// AddField appends a new field and re-sorts the record.
type AddField struct {
	Tag  marc.Tag
	Text string
}

// DeleteField removes fields with a tag, or only those containing Match.
type DeleteField struct {
	Tag   marc.Tag
	Match string
}

// AppendOrPrepend concatenates Text to every matching field.
type AppendOrPrepend struct {
	Tag     marc.Tag
	Text    string
	Prepend bool
}

// Print writes the record, the leader or the matching fields to stdout.
type Print struct {
	Subject Subject
}

// LanguageFilter selects records whose 008 language code equals Language.
type LanguageFilter struct {
	Language string
}

// ConditionalOnContent runs Then when Pattern matches anywhere in the
// subject, Else otherwise.
type ConditionalOnContent struct {
	Subject Subject
	Pattern *regexp.Regexp
	Then    []Instruction
	Else    []Instruction
}

// ConditionalOnPosition runs Then when the byte at Position equals Value.
type ConditionalOnPosition struct {
	Subject  Subject
	Position int
	Value    byte
	Then     []Instruction
	Else     []Instruction
}

// VariableAssign sets a run switch or a named variable. It takes effect
// when parsed.
type VariableAssign struct {
	Name  string
	Value string
}

// URLValidityTest fetches the $u URLs of matching fields and passes when
// Phrase is absent from every page.
type URLValidityTest struct {
	Tag    marc.Tag
	Phrase string
}

// WriteOutput buffers records and writes them to Path.
type WriteOutput struct {
	Scope  Scope
	Path   string
	Format Format
}

// Touch selects the record for gated output.
type Touch struct{}

// URLDecode percent-decodes one subfield of matching fields.
type URLDecode struct {
	Tag      marc.Tag
	Subfield byte
}

func (*SetPosition) instruction()           {}
func (*AddField) instruction()              {}
func (*DeleteField) instruction()           {}
func (*AppendOrPrepend) instruction()       {}
func (*Print) instruction()                 {}
func (*LanguageFilter) instruction()        {}
func (*ConditionalOnContent) instruction()  {}
func (*ConditionalOnPosition) instruction() {}
func (*VariableAssign) instruction()        {}
func (*URLValidityTest) instruction()       {}
func (*WriteOutput) instruction()           {}
func (*Touch) instruction()                 {}
func (*URLDecode) instruction()             {}

func (i *SetPosition) String() string {
	return fmt.Sprintf("%s set %d = %q", i.Subject, i.Position, i.Value)
}

func (i *AddField) String() string { return fmt.Sprintf("%s add %s", i.Tag, i.Text) }

func (i *DeleteField) String() string {
	if i.Match == "" {
		return fmt.Sprintf("%s delete", i.Tag)
	}
	return fmt.Sprintf("%s delete matching %s", i.Tag, i.Match)
}

func (i *AppendOrPrepend) String() string {
	verb := "append"
	if i.Prepend {
		verb = "pre-pend"
	}
	return fmt.Sprintf("%s %s %s", i.Tag, verb, i.Text)
}

func (i *Print) String() string          { return fmt.Sprintf("%s print", i.Subject) }
func (i *LanguageFilter) String() string { return "filter language " + i.Language }

func (i *ConditionalOnContent) String() string {
	return fmt.Sprintf("%s if content == %q then%s", i.Subject, i.Pattern.String(), branches(i.Then, i.Else))
}

func (i *ConditionalOnPosition) String() string {
	return fmt.Sprintf("%s if %d == %q then%s", i.Subject, i.Position, i.Value, branches(i.Then, i.Else))
}

func branches(then, els []Instruction) string {
	var b strings.Builder
	b.WriteByte(' ')
	b.WriteString(joinInstructions(then))
	if len(els) > 0 {
		b.WriteString(" else ")
		b.WriteString(joinInstructions(els))
	}
	return b.String()
}

func joinInstructions(list []Instruction) string {
	parts := make([]string, len(list))
	for i, in := range list {
		parts[i] = in.String()
	}
	return strings.Join(parts, "; ")
}

func (i *VariableAssign) String() string  { return fmt.Sprintf("var %s = %s", i.Name, i.Value) }
func (i *URLValidityTest) String() string { return fmt.Sprintf("%s test url %q", i.Tag, i.Phrase) }

func (i *WriteOutput) String() string {
	return fmt.Sprintf("%s write %s as %s", i.Scope, i.Path, i.Format)
}

func (*Touch) String() string { return "record touch" }

func (i *URLDecode) String() string {
	return fmt.Sprintf("%s decode subfield %c", i.Tag, i.Subfield)
}

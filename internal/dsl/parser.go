package dsl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"marcer/internal/marc"
)

// Assigner receives var statements as they are parsed, so that switches
// such as strict or marc_file apply before any record is read.
type Assigner interface {
	Assign(name, value string) error
}

// Parser turns instruction text into Instructions.
type Parser struct {
	env    Assigner
	logger *zap.Logger
}

// NewParser returns a parser. env may be nil, in which case var statements
// are parsed but not applied.
func NewParser(env Assigner, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{env: env, logger: logger}
}

// ParseFile parses the instruction file at path.
func (p *Parser) ParseFile(path string) ([]Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instructions: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads instructions line by line. The first syntax error stops the
// parse and carries its line number.
func (p *Parser) Parse(r io.Reader) ([]Instruction, error) {
	var program []Instruction
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		list, err := p.ParseLine(sc.Text())
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				se.Line = line
			}
			return nil, err
		}
		if len(list) > 0 {
			p.logger.Debug("parsed instruction line",
				zap.Int("line", line),
				zap.Int("statements", len(list)))
		}
		program = append(program, list...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	return program, nil
}

// ParseLine parses one line holding one statement. A ';' outside the
// clauses of a conditional is ordinary text. Blank and comment lines yield
// nothing.
func (p *Parser) ParseLine(line string) ([]Instruction, error) {
	c := &cursor{toks: Lex(line)}
	if c.done() {
		return nil, nil
	}
	in, err := p.statement(c, false)
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, syntaxErrorf("unexpected %q after %q", c.peek().Text, in.String())
	}
	return []Instruction{in}, nil
}

// cursor walks an immutable token slice.
type cursor struct {
	toks []Token
	pos  int
}

func (c *cursor) done() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() Token {
	if c.done() {
		return Token{}
	}
	return c.toks[c.pos]
}

func (c *cursor) next() (Token, bool) {
	if c.done() {
		return Token{}, false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

// atClauseEnd reports whether a clause stops here: end of line, or a ';'
// or unquoted else inside a conditional.
func (c *cursor) atClauseEnd(nested bool) bool {
	if c.done() {
		return true
	}
	t := c.peek()
	return nested && (t.Kind == Separator || t.IsWord("else"))
}

func (c *cursor) expect(word string) error {
	t, ok := c.next()
	if !ok {
		return syntaxErrorf("expected %q, found end of line", word)
	}
	if !t.IsWord(word) {
		return syntaxErrorf("expected %q, found %q", word, t.Text)
	}
	return nil
}

func (c *cursor) operand(what string) (Token, error) {
	t, ok := c.next()
	if !ok || t.Kind == Separator {
		return Token{}, syntaxErrorf("missing %s", what)
	}
	return t, nil
}

// rest joins the remaining operand values of a clause. Tokens that were
// apart in the source are joined with a single space.
func (c *cursor) rest(nested bool) string {
	var b strings.Builder
	for !c.atClauseEnd(nested) {
		t, _ := c.next()
		if b.Len() > 0 && !t.Joined {
			b.WriteByte(' ')
		}
		b.WriteString(t.Value())
	}
	return b.String()
}

// statements parses the ';'-separated list of a conditional clause. The
// list stops at an unquoted else.
func (p *Parser) statements(c *cursor) ([]Instruction, error) {
	var list []Instruction
	for {
		if c.done() || c.peek().IsWord("else") {
			break
		}
		if c.peek().Kind == Separator {
			c.next()
			continue
		}
		in, err := p.statement(c, true)
		if err != nil {
			return nil, err
		}
		list = append(list, in)
		if c.done() || c.peek().IsWord("else") {
			break
		}
		if c.peek().Kind != Separator {
			return nil, syntaxErrorf("unexpected %q after %q", c.peek().Text, in.String())
		}
	}
	return list, nil
}

func (p *Parser) statement(c *cursor, nested bool) (Instruction, error) {
	first, _ := c.next()
	switch {
	case first.IsWord("var"):
		return p.variable(c, nested)
	case first.IsWord("filter"):
		if err := c.expect("language"); err != nil {
			return nil, err
		}
		return languageFilter(c, nested)
	case first.IsWord("language"):
		if err := c.expect("filter"); err != nil {
			return nil, err
		}
		return languageFilter(c, nested)
	}

	verbTok, ok := c.next()
	if !ok || verbTok.Kind != Word {
		return nil, syntaxErrorf("statement %q has no verb", first.Text)
	}
	verb := strings.ToLower(verbTok.Text)

	if verb == "var" {
		return p.variable(c, nested)
	}
	if verb == "write" {
		return writeOutput(first, c, nested)
	}

	subj, err := parseSubject(first)
	if err != nil {
		return nil, err
	}

	switch verb {
	case "set":
		return setPosition(subj, c)
	case "if":
		return p.conditional(subj, c)
	case "print":
		return &Print{Subject: subj}, nil
	case "append", "pre-pend", "prepend":
		tag, err := requireTag(subj, verb)
		if err != nil {
			return nil, err
		}
		text := c.rest(nested)
		if text == "" {
			return nil, syntaxErrorf("%s needs text", verb)
		}
		return &AppendOrPrepend{Tag: tag, Text: text, Prepend: verb != "append"}, nil
	case "add":
		tag, err := requireTag(subj, verb)
		if err != nil {
			return nil, err
		}
		text := c.rest(nested)
		if text == "" {
			return nil, syntaxErrorf("add needs field text")
		}
		return &AddField{Tag: tag, Text: text}, nil
	case "delete":
		tag, err := requireTag(subj, verb)
		if err != nil {
			return nil, err
		}
		in := &DeleteField{Tag: tag}
		if c.atClauseEnd(nested) {
			return in, nil
		}
		if err := c.expect("matching"); err != nil {
			return nil, err
		}
		in.Match = c.rest(nested)
		if in.Match == "" {
			return nil, syntaxErrorf("delete matching needs text")
		}
		return in, nil
	case "touch":
		if subj.Kind != SubjectRecord {
			return nil, syntaxErrorf("touch applies to record, not %s", subj)
		}
		return &Touch{}, nil
	case "test":
		tag, err := requireTag(subj, verb)
		if err != nil {
			return nil, err
		}
		if err := c.expect("url"); err != nil {
			return nil, err
		}
		phrase := c.rest(nested)
		if phrase == "" {
			return nil, syntaxErrorf("test url needs a phrase")
		}
		return &URLValidityTest{Tag: tag, Phrase: phrase}, nil
	case "decode":
		tag, err := requireTag(subj, verb)
		if err != nil {
			return nil, err
		}
		if err := c.expect("subfield"); err != nil {
			return nil, err
		}
		code, err := c.operand("subfield code")
		if err != nil {
			return nil, err
		}
		b, err := singleByte(code, "subfield code")
		if err != nil {
			return nil, err
		}
		return &URLDecode{Tag: tag, Subfield: b}, nil
	}
	return nil, syntaxErrorf("unknown verb %q", verbTok.Text)
}

func parseSubject(t Token) (Subject, error) {
	switch {
	case t.IsWord("record"), t.IsWord("records"):
		return Subject{Kind: SubjectRecord}, nil
	case t.IsWord("leader"), t.IsWord("LDR"):
		return Subject{Kind: SubjectLeader}, nil
	}
	tag, err := marc.ParseTag(t.Value())
	if err != nil {
		return Subject{}, syntaxErrorf("bad subject %q: %v", t.Text, err)
	}
	return TagSubject(tag), nil
}

func requireTag(s Subject, verb string) (marc.Tag, error) {
	if s.Kind != SubjectTag {
		return 0, syntaxErrorf("%s needs a tag, not %s", verb, s)
	}
	return s.Tag, nil
}

func singleByte(t Token, what string) (byte, error) {
	v := t.Value()
	if len(v) != 1 {
		return 0, syntaxErrorf("%s must be a single character, got %q", what, t.Text)
	}
	return v[0], nil
}

func position(t Token, s Subject) (int, error) {
	n, err := strconv.Atoi(t.Value())
	if err != nil || n < 0 {
		return 0, syntaxErrorf("bad position %q", t.Text)
	}
	if s.Kind == SubjectLeader && n >= marc.LeaderSize {
		return 0, syntaxErrorf("leader position %d is past the end of the leader", n)
	}
	return n, nil
}

// setPosition parses "<tag|LDR> set <pos> = <char>".
func setPosition(s Subject, c *cursor) (Instruction, error) {
	if s.Kind == SubjectRecord {
		return nil, syntaxErrorf("set needs a tag or LDR")
	}
	pt, err := c.operand("position")
	if err != nil {
		return nil, err
	}
	pos, err := position(pt, s)
	if err != nil {
		return nil, err
	}
	if err := c.expect("="); err != nil {
		return nil, err
	}
	vt, err := c.operand("character")
	if err != nil {
		return nil, err
	}
	v, err := singleByte(vt, "value")
	if err != nil {
		return nil, err
	}
	return &SetPosition{Subject: s, Position: pos, Value: v}, nil
}

// conditional parses the part after "if". Clauses are parsed with the
// statement parser, so a nested if takes everything up to the end of the
// enclosing clause and a dangling else binds to the innermost if.
func (p *Parser) conditional(s Subject, c *cursor) (Instruction, error) {
	lhs, err := c.operand("condition")
	if err != nil {
		return nil, err
	}

	var build func(then, els []Instruction) Instruction
	if lhs.IsWord("content") {
		if err := expectEquals(c); err != nil {
			return nil, err
		}
		pt, err := c.operand("pattern")
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pt.Value())
		if err != nil {
			return nil, syntaxErrorf("bad pattern %q: %v", pt.Value(), err)
		}
		build = func(then, els []Instruction) Instruction {
			return &ConditionalOnContent{Subject: s, Pattern: re, Then: then, Else: els}
		}
	} else {
		if s.Kind == SubjectRecord {
			return nil, syntaxErrorf("position test needs a tag or LDR")
		}
		pos, err := position(lhs, s)
		if err != nil {
			return nil, err
		}
		if err := expectEquals(c); err != nil {
			return nil, err
		}
		vt, err := c.operand("character")
		if err != nil {
			return nil, err
		}
		v, err := singleByte(vt, "value")
		if err != nil {
			return nil, err
		}
		build = func(then, els []Instruction) Instruction {
			return &ConditionalOnPosition{Subject: s, Position: pos, Value: v, Then: then, Else: els}
		}
	}

	if err := c.expect("then"); err != nil {
		return nil, err
	}
	then, err := p.statements(c)
	if err != nil {
		return nil, err
	}
	var els []Instruction
	if c.peek().IsWord("else") {
		c.next()
		if els, err = p.statements(c); err != nil {
			return nil, err
		}
		if len(els) == 0 {
			return nil, syntaxErrorf("else without statements")
		}
	}
	return build(then, els), nil
}

func expectEquals(c *cursor) error {
	t, ok := c.next()
	if !ok {
		return syntaxErrorf("expected \"==\", found end of line")
	}
	if t.Text != "==" {
		return syntaxErrorf("unsupported operator %q, only == is allowed", t.Text)
	}
	return nil
}

// variable parses "<name> = <value>" and hands it to the Assigner.
func (p *Parser) variable(c *cursor, nested bool) (Instruction, error) {
	nt, err := c.operand("variable name")
	if err != nil {
		return nil, err
	}
	op, ok := c.next()
	if !ok || op.Text != "=" {
		return nil, syntaxErrorf("variable %s: expected \"=\"", nt.Text)
	}
	value := c.rest(nested)
	in := &VariableAssign{Name: nt.Value(), Value: value}
	if p.env != nil {
		if err := p.env.Assign(in.Name, in.Value); err != nil {
			return nil, syntaxErrorf("%s: %v", in, err)
		}
	}
	p.logger.Debug("variable assigned", zap.String("name", in.Name), zap.String("value", in.Value))
	return in, nil
}

func languageFilter(c *cursor, nested bool) (Instruction, error) {
	code := c.rest(nested)
	if code == "" {
		return nil, syntaxErrorf("language filter needs a language code")
	}
	return &LanguageFilter{Language: code}, nil
}

// writeOutput parses "<record|records> write <file> [as <text|binary|sqlite>]".
func writeOutput(subject Token, c *cursor, nested bool) (Instruction, error) {
	in := &WriteOutput{Format: FormatBinary}
	switch {
	case subject.IsWord("record"):
		in.Scope = ScopeRecord
	case subject.IsWord("records"):
		in.Scope = ScopeRecords
	default:
		return nil, syntaxErrorf("write applies to record or records, not %q", subject.Text)
	}
	ft, err := c.operand("file name")
	if err != nil {
		return nil, err
	}
	in.Path = ft.Value()
	if c.atClauseEnd(nested) {
		return in, nil
	}
	if err := c.expect("as"); err != nil {
		return nil, err
	}
	fmtTok, err := c.operand("output format")
	if err != nil {
		return nil, err
	}
	f, ok := parseFormat(fmtTok.Value())
	if !ok {
		return nil, syntaxErrorf("unknown output format %q", fmtTok.Text)
	}
	in.Format = f
	return in, nil
}

package dsl

import "strings"

// TokenKind classifies a lexed token.
type TokenKind int

const (
	// Word is an unquoted run of non-space characters.
	Word TokenKind = iota
	// Quoted is a "..." run; the token text keeps its quotes.
	Quoted
	// Separator is an unquoted ';'. It only separates statements inside
	// the clauses of a conditional.
	Separator
)

// Token is one lexeme of an instruction line.
type Token struct {
	Kind TokenKind
	Text string
	// Joined is set when no whitespace separates the token from the
	// previous one, as in the "x;y" of a URL.
	Joined bool
}

// Value is the token text with surrounding quotes removed.
func (t Token) Value() string {
	if t.Kind != Quoted {
		return t.Text
	}
	s := strings.TrimPrefix(t.Text, `"`)
	if len(s) > 0 && strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1]
	}
	return s
}

// IsWord reports whether t is the unquoted keyword w, ignoring case.
func (t Token) IsWord(w string) bool {
	return t.Kind == Word && strings.EqualFold(t.Text, w)
}

const remark = "REM"

// Lex splits one instruction line into tokens. An unquoted word starting
// with '#', or the word REM, ends the line. An unterminated quote runs to
// the end of the line.
func Lex(line string) []Token {
	var toks []Token
	i, prevEnd := 0, -1
	add := func(kind TokenKind, text string, start int) {
		toks = append(toks, Token{Kind: kind, Text: text, Joined: start == prevEnd})
		prevEnd = start + len(text)
	}
	for i < len(line) {
		c := line[i]
		switch {
		case isSpace(c):
			i++
		case c == '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				add(Quoted, line[i:], i)
				return toks
			}
			add(Quoted, line[i:i+end+2], i)
			i += end + 2
		case c == ';':
			add(Separator, ";", i)
			i++
		default:
			j := i
			for j < len(line) && !isSpace(line[j]) && line[j] != ';' && line[j] != '"' {
				j++
			}
			word := line[i:j]
			if strings.HasPrefix(word, "#") || strings.EqualFold(word, remark) {
				return toks
			}
			add(Word, word, i)
			i = j
		}
	}
	return toks
}

// ReadQuotedTokens returns the token texts of a line, quoted runs intact.
func ReadQuotedTokens(line string) []string {
	toks := Lex(line)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
}

package lex

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind tags one lexed token.
type Kind uint8

const (
	Atom Kind = iota
	String
	LParen
	RParen
	LBracket
	RBracket
	Comma
	Equals
	ColonColon
)

// Token is one lexed unit of a protocol line. Text holds the decoded
// content for String tokens and the raw run for Atom tokens.
type Token struct {
	Kind Kind
	Text string
	Pos  int
}

// Error reports a malformed token stream with its byte offset.
type Error struct {
	Pos    int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex: offset %d: %s", e.Pos, e.Reason)
}

func errAt(pos int, format string, args ...any) *Error {
	return &Error{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

const punctuation = `()[],=:"`

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func isAtomByte(b byte) bool {
	if isSpace(b) || b < 0x20 || b == 0x7f || b == '\\' {
		return false
	}
	return !strings.ContainsRune(punctuation, rune(b))
}

// Line splits one protocol line (already stripped of its terminator) into
// tokens. The input must be UTF-8; control bytes must arrive escaped inside
// quoted strings and are invalid everywhere else.
func Line(line string) ([]Token, error) {
	if !utf8.ValidString(line) {
		return nil, errAt(0, "line is not valid UTF-8")
	}

	var tokens []Token
	for i := 0; i < len(line); {
		b := line[i]
		switch {
		case isSpace(b):
			i++
		case b == '"':
			text, next, err := scanString(line, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: String, Text: text, Pos: i})
			i = next
		case b == '(':
			tokens = append(tokens, Token{Kind: LParen, Text: "(", Pos: i})
			i++
		case b == ')':
			tokens = append(tokens, Token{Kind: RParen, Text: ")", Pos: i})
			i++
		case b == '[':
			tokens = append(tokens, Token{Kind: LBracket, Text: "[", Pos: i})
			i++
		case b == ']':
			tokens = append(tokens, Token{Kind: RBracket, Text: "]", Pos: i})
			i++
		case b == ',':
			tokens = append(tokens, Token{Kind: Comma, Text: ",", Pos: i})
			i++
		case b == '=':
			tokens = append(tokens, Token{Kind: Equals, Text: "=", Pos: i})
			i++
		case b == ':':
			if i+1 >= len(line) || line[i+1] != ':' {
				return nil, errAt(i, "single ':' is not a token")
			}
			tokens = append(tokens, Token{Kind: ColonColon, Text: "::", Pos: i})
			i += 2
		case b < 0x20 || b == 0x7f:
			return nil, errAt(i, "unescaped control byte 0x%02x", b)
		case b == '\\':
			return nil, errAt(i, "backslash outside quoted string")
		default:
			start := i
			for i < len(line) && (isAtomByte(line[i]) || line[i] >= utf8.RuneSelf) {
				i++
			}
			tokens = append(tokens, Token{Kind: Atom, Text: line[start:i], Pos: start})
		}
	}
	return tokens, nil
}

// scanString decodes a double-quoted literal starting at the opening quote.
// It returns the decoded text and the offset just past the closing quote.
func scanString(line string, start int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(line) {
		b := line[i]
		switch {
		case b == '"':
			return sb.String(), i + 1, nil
		case b == '\\':
			r, next, err := scanEscape(line, i)
			if err != nil {
				return "", 0, err
			}
			sb.WriteRune(r)
			i = next
		case b < 0x20 || b == 0x7f:
			return "", 0, errAt(i, "unescaped control byte 0x%02x in string", b)
		default:
			r, size := utf8.DecodeRuneInString(line[i:])
			sb.WriteRune(r)
			i += size
		}
	}
	return "", 0, errAt(start, "unterminated string")
}

func scanEscape(line string, start int) (rune, int, error) {
	i := start + 1
	if i >= len(line) {
		return 0, 0, errAt(start, "trailing backslash")
	}
	switch line[i] {
	case 'n':
		return '\n', i + 1, nil
	case 'r':
		return '\r', i + 1, nil
	case 't':
		return '\t', i + 1, nil
	case '\\':
		return '\\', i + 1, nil
	case '"':
		return '"', i + 1, nil
	case '\'':
		return '\'', i + 1, nil
	case 'u':
		return scanUnicodeEscape(line, start)
	default:
		return 0, 0, errAt(start, "invalid escape \\%c", line[i])
	}
}

func scanUnicodeEscape(line string, start int) (rune, int, error) {
	i := start + 2
	if i >= len(line) || line[i] != '{' {
		return 0, 0, errAt(start, `\u escape requires {hex}`)
	}
	end := strings.IndexByte(line[i:], '}')
	if end < 0 {
		return 0, 0, errAt(start, `unterminated \u{...} escape`)
	}
	hex := line[i+1 : i+end]
	if hex == "" {
		return 0, 0, errAt(start, `empty \u{} escape`)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, errAt(start, `invalid \u{%s} escape`, hex)
	}
	r := rune(v)
	if !utf8.ValidRune(r) {
		return 0, 0, errAt(start, `\u{%s} is not a Unicode scalar value`, hex)
	}
	return r, i + end + 1, nil
}

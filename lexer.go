// lexer.go — byte scanner for Runix source.
//
// The lexer turns a source string into []Token terminated by an EndOfInput
// token. It never stops early: an unexpected character is reported and
// skipped, an unterminated string is reported and ends the scan, and every
// problem is returned together as a Diagnostics error next to the tokens that
// could be produced.
//
// Token classes are deliberately coarse (Identifier, Number, String,
// Operator, EndOfInput). Keywords are Identifier tokens; the parser tells
// them apart by lexeme. The two-character comparisons ==, !=, <=, >= are
// recognised with one byte of lookahead and emitted as single Operator
// tokens.
package runix

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer scans a Runix source string into tokens.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 1-based column of src[cur]
	tokens []Token
	errs   Diagnostics

	tokStart Pos
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize scans src completely. The returned tokens always end with an
// EndOfInput token, even when err is non-nil.
func Tokenize(src string) ([]Token, error) {
	return NewLexer(src).Scan()
}

// Scan tokenizes the entire source and returns the tokens (EndOfInput
// included) and, if any lexical errors were found, a Diagnostics error.
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok := l.scanToken()
		if tok.Kind == EndOfInput {
			return l.tokens, l.errs.Err()
		}
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(kind TokenKind, lit interface{}) Token {
	tok := Token{
		Kind:    kind,
		Lexeme:  l.src[l.start:l.cur],
		Literal: lit,
		Pos:     l.tokStart,
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) errAt(pos Pos, kind ErrorKind, msg string) {
	l.errs = append(l.errs, &LexError{Kind: kind, Msg: msg, Pos: pos})
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch ch {
		case ' ', '\r', '\n', '\t':
			l.advance()
		case '/':
			if b, ok := l.peekN(1); ok && b == '/' {
				for {
					b, ok := l.peek()
					if !ok || b == '\n' {
						break
					}
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

// helpers

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

// single-character operators; '=', '!', '<', '>' may be extended by a '='
const operatorChars = "+-*/=(){};,:.&|!><"

// ----- scanners -----

// scanString reads a double-quoted literal. The opening quote has been
// consumed. Returns false when the closing quote is missing.
func (l *Lexer) scanString() (string, bool) {
	var out strings.Builder
	for !l.isAtEnd() {
		ch, _ := l.advance()
		switch ch {
		case '"':
			return out.String(), true
		case '\\':
			esc, ok := l.advance()
			if !ok {
				return "", false
			}
			switch esc {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case '"':
				out.WriteByte('"')
			case '\\':
				out.WriteByte('\\')
			default:
				// unknown escapes are kept verbatim
				out.WriteByte('\\')
				out.WriteByte(esc)
			}
		default:
			out.WriteByte(ch)
		}
	}
	return "", false
}

// scanIdentifier parses [A-Za-z_][A-Za-z0-9_]*
func (l *Lexer) scanIdentifier() string {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.src[l.start:l.cur]
}

// scanNumber parses digits with an optional fractional part ("12", "3.25").
// A '.' not followed by a digit is left for the operator scanner.
func (l *Lexer) scanNumber() float64 {
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '.' {
		if b2, ok2 := l.peekN(1); ok2 && isDigit(b2) {
			l.advance()
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
			}
		}
	}
	// digits and at most one inner '.', so ParseFloat cannot fail except on
	// overflow, where it returns ±Inf which we keep.
	v, _ := strconv.ParseFloat(l.src[l.start:l.cur], 64)
	return v
}

// ----- main scanner -----

func (l *Lexer) scanToken() Token {
	for {
		l.skipWhitespaceAndComments()
		l.tokStart = Pos{Offset: l.cur, Line: l.line, Col: l.col}
		l.start = l.cur

		if l.isAtEnd() {
			return l.addToken(EndOfInput, nil)
		}

		ch, _ := l.advance()

		switch {
		case isDigit(ch):
			return l.addToken(Number, l.scanNumber())

		case isAlpha(ch):
			l.scanIdentifier()
			return l.addToken(Identifier, nil)

		case ch == '"':
			text, ok := l.scanString()
			if !ok {
				l.errAt(l.tokStart, UnterminatedString, "string was not terminated")
				l.start = l.cur
				continue
			}
			return l.addToken(String, text)

		case strings.IndexByte(operatorChars, ch) >= 0:
			switch ch {
			case '=', '!', '<', '>':
				if b, ok := l.peek(); ok && b == '=' {
					l.advance()
				}
			}
			return l.addToken(Operator, nil)
		}

		// Report the whole rune, not a stray UTF-8 byte.
		l.cur, l.line, l.col = l.start, l.tokStart.Line, l.tokStart.Col
		r, size := utf8.DecodeRuneInString(l.src[l.cur:])
		for i := 0; i < size; i++ {
			l.advance()
		}
		l.errAt(l.tokStart, UnexpectedCharacter, fmt.Sprintf("unexpected character %q at offset %d", r, l.tokStart.Offset))
		l.start = l.cur
	}
}

package runix

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"
)

// TokenKind represents the lexical class of a token. Keywords are not a
// separate class: they are Identifier tokens told apart by lexeme.
type TokenKind int

const (
	Identifier TokenKind = iota
	Number
	String
	Operator
	EndOfInput
)

func (k TokenKind) String() string {
	switch k {
	case Identifier:
		return "Identifier"
	case Number:
		return "Number"
	case String:
		return "String"
	case Operator:
		return "Operator"
	case EndOfInput:
		return "EndOfInput"
	default:
		return "Unknown"
	}
}

// Pos is a position in the source text. Offset is a 0-based byte offset;
// Line and Col are 1-based.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Token is a lexical token.
//
// Lexeme is the raw source slice (a String token keeps its quotes and escape
// sequences). Literal carries the decoded value: string for String tokens,
// float64 for Number tokens, nil otherwise.
type Token struct {
	Kind    TokenKind
	Lexeme  string
	Literal interface{}
	Pos
}

func (t Token) String() string {
	return "[" + t.Kind.String() + ": " + t.Lexeme + "]"
}

// Is reports whether t is an Operator or Identifier token with the given lexeme.
func (t Token) Is(lexeme string) bool {
	return (t.Kind == Operator || t.Kind == Identifier) && t.Lexeme == lexeme
}

// reserved words
var keywords = mapset.NewSet(
	"func", "let", "const", "print", "if", "else", "while", "return",
	"for", "true", "false", "null",
)

// statementStarts are the keywords at which panic-mode recovery resumes.
var statementStarts = mapset.NewSet(
	"func", "let", "const", "print", "if", "while", "for", "return",
)

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool { return keywords.Contains(word) }

func (t Token) isKeyword() bool { return t.Kind == Identifier && keywords.Contains(t.Lexeme) }

func (t Token) startsStatement() bool {
	return t.Kind == Identifier && statementStarts.Contains(t.Lexeme)
}

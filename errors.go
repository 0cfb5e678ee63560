// errors.go: typed diagnostics and caret-snippet rendering
//
// What this file does
// -------------------
// Every failure the pipeline can produce is a value of one of three types:
//
//   - *LexError     (lexer.go)       UnexpectedCharacter, UnterminatedString
//   - *ParseError   (parser.go)      ExpectedToken, InvalidAssignmentTarget,
//     UnexpectedEndOfInput, NestingTooDeep
//   - *RuntimeError (interpreter*.go) UndefinedVariable, UndefinedFunction,
//     NotCallable, ArityMismatch, TypeError, DivisionByZero, ResourceExhausted,
//     InternalError
//
// All three carry an ErrorKind, a message and the source position (byte
// offset plus 1-based line/column) of the offending token or node. An
// InternalError comes from a recovered panic and has no position.
//
// The lexer and parser keep going after an error, so they report a
// Diagnostics value: an ordered list of errors that implements error and
// unwraps to its members (errors.As finds the first match).
//
// WrapErrorWithSource renders any of the above as a snippet:
//
//	PARSE ERROR at 3:12: expected ')' after expression
//
//	   2 | let x = (1 + 2
//	   3 | print x;
//	     |            ^
//	   4 | }
package runix

import (
	"errors"
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// ErrorKind identifies a failure within the error taxonomy.
type ErrorKind int

const (
	// lexical
	UnexpectedCharacter ErrorKind = iota
	UnterminatedString

	// syntax
	ExpectedToken
	InvalidAssignmentTarget
	UnexpectedEndOfInput
	NestingTooDeep

	// evaluation
	UndefinedVariable
	UndefinedFunction
	NotCallable
	ArityMismatch
	TypeError
	DivisionByZero
	ResourceExhausted
	InternalError // a recovered Go panic; never raised by a well-formed program
)

var kindNames = [...]string{
	UnexpectedCharacter:     "UnexpectedCharacter",
	UnterminatedString:      "UnterminatedString",
	ExpectedToken:           "ExpectedToken",
	InvalidAssignmentTarget: "InvalidAssignmentTarget",
	UnexpectedEndOfInput:    "UnexpectedEndOfInput",
	NestingTooDeep:          "NestingTooDeep",
	UndefinedVariable:       "UndefinedVariable",
	UndefinedFunction:       "UndefinedFunction",
	NotCallable:             "NotCallable",
	ArityMismatch:           "ArityMismatch",
	TypeError:               "TypeError",
	DivisionByZero:          "DivisionByZero",
	ResourceExhausted:       "ResourceExhausted",
	InternalError:           "InternalError",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// LexError is produced by the lexer.
type LexError struct {
	Kind ErrorKind
	Msg  string
	Pos
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseError is produced by the parser.
type ParseError struct {
	Kind ErrorKind
	Msg  string
	Pos
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// RuntimeError is produced by the evaluator. Evaluation stops at the first one.
type RuntimeError struct {
	Kind ErrorKind
	Msg  string
	Pos
}

func (e *RuntimeError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("RUNTIME ERROR: %s", e.Msg)
	}
	return fmt.Sprintf("RUNTIME ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ErrBusy is returned when an interpreter is entered while it is already
// evaluating.
var ErrBusy = errors.New("runix: interpreter is already running")

// Diagnostics is an ordered collection of errors reported by a single
// lex/parse run (and, from the Eval* entry points, the runtime error that
// ended the run, if any).
type Diagnostics []error

func (d Diagnostics) Error() string {
	switch len(d) {
	case 0:
		return "no errors"
	case 1:
		return d[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(d))
	for _, e := range d {
		b.WriteString("\n\t")
		b.WriteString(e.Error())
	}
	return b.String()
}

// Unwrap exposes the members to errors.Is / errors.As.
func (d Diagnostics) Unwrap() []error { return d }

// Err returns nil for an empty collection, the collection otherwise.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	return d
}

// KindOf returns the ErrorKind carried by err (or the first member of a
// Diagnostics). The boolean is false for foreign errors.
func KindOf(err error) (ErrorKind, bool) {
	var le *LexError
	var pe *ParseError
	var re *RuntimeError
	switch {
	case errors.As(err, &le):
		return le.Kind, true
	case errors.As(err, &pe):
		return pe.Kind, true
	case errors.As(err, &re):
		return re.Kind, true
	}
	return 0, false
}

// Flatten lists the individual errors contained in err.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var d Diagnostics
	if errors.As(err, &d) {
		var out []error
		for _, e := range d {
			out = append(out, Flatten(e)...)
		}
		return out
	}
	return []error{err}
}

// IsIncomplete reports whether err only complains about input ending too
// early: an unterminated string or a parse error at end of input. REPLs use it
// to keep reading continuation lines.
func IsIncomplete(err error) bool {
	errs := Flatten(err)
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		k, ok := KindOf(e)
		if !ok || (k != UnexpectedEndOfInput && k != UnterminatedString) {
			return false
		}
	}
	return true
}

// WrapErrorWithSource returns err rendered with a caret-annotated snippet of
// src. Diagnostics are rendered member by member; errors of foreign types are
// returned unchanged.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source name in the header.
func WrapErrorWithName(err error, srcName string, src string) error {
	if err == nil {
		return nil
	}
	if d, ok := err.(Diagnostics); ok {
		parts := make([]string, 0, len(d))
		for _, e := range d {
			parts = append(parts, WrapErrorWithName(e, srcName, src).Error())
		}
		return &renderedError{msg: strings.Join(parts, "\n"), cause: err}
	}
	switch e := err.(type) {
	case *LexError:
		return &renderedError{msg: prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col, e.Msg), cause: err}
	case *ParseError:
		return &renderedError{msg: prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col, e.Msg), cause: err}
	case *RuntimeError:
		if e.Line == 0 {
			return err
		}
		return &renderedError{msg: prettyErrorStringLabeled(src, "RUNTIME ERROR", srcName, e.Line, e.Col, e.Msg), cause: err}
	default:
		return err
	}
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: helpers & rendering
   =========================== */

// renderedError keeps the typed error reachable after rendering.
type renderedError struct {
	msg   string
	cause error
}

func (e *renderedError) Error() string { return e.msg }
func (e *renderedError) Unwrap() error { return e.cause }

// prettyErrorStringLabeled builds a snippet with a header and a caret.
// It shows at most one previous and one next line when available.
// Coordinates are 1-based and clamped to the source bounds.
func prettyErrorStringLabeled(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}

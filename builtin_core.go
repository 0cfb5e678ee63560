package runix

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ---- core built-ins ----------------------------------------------------

func registerCoreBuiltins(ip *Interpreter) {
	// input() -> Str | Null
	// Reads one line from the interpreter's input without its line ending.
	// Returns null at end of input.
	ip.RegisterNative("input", 0, func(ip *Interpreter, _ []Value) (Value, error) {
		line, err := ip.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Null, err
		}
		if err != nil && line == "" {
			return Null, nil
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return Str(line), nil
	})

	// str(x) -> Str, the text print would write for x.
	ip.RegisterNative("str", 1, func(_ *Interpreter, args []Value) (Value, error) {
		return Str(FormatValue(args[0])), nil
	})

	// num(x) -> Num | Null. Numbers pass through. Strings are trimmed and must
	// then read as a number literal with an optional leading '-' ("42",
	// "-3.25"); anything else, including "Inf", "NaN" and "1e3", gives null.
	ip.RegisterNative("num", 1, func(_ *Interpreter, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case VTNum:
			return v, nil
		case VTStr:
			text := strings.TrimSpace(v.Data.(string))
			if !isNumberText(text) {
				return Null, nil
			}
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return Null, nil
			}
			return Num(f), nil
		}
		return Null, nil
	})

	// len(s: Str) -> Num, counted in characters.
	ip.RegisterNative("len", 1, func(_ *Interpreter, args []Value) (Value, error) {
		if args[0].Tag != VTStr {
			return Null, &RuntimeError{Kind: TypeError, Msg: fmt.Sprintf("len expects a string, got %s", typeName(args[0]))}
		}
		return Num(float64(utf8.RuneCountInString(args[0].Data.(string)))), nil
	})

	// type(x) -> Str: "null", "boolean", "number", "string" or "function".
	ip.RegisterNative("type", 1, func(_ *Interpreter, args []Value) (Value, error) {
		return Str(typeName(args[0])), nil
	})

	// clock() -> Num, seconds since the Unix epoch.
	ip.RegisterNative("clock", 0, func(_ *Interpreter, _ []Value) (Value, error) {
		return Num(float64(time.Now().UnixNano()) / 1e9), nil
	})
}

// isNumberText reports whether s is digits with an optional fraction and an
// optional leading '-', the shape scanNumber accepts.
func isNumberText(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, dotted := strings.Cut(s, ".")
	return allDigits(whole) && (!dotted || allDigits(frac))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// interpreter.go — PUBLIC API SURFACE of the Runix interpreter.
//
// OVERVIEW
// ========
// This file holds the exported runtime types and the thin entry points of
// the interpreter. The evaluation itself lives in private files:
//
//   - interpreter_exec.go: statement execution, calls, budget accounting.
//   - interpreter_ops.go:  operators, equality, type checks.
//   - builtin_core.go:     the natives installed into Core.
//
// EXECUTION & SCOPING SEMANTICS
// -----------------------------
// Programs evaluate in environments (*Env) chained through their parent. The
// Interpreter exposes two well-known frames:
//
//   - Core:   built-ins and registered natives.
//   - Global: user-visible program state, a child of Core.
//
// Entry points differ only in which environment they target:
//
//   - Ephemeral runs: EvalSource and Eval create a fresh child of Global;
//     bindings made by the program land in that throwaway child.
//   - Persistent runs: EvalPersistentSource and EvalPersistent evaluate in
//     Global itself, so a REPL keeps its definitions between inputs.
//   - EvalIn evaluates a program in the environment the host passes.
//
// Every block and every function call gets a child scope; a call's scope is a
// child of the scope where the function was declared.
//
// RESULTS & ERRORS
// ----------------
// All Eval* methods return (Value, error). The value is the value of the last
// executed top-level statement, or the value of a top-level `return`.
//
// The *Source entry points lex and parse first. Syntax diagnostics do not stop
// the run unless Config.HaltOnSyntaxError is set: the statements that parsed
// cleanly are executed and the diagnostics are returned together with the
// runtime error, if any, as one Diagnostics value rendered with caret
// snippets (see errors.go). errors.As still reaches the typed errors.
//
// Evaluation stops at the first *RuntimeError. A Go panic inside the
// evaluator is recovered and returned as a *RuntimeError of kind
// InternalError.
//
// CONCURRENCY
// -----------
// An Interpreter runs one program at a time. Entering it while it is already
// evaluating (from another goroutine or from inside a native) fails with
// ErrBusy. Use one Interpreter per concurrent run; parsed programs and a
// ParseCache may be shared.
package runix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
)

////////////////////////////////////////////////////////////////////////////////
//                              PUBLIC TYPES & CTORS
////////////////////////////////////////////////////////////////////////////////

// ValueTag enumerates the runtime kinds a Value may hold.
type ValueTag int

const (
	VTNull ValueTag = iota // null (no payload)
	VTBool                 // bool
	VTNum                  // float64
	VTStr                  // string
	VTFun                  // *Fun
)

// Value is the universal runtime carrier used by the interpreter.
//
// Invariants:
//   - When Tag==VTNull, Data is nil.
//   - Data has the Go type listed next to the tag constant.
type Value struct {
	Tag  ValueTag
	Data interface{}
}

// String renders a debug representation; strings are quoted. Use
// FormatValue for the form `print` writes.
func (v Value) String() string {
	if v.Tag == VTStr {
		return strconv.Quote(v.Data.(string))
	}
	return FormatValue(v)
}

// Null is the singleton null Value.
var Null = Value{Tag: VTNull}

// Primitive constructors.
func Bool(b bool) Value   { return Value{Tag: VTBool, Data: b} }
func Num(f float64) Value { return Value{Tag: VTNum, Data: f} }
func Str(s string) Value  { return Value{Tag: VTStr, Data: s} }

// FunVal wraps *Fun into a Value.
func FunVal(f *Fun) Value { return Value{Tag: VTFun, Data: f} }

// Fun is a function value: either a declared function closed over its
// defining scope, or a native registered by the host.
type Fun struct {
	Name   string
	Params []string
	Body   *Block
	Env    *Env // defining scope

	native NativeImpl
	arity  int // natives only; -1 = any
}

// IsNative reports whether f is implemented in Go.
func (f *Fun) IsNative() bool { return f.native != nil }

// Arity is the number of arguments f accepts, or -1 for variadic natives.
func (f *Fun) Arity() int {
	if f.native != nil {
		return f.arity
	}
	return len(f.Params)
}

// NativeImpl implements a host function. Returning a *RuntimeError without a
// position makes the interpreter attach the call site.
type NativeImpl func(ip *Interpreter, args []Value) (Value, error)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithOutput sets the sink `print` writes to (default os.Stdout).
func WithOutput(w io.Writer) Option { return func(ip *Interpreter) { ip.out = w } }

// WithInput sets the reader input() reads lines from (default os.Stdin).
func WithInput(r io.Reader) Option {
	return func(ip *Interpreter) { ip.in = bufio.NewReader(r) }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option { return func(ip *Interpreter) { ip.cfg = cfg } }

// WithLogger sets the parent logger of per-run loggers.
func WithLogger(l log.Logger) Option { return func(ip *Interpreter) { ip.log = l } }

// WithSourceName sets the name EvalSource uses in rendered diagnostics
// (default "<main>").
func WithSourceName(name string) Option { return func(ip *Interpreter) { ip.name = name } }

// WithParseCache makes EvalSource and EvalPersistentSource use pc instead of
// a private cache sized by Config.ParseCacheSize.
func WithParseCache(pc *ParseCache) Option { return func(ip *Interpreter) { ip.cache = pc } }

////////////////////////////////////////////////////////////////////////////////
//                               PUBLIC INTERPRETER
////////////////////////////////////////////////////////////////////////////////

// Interpreter evaluates Runix programs.
type Interpreter struct {
	Global *Env // program-global environment (persistent across EvalPersistent*)
	Core   *Env // built-ins; parent of Global

	cfg   Config
	name  string
	out   io.Writer
	in    *bufio.Reader
	log   log.Logger
	cache *ParseCache

	busy atomic.Bool
}

// NewInterpreter constructs an interpreter with the core natives installed
// and an empty Global.
func NewInterpreter(opts ...Option) *Interpreter {
	ip := &Interpreter{
		cfg:  DefaultConfig(),
		name: "<main>",
		out:  os.Stdout,
		log:  pkgLog,
	}
	for _, o := range opts {
		o(ip)
	}
	if ip.in == nil {
		ip.in = bufio.NewReader(os.Stdin)
	}
	if ip.cache == nil && ip.cfg.ParseCacheSize > 0 {
		ip.cache, _ = NewParseCache(ip.cfg.ParseCacheSize)
	}
	ip.Core = NewEnv(nil)
	ip.Global = NewEnv(ip.Core)
	registerCoreBuiltins(ip)
	return ip
}

// Config returns the interpreter's configuration.
func (ip *Interpreter) Config() Config { return ip.cfg }

////////////////////////////////////////////////////////////////////////////////
//                         PUBLIC METHODS (THIN DELEGATIONS)
////////////////////////////////////////////////////////////////////////////////

// EvalSource parses and evaluates src in a fresh child of Global.
func (ip *Interpreter) EvalSource(src string) (Value, error) {
	return ip.evalSource(src, ip.name, NewEnv(ip.Global))
}

// EvalPersistentSource parses and evaluates src in Global (REPL-style).
func (ip *Interpreter) EvalPersistentSource(src string) (Value, error) {
	return ip.evalSource(src, "<repl>", ip.Global)
}

// Eval evaluates a parsed program in a fresh child of Global. Errors are
// returned unrendered since there is no source text to quote.
func (ip *Interpreter) Eval(prog *Program) (Value, error) {
	return ip.runTop(prog, NewEnv(ip.Global))
}

// EvalPersistent evaluates a parsed program in Global.
func (ip *Interpreter) EvalPersistent(prog *Program) (Value, error) {
	return ip.runTop(prog, ip.Global)
}

// EvalIn evaluates a parsed program in env exactly as given.
func (ip *Interpreter) EvalIn(prog *Program, env *Env) (Value, error) {
	return ip.runTop(prog, env)
}

// Call applies a function value to args outside of a running program.
func (ip *Interpreter) Call(fn Value, args ...Value) (Value, error) {
	if fn.Tag != VTFun {
		return Null, &RuntimeError{Kind: NotCallable, Msg: fmt.Sprintf("cannot call a %s", typeName(fn))}
	}
	return ip.guard(ip.Global, func(ev *evaluator) (Value, error) {
		return ev.call(Pos{}, fn.Data.(*Fun), args)
	})
}

// RegisterNative installs a host function into Core under name. arity is the
// exact argument count, or -1 to accept any number of arguments.
func (ip *Interpreter) RegisterNative(name string, arity int, impl NativeImpl) {
	ip.Core.Define(name, FunVal(&Fun{Name: name, Env: ip.Core, native: impl, arity: arity}))
}

// Run evaluates src with a fresh interpreter writing to out.
func Run(src string, out io.Writer, opts ...Option) (Value, error) {
	return NewInterpreter(append([]Option{WithOutput(out)}, opts...)...).EvalSource(src)
}

//// END_OF_PUBLIC

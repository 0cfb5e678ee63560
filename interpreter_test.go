package runix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---------------------------------------------------------------

// run evaluates src on a fresh interpreter and returns what it printed.
func run(t *testing.T, src string, opts ...Option) (string, Value) {
	t.Helper()
	var buf bytes.Buffer
	v, err := Run(src, &buf, opts...)
	if err != nil {
		t.Fatalf("Run error: %v\nsource:\n%s", err, src)
	}
	return buf.String(), v
}

func wantOutput(t *testing.T, src string, lines ...string) {
	t.Helper()
	got, _ := run(t, src)
	want := strings.Join(lines, "\n") + "\n"
	if got != want {
		t.Fatalf("source:\n%s\nwant output:\n%s\ngot:\n%s", src, want, got)
	}
}

// runErr evaluates src and returns the output so far and the error, which
// must carry kind.
func runErr(t *testing.T, src string, kind ErrorKind, opts ...Option) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	_, err := Run(src, &buf, opts...)
	if err == nil {
		t.Fatalf("expected %s, got no error\nsource:\n%s", kind, src)
	}
	if k, ok := KindOf(err); !ok || k != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	return buf.String(), err
}

func wantNum(t *testing.T, v Value, f float64) {
	t.Helper()
	if v.Tag != VTNum || v.Data.(float64) != f {
		t.Fatalf("want num %g, got %#v", f, v)
	}
}

func wantStr(t *testing.T, v Value, s string) {
	t.Helper()
	if v.Tag != VTStr || v.Data.(string) != s {
		t.Fatalf("want str %q, got %#v", s, v)
	}
}

func wantBool(t *testing.T, v Value, b bool) {
	t.Helper()
	if v.Tag != VTBool || v.Data.(bool) != b {
		t.Fatalf("want bool %v, got %#v", b, v)
	}
}

func wantNull(t *testing.T, v Value) {
	t.Helper()
	if v.Tag != VTNull {
		t.Fatalf("want null, got %#v", v)
	}
}

// --- basics ----------------------------------------------------------------

func Test_Interpreter_Print_Forms(t *testing.T) {
	wantOutput(t, `print 1; print 2.5; print -0; print 1/3; print "a\tb"; print true; print null;`,
		"1", "2.5", "0", "0.3333333333333333", "a\tb", "true", "null")
}

func Test_Interpreter_Arithmetic_Precedence(t *testing.T) {
	_, v := run(t, `1 + 2 * 3 - 8 / 4;`)
	wantNum(t, v, 5)
	_, v = run(t, `(1 + 2) * -3;`)
	wantNum(t, v, -9)
	_, v = run(t, `10 - 4 - 3;`)
	wantNum(t, v, 3)
}

func Test_Interpreter_Comparison_And_Equality(t *testing.T) {
	cases := map[string]bool{
		`1 < 2;`:              true,
		`2 <= 2;`:             true,
		`3 > 4;`:              false,
		`3 >= 4;`:             false,
		`"a" == "a";`:         true,
		`"a" != "b";`:         true,
		`1 == "1";`:           false,
		`null == null;`:       true,
		`true != false;`:      true,
		`!(1 == 1);`:          false,
		`!false == true;`:     true,
		`func f() {} f == f;`: true,
	}
	for src, want := range cases {
		_, v := run(t, src)
		wantBool(t, v, want)
	}
}

func Test_Interpreter_Concatenation(t *testing.T) {
	wantOutput(t, `print "a" + 1; print 1 + "a"; print "x" + null; print "b" + true; print "n=" + 2.50;`,
		"a1", "1a", "x", "btrue", "n=2.5")
}

func Test_Interpreter_TypeErrors(t *testing.T) {
	_, err := runErr(t, `print "a" - 1;`, TypeError)
	assert.Contains(t, err.Error(), "operator '-' expects numbers, got string and number")

	runErr(t, `print 1 + true;`, TypeError)
	runErr(t, `print null + null;`, TypeError)
	runErr(t, `print "a" < "b";`, TypeError)
	runErr(t, `print -"a";`, TypeError)
	runErr(t, `print !1;`, TypeError)
	runErr(t, `if 1 { print 1; }`, TypeError)
	runErr(t, `while null {}`, TypeError)
}

func Test_Interpreter_DivisionByZero(t *testing.T) {
	out, err := runErr(t, "print 1;\nprint 4 / (2 - 2);\nprint 3;", DivisionByZero)
	assert.Equal(t, "1\n", out)
	assert.Contains(t, err.Error(), "RUNTIME ERROR in <main> at 2:9: division by zero")
}

// --- scoping ---------------------------------------------------------------

func Test_Interpreter_Fresh_Interpreters_Do_Not_Share_State(t *testing.T) {
	for i := 0; i < 2; i++ {
		wantOutput(t, `let x = 1; print x;`, "1")
	}
}

func Test_Interpreter_Call_Locals_Do_Not_Leak(t *testing.T) {
	wantOutput(t, `func f(){ let x = 10; return x; } let x = 1; print f(); print x;`, "10", "1")
}

func Test_Interpreter_Block_Scope_And_Shadowing(t *testing.T) {
	wantOutput(t, `
let x = 1;
{
    let x = 2;
    print x;
    x = 3;
    print x;
}
print x;
{
    x = 4;
}
print x;
`, "2", "3", "1", "4")
}

func Test_Interpreter_Closures_Use_Defining_Scope(t *testing.T) {
	wantOutput(t, `
let n = 1;
func show() { print n; }
func shadow() { let n = 99; show(); }
shadow();
n = 2;
show();
`, "1", "2")
}

func Test_Interpreter_Assignment_Writes_Nearest_Scope(t *testing.T) {
	wantOutput(t, `
let total = 0;
func add(k) { total = total + k; }
add(2); add(3);
print total;
`, "5")
}

func Test_Interpreter_Undefined_Variable(t *testing.T) {
	_, err := runErr(t, `print y;`, UndefinedVariable)
	assert.Contains(t, err.Error(), "undefined variable 'y'")
	runErr(t, `y = 1;`, UndefinedVariable)
	runErr(t, `{ let z = 1; } print z;`, UndefinedVariable)
}

func Test_Interpreter_Const(t *testing.T) {
	wantOutput(t, `const k = 3; print k;`, "3")
	_, err := runErr(t, `const k = 3; k = 4;`, TypeError)
	assert.Contains(t, err.Error(), "cannot assign to constant 'k'")
	// a new declaration in an inner scope is fine
	wantOutput(t, `const k = 3; { let k = 4; k = 5; print k; } print k;`, "5", "3")
}

func Test_Interpreter_VarDecl_Without_Initializer_Is_Null(t *testing.T) {
	wantOutput(t, `let x; print x;`, "null")
}

// --- control flow ----------------------------------------------------------

func Test_Interpreter_If_Else_Chain(t *testing.T) {
	src := `
func sign(n) {
    if n > 0 { return "pos"; } else if n < 0 { return "neg"; } else { return "zero"; }
}
print sign(3); print sign(-3); print sign(0);
`
	wantOutput(t, src, "pos", "neg", "zero")
}

func Test_Interpreter_While_Loop(t *testing.T) {
	wantOutput(t, `let i = 0; while i < 3 { print i; i = i + 1; }`, "0", "1", "2")
}

func Test_Interpreter_For_Loop_Scope(t *testing.T) {
	wantOutput(t, `for let i = 0; i < 3; i = i + 1 { print i; }`, "0", "1", "2")
	runErr(t, `for let i = 0; i < 1; i = i + 1 {} print i;`, UndefinedVariable)

	wantOutput(t, `let j = 5; for ; j > 3; { j = j - 1; } print j;`, "3")
}

func Test_Interpreter_Nested_Return(t *testing.T) {
	wantOutput(t, `func f(n){ if n > 0 { return 1; } return 0; } print f(5); print f(-1);`, "1", "0")
}

func Test_Interpreter_Return_From_Loops(t *testing.T) {
	wantOutput(t, `
func firstOver(limit) {
    let i = 0;
    while true {
        for let j = 0; j < 10; j = j + 1 {
            if i * 10 + j > limit { return i * 10 + j; }
        }
        i = i + 1;
    }
}
print firstOver(42);
`, "43")
}

func Test_Interpreter_Function_Without_Return_Yields_Null(t *testing.T) {
	wantOutput(t, `func f() { 1 + 1; } print f(); func g() { return; } print g();`, "null", "null")
}

func Test_Interpreter_Recursion(t *testing.T) {
	wantOutput(t, `func fib(n) { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); } print fib(15);`, "610")
}

func Test_Interpreter_Top_Level_Return_Ends_Program(t *testing.T) {
	out, v := run(t, `print 1; return 7; print 2;`)
	assert.Equal(t, "1\n", out)
	wantNum(t, v, 7)
}

func Test_Interpreter_Completion_Values(t *testing.T) {
	_, v := run(t, `let a = "x";`)
	wantStr(t, v, "x")
	_, v = run(t, `if false { 1; }`)
	wantNull(t, v)
	_, v = run(t, `if true { 1; 2; }`)
	wantNum(t, v, 2)
	_, v = run(t, `let i = 0; while i < 2 { i = i + 1; }`)
	wantNull(t, v)
	_, v = run(t, ``)
	wantNull(t, v)
}

// --- calls -----------------------------------------------------------------

func Test_Interpreter_ArityMismatch(t *testing.T) {
	for _, call := range []string{"f()", "f(1, 2)"} {
		_, err := runErr(t, `func f(x) { return x; } print `+call+`;`, ArityMismatch)
		assert.Contains(t, err.Error(), "function 'f' expects 1 argument(s)")
	}
	runErr(t, `print len();`, ArityMismatch)
}

func Test_Interpreter_Undefined_And_NotCallable(t *testing.T) {
	_, err := runErr(t, `nope(1);`, UndefinedFunction)
	assert.Contains(t, err.Error(), "undefined function 'nope'")
	_, err = runErr(t, `let x = 3; x();`, NotCallable)
	assert.Contains(t, err.Error(), "'x' is a number, not a function")
}

func Test_Interpreter_Arguments_Left_To_Right(t *testing.T) {
	wantOutput(t, `
func tag(s) { print s; return s; }
func pair(a, b) { return a + b; }
print pair(tag("L"), tag("R"));
`, "L", "R", "LR")
}

func Test_Interpreter_Functions_Are_Values(t *testing.T) {
	wantOutput(t, `func f() {} print f; print str(f); print len;`, "<func f>", "<func f>", "<native len>")
}

// --- syntax-error policy ---------------------------------------------------

func Test_Interpreter_Runs_Recovered_Program_And_Reports_ParseErrors(t *testing.T) {
	var buf bytes.Buffer
	_, err := Run(`print 1; let = 5; print 2; print (3; print 4;`, &buf)
	require.Error(t, err)
	assert.Equal(t, "1\n2\n4\n", buf.String())

	errs := Flatten(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		var pe *ParseError
		assert.True(t, errors.As(e, &pe))
	}
}

func Test_Interpreter_ParseErrors_And_RuntimeError_Together(t *testing.T) {
	var buf bytes.Buffer
	_, err := Run("let = 1;\nprint 1 / 0;", &buf)
	errs := Flatten(err)
	require.Len(t, errs, 2)
	k0, _ := KindOf(errs[0])
	k1, _ := KindOf(errs[1])
	assert.Equal(t, ExpectedToken, k0)
	assert.Equal(t, DivisionByZero, k1)
	assert.Contains(t, err.Error(), "PARSE ERROR in <main> at 1:5")
	assert.Contains(t, err.Error(), "RUNTIME ERROR in <main> at 2:9")
}

func Test_Interpreter_HaltOnSyntaxError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HaltOnSyntaxError = true
	out, _ := runErr(t, `print 1; let = 2;`, ExpectedToken, WithConfig(cfg))
	assert.Empty(t, out)
}

// --- budget ----------------------------------------------------------------

func Test_Interpreter_MaxSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 100
	_, err := runErr(t, `while true {}`, ResourceExhausted, WithConfig(cfg))
	assert.Contains(t, err.Error(), "step limit of 100 exceeded")

	// a short program stays within the budget
	var buf bytes.Buffer
	_, err = Run(`let i = 0; while i < 10 { i = i + 1; }`, &buf, WithConfig(cfg))
	require.NoError(t, err)
}

func Test_Interpreter_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = Duration(20 * time.Millisecond)
	start := time.Now()
	_, err := runErr(t, `while true {}`, ResourceExhausted, WithConfig(cfg))
	assert.Contains(t, err.Error(), "time limit of 20ms exceeded")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func Test_Interpreter_MaxCallDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 50
	_, err := runErr(t, `func down(n) { return down(n + 1); } down(0);`, ResourceExhausted, WithConfig(cfg))
	assert.Contains(t, err.Error(), "call depth limit of 50 exceeded in 'down'")

	wantOutput(t, `func depth(n) { if n == 0 { return 0; } return 1 + depth(n - 1); } print depth(500);`, "500")
}

func Test_Interpreter_Unlimited_Call_Depth_Is_Capped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 0
	_, err := runErr(t, `func down(n) { return down(n + 1); } down(0);`, ResourceExhausted, WithConfig(cfg))
	assert.Contains(t, err.Error(), fmt.Sprintf("call depth limit of %d exceeded", CallDepthCeiling))
}

func Test_Interpreter_Deeply_Nested_Source_Is_A_Syntax_Error(t *testing.T) {
	const n = 100000
	out, err := runErr(t, "print "+strings.Repeat("(", n)+"1"+strings.Repeat(")", n)+";\nprint 2;", NestingTooDeep)
	assert.Equal(t, "2\n", out)
	assert.Contains(t, err.Error(), fmt.Sprintf("nesting deeper than %d levels", MaxNesting))
}

// --- host API --------------------------------------------------------------

func Test_Interpreter_Persistent_vs_Ephemeral(t *testing.T) {
	var buf bytes.Buffer
	ip := NewInterpreter(WithOutput(&buf))

	_, err := ip.EvalSource(`let a = 1;`)
	require.NoError(t, err)
	_, ok := ip.Global.Get("a")
	assert.False(t, ok)

	_, err = ip.EvalPersistentSource(`let b = 2; func twice(x) { return x * 2; }`)
	require.NoError(t, err)
	v, err := ip.EvalPersistentSource(`twice(b);`)
	require.NoError(t, err)
	wantNum(t, v, 4)
	assert.Equal(t, []string{"b", "twice"}, ip.Global.Names())

	// ephemeral runs still see Global
	v, err = ip.EvalSource(`b + 1;`)
	require.NoError(t, err)
	wantNum(t, v, 3)
}

func Test_Interpreter_Eval_Parsed_Program(t *testing.T) {
	prog := mustParse(t, `let x = 2; x * 21;`)
	var buf bytes.Buffer
	ip := NewInterpreter(WithOutput(&buf))
	v, err := ip.Eval(prog)
	require.NoError(t, err)
	wantNum(t, v, 42)

	env := NewEnv(ip.Global)
	_, err = ip.EvalIn(prog, env)
	require.NoError(t, err)
	x, ok := env.Get("x")
	require.True(t, ok)
	wantNum(t, x, 2)
}

func Test_Interpreter_Runtime_Errors_From_Eval_Are_Unrendered(t *testing.T) {
	ip := NewInterpreter(WithOutput(&bytes.Buffer{}))
	_, err := ip.Eval(mustParse(t, "\n  x;"))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, UndefinedVariable, re.Kind)
	assert.Equal(t, Pos{Offset: 3, Line: 2, Col: 3}, re.Pos)
	assert.Equal(t, "RUNTIME ERROR at 2:3: undefined variable 'x'", err.Error())
}

func Test_Interpreter_Call_From_Host(t *testing.T) {
	ip := NewInterpreter(WithOutput(&bytes.Buffer{}))
	_, err := ip.EvalPersistentSource(`func greet(name) { return "hi " + name; }`)
	require.NoError(t, err)
	fn, ok := ip.Global.Get("greet")
	require.True(t, ok)

	v, err := ip.Call(fn, Str("ada"))
	require.NoError(t, err)
	wantStr(t, v, "hi ada")

	_, err = ip.Call(fn)
	k, _ := KindOf(err)
	assert.Equal(t, ArityMismatch, k)

	_, err = ip.Call(Num(1))
	k, _ = KindOf(err)
	assert.Equal(t, NotCallable, k)
}

func Test_Interpreter_RegisterNative(t *testing.T) {
	var buf bytes.Buffer
	ip := NewInterpreter(WithOutput(&buf))
	ip.RegisterNative("sum", -1, func(_ *Interpreter, args []Value) (Value, error) {
		total := 0.0
		for _, a := range args {
			if a.Tag != VTNum {
				return Null, &RuntimeError{Kind: TypeError, Msg: "sum expects numbers"}
			}
			total += a.Data.(float64)
		}
		return Num(total), nil
	})
	ip.RegisterNative("boom", 0, func(_ *Interpreter, _ []Value) (Value, error) {
		return Null, errors.New("disk on fire")
	})

	v, err := ip.EvalSource(`sum(1, 2, 3);`)
	require.NoError(t, err)
	wantNum(t, v, 6)

	_, err = ip.EvalSource("\nsum(1, \"x\");")
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 2, re.Line, "native errors get the call site")

	_, err = ip.EvalSource(`boom();`)
	require.Error(t, err)
	assert.Equal(t, "boom: disk on fire", err.Error())
}

func Test_Interpreter_Host_Built_Deep_Tree_Is_Bounded(t *testing.T) {
	var e Expr = &LiteralExpr{Value: Num(1)}
	for i := 0; i < 2*maxEvalNesting; i++ {
		e = &BinaryExpr{Left: e, Operator: "+", Right: &LiteralExpr{Value: Num(1)}}
	}
	ip := NewInterpreter(WithOutput(io.Discard))
	_, err := ip.Eval(&Program{Statements: []Stmt{&ExpressionStmt{Expr: e}}})
	k, ok := KindOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, ResourceExhausted, k)
	assert.Contains(t, err.Error(), "evaluation nested deeper than")
}

func Test_Interpreter_Recovered_Panic_Is_Internal_Error(t *testing.T) {
	ip := NewInterpreter(WithOutput(io.Discard))
	ip.RegisterNative("explode", 0, func(_ *Interpreter, _ []Value) (Value, error) {
		panic("kaboom")
	})

	_, err := ip.EvalSource(`explode();`)
	k, ok := KindOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, InternalError, k)
	assert.Contains(t, err.Error(), "internal error: kaboom")

	v, err := ip.EvalSource(`1 + 1;`)
	require.NoError(t, err, "the interpreter is usable after a panic")
	wantNum(t, v, 2)
}

func Test_Interpreter_Reentry_Is_ErrBusy(t *testing.T) {
	ip := NewInterpreter(WithOutput(&bytes.Buffer{}))
	ip.RegisterNative("nested", 0, func(ip *Interpreter, _ []Value) (Value, error) {
		return ip.EvalSource(`1;`)
	})
	_, err := ip.EvalSource(`nested();`)
	require.True(t, errors.Is(err, ErrBusy), "got %v", err)

	// the interpreter is usable again afterwards
	_, err = ip.EvalSource(`1;`)
	require.NoError(t, err)
}

func Test_Interpreter_Concurrent_Use_Is_Refused_Not_Corrupted(t *testing.T) {
	ip := NewInterpreter(WithOutput(&bytes.Buffer{}))
	release := make(chan struct{})
	entered := make(chan struct{})
	ip.RegisterNative("wait", 0, func(_ *Interpreter, _ []Value) (Value, error) {
		close(entered)
		<-release
		return Null, nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = ip.EvalSource(`wait();`)
	}()
	<-entered
	_, err := ip.EvalSource(`1;`)
	close(release)
	wg.Wait()

	assert.ErrorIs(t, err, ErrBusy)
	assert.NoError(t, firstErr)
}

func Test_Interpreter_Input_Builtin(t *testing.T) {
	in := strings.NewReader("ada\r\nbob")
	got, _ := run(t, `print "hi " + input(); print input(); print input();`, WithInput(in))
	assert.Equal(t, "hi ada\nbob\nnull\n", got)
}

func Test_Interpreter_Core_Builtins(t *testing.T) {
	wantOutput(t, `
print str(1.5) + str(null);
print num(" 42 ") + 1;
print num("x");
print num(true);
print num("-2.5") * 2;
print num("Inf"); print num("NaN"); print num("1e3"); print num("0x1p4"); print num("1."); print num(".5"); print num("");
print len("héllo");
print type(1); print type("s"); print type(null); print type(true); print type(len);
print clock() > 0;
`, "1.5null", "43", "null", "null", "-5",
		"null", "null", "null", "null", "null", "null", "null",
		"5", "number", "string", "null", "boolean", "function", "true")

	_, err := runErr(t, `len(3);`, TypeError)
	assert.Contains(t, err.Error(), "len expects a string, got number")
}

func Test_Interpreter_Shared_ParseCache(t *testing.T) {
	pc, err := NewParseCache(8)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		var buf bytes.Buffer
		ip := NewInterpreter(WithOutput(&buf), WithParseCache(pc))
		_, err := ip.EvalSource(`print "cached";`)
		require.NoError(t, err)
		assert.Equal(t, "cached\n", buf.String())
	}
	hits, misses := pc.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func Test_Interpreter_SourceName_In_Diagnostics(t *testing.T) {
	_, err := runErr(t, `print nope;`, UndefinedVariable, WithSourceName("demo.rx"))
	assert.Contains(t, err.Error(), "RUNTIME ERROR in demo.rx at 1:7")
	assert.Contains(t, err.Error(), "   1 | print nope;")
}

package runix

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FormatValue(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Num(3), "3"},
		{Num(-2.5), "-2.5"},
		{Num(math.Copysign(0, -1)), "0"},
		{Num(1e21), "1000000000000000000000"},
		{Num(0.1 + 0.2), "0.30000000000000004"},
		{Str("a \"b\""), `a "b"`},
		{FunVal(&Fun{Name: "f"}), "<func f>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatValue(c.v))
	}
	assert.Equal(t, `"a\"b"`, Str(`a"b`).String())
	assert.Equal(t, "2", Num(2).String())
}

func Test_Pretty_Canonical_Layout(t *testing.T) {
	src := `// comments are dropped
func   f(a,b){if a>b{return a;}else if a==b {return 0;} else{return b;}}
let x=(1+2)*3; const y = -(x - 1) / 2;
for let i=0;i<3;i=i+1{print "i=" + i;}
while false {}
{ print x = y = 2; }
for ; ; { return; }
`
	want := `func f(a, b) {
    if a > b {
        return a;
    } else if a == b {
        return 0;
    } else {
        return b;
    }
}
let x = (1 + 2) * 3;
const y = -(x - 1) / 2;
for let i = 0; i < 3; i = i + 1 {
    print "i=" + i;
}
while false {}
{
    print x = y = 2;
}
for ;; {
    return;
}
`
	got, err := Pretty(src)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func Test_Pretty_Keeps_Needed_Parentheses_Only(t *testing.T) {
	cases := map[string]string{
		`a - (b - c);`:     "a - (b - c);\n",
		`(a - b) - c;`:     "a - b - c;\n",
		`(a * b) + c;`:     "a * b + c;\n",
		`a * (b + c);`:     "a * (b + c);\n",
		`-(-a);`:           "--a;\n",
		`(a = 1) + 2;`:     "(a = 1) + 2;\n",
		`(a < b) == c;`:    "a < b == c;\n",
		`f((1), ("s\n"));`: "f(1, \"s\\n\");\n",
	}
	for src, want := range cases {
		got, err := Pretty(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}
}

func Test_Pretty_Roundtrip_Is_Stable(t *testing.T) {
	sources := []string{
		`func fib(n) { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); } print fib(10);`,
		`let s = "tab\tquote\"back\\"; print s + null;`,
		`if a { } else { if b { print 1; } }`,
		`for i = 0; !(i >= 3); i = i + 1 { print i; }`,
	}
	for _, src := range sources {
		once, err := Pretty(src)
		require.NoError(t, err, src)
		twice, err := Pretty(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice)
		assert.Equal(t, DumpAST(mustParse(t, src)), DumpAST(mustParse(t, once)))
	}
}

func Test_Pretty_Explicit_Else_Block_Is_Not_Else_If(t *testing.T) {
	got, err := Pretty(`if a { } else { if b { } }`)
	require.NoError(t, err)
	assert.Equal(t, "if a {} else {\n    if b {}\n}\n", got)
}

func Test_Pretty_Refuses_Syntax_Errors(t *testing.T) {
	_, err := Pretty("let = 1;")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "PARSE ERROR at 1:5"))
}

func Test_DumpExpr(t *testing.T) {
	prog := mustParse(t, `f(x = -1, "q");`)
	e := prog.Statements[0].(*ExpressionStmt).Expr
	assert.Equal(t, `(call f (= x (- 1)) "q")`, DumpExpr(e))
}

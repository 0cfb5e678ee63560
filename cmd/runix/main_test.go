package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runix-lang/runix"
)

// runApp runs the CLI with args and returns stdout, stderr and the error.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	settings = runix.DefaultConfig()

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{appName}, args...))
	return stdout.String(), stderr.String(), err
}

func script(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRun(t *testing.T) {
	file := script(t, "ok.rx", "func sq(x) { return x * x; }\nprint sq(7);\nprint \"done\";\n")
	out, _, err := runApp(t, "run", file)
	require.NoError(t, err)
	assert.Equal(t, "49\ndone\n", out)
}

func TestRunReportsErrors(t *testing.T) {
	file := script(t, "bad.rx", "print 1;\nprint nope;\n")
	out, errOut, err := runApp(t, "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "1\n", out)
	assert.Contains(t, errOut, "RUNTIME ERROR in "+file+" at 2:7: undefined variable 'nope'")
}

func TestRunBudgetFlags(t *testing.T) {
	file := script(t, "loop.rx", "while true {}\n")
	_, errOut, err := runApp(t, "--max-steps", "50", "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "step limit of 50 exceeded")

	_, errOut, err = runApp(t, "--timeout", "10ms", "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "time limit of 10ms exceeded")
}

func TestRunConfigFile(t *testing.T) {
	cfg := script(t, "runix.yaml", "max_steps: 20\n")
	file := script(t, "loop.rx", "let i = 0; while i < 100 { i = i + 1; }\n")
	_, errOut, err := runApp(t, "--config", cfg, "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, errOut, "step limit of 20 exceeded")

	// flags win over the file
	_, _, err = runApp(t, "--config", cfg, "--max-steps", "0", "run", file)
	assert.NoError(t, err)
}

func TestHaltOnSyntaxError(t *testing.T) {
	file := script(t, "half.rx", "print 1;\nlet = 2;\n")
	out, errOut, err := runApp(t, "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "1\n", out)
	assert.Contains(t, errOut, "PARSE ERROR")

	out, _, err = runApp(t, "--halt-on-syntax-error", "run", file)
	assert.ErrorIs(t, err, errReported)
	assert.Empty(t, out)
}

func TestCheck(t *testing.T) {
	good := script(t, "good.rx", "print 1;\n")
	bad := script(t, "bad.rx", "print (1;\nlet = 3;\n")
	out, errOut, err := runApp(t, "check", good, bad)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, good+": ok\n", out)
	assert.Contains(t, errOut, "PARSE ERROR in "+bad+" at 1:9")
	assert.Contains(t, errOut, "PARSE ERROR in "+bad+" at 2:5")
}

func TestTokens(t *testing.T) {
	file := script(t, "t.rx", "x >= 1;")
	out, _, err := runApp(t, "tokens", file)
	require.NoError(t, err)
	for _, want := range []string{"KIND", "Identifier", "Operator", ">=", "Number", "EndOfInput", "1:3"} {
		assert.Contains(t, out, want)
	}
}

func TestAst(t *testing.T) {
	file := script(t, "a.rx", "print 1 + 2 * 3;")
	out, _, err := runApp(t, "ast", file)
	require.NoError(t, err)
	assert.Equal(t, "(print (+ 1 (* 2 3)))\n", out)

	out, _, err = runApp(t, "ast", "--raw", file)
	require.NoError(t, err)
	assert.Contains(t, out, "PrintStmt")
	assert.Contains(t, out, "BinaryExpr")
}

func TestFmt(t *testing.T) {
	file := script(t, "f.rx", "let x=1;if x>0{print x;}")
	out, _, err := runApp(t, "fmt", file)
	require.NoError(t, err)
	want := "let x = 1;\nif x > 0 {\n    print x;\n}\n"
	assert.Equal(t, want, out)

	_, _, err = runApp(t, "fmt", "-w", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestVersion(t *testing.T) {
	out, _, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Equal(t, runix.Version+"\n", out)
}

func TestUsageErrors(t *testing.T) {
	_, _, err := runApp(t, "run")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errReported)

	_, _, err = runApp(t, "run", filepath.Join(t.TempDir(), "missing.rx"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = runApp(t, "--verbosity", "chatty", "version")
	assert.Error(t, err)
}

func TestEchoesValue(t *testing.T) {
	assert.True(t, echoesValue("1 + 2;"))
	assert.True(t, echoesValue("let x = 1; x;"))
	assert.False(t, echoesValue("let x = 1;"))
	assert.False(t, echoesValue("print 1;"))
	assert.False(t, echoesValue("1 +"))
}

func TestPromptInput(t *testing.T) {
	lines := []string{"ada", "bob"}
	var prompts []string
	prompt := func(p string) (string, error) {
		prompts = append(prompts, p)
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}

	var out bytes.Buffer
	ip := runix.NewInterpreter(runix.WithOutput(&out))
	ip.RegisterNative("input", 0, promptInput(prompt))
	_, err := ip.EvalSource(`print "hi " + input(); print input(); print input();`)
	require.NoError(t, err)
	assert.Equal(t, "hi ada\nbob\nnull\n", out.String())
	assert.Equal(t, []string{"", "", ""}, prompts)

	aborted := promptInput(func(string) (string, error) { return "", liner.ErrPromptAborted })
	v, err := aborted(ip, nil)
	require.NoError(t, err)
	assert.Equal(t, runix.Null, v)

	broken := promptInput(func(string) (string, error) { return "", errors.New("tty gone") })
	_, err = broken(ip, nil)
	assert.EqualError(t, err, "tty gone")
}

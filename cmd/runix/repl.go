package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/runix-lang/runix"
)

const (
	historyFile = ".runix_history"
	promptMain  = "==> "
	promptCont  = "... "
)

var replHelp = `
REPL commands:
  :help    Show this text
  :vars    List global bindings
  :reset   Forget all global bindings
  :quit    Exit the REPL
`

func replCmd(ctx *cli.Context) error {
	out, errOut := ctx.App.Writer, ctx.App.ErrWriter
	fmt.Fprintf(out, "Runix %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.\n", runix.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	newSession := func() *runix.Interpreter {
		ip := runix.NewInterpreter(runix.WithConfig(settings), runix.WithOutput(out))
		// liner holds the terminal in raw mode; input() must read through it.
		ip.RegisterNative("input", 0, promptInput(ln.Prompt))
		return ip
	}
	ip := newSession()

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return nil
			case ":help":
				fmt.Fprint(out, replHelp)
			case ":vars":
				for _, name := range ip.Global.Names() {
					v, _ := ip.Global.Get(name)
					fmt.Fprintf(out, "%s = %s\n", name, v)
				}
			case ":reset":
				ip = newSession()
			default:
				fmt.Fprintln(out, "unknown command. Type :help for commands.")
			}
			continue
		}

		v, err := ip.EvalPersistentSource(code)
		if err != nil {
			report(errOut, err)
			continue
		}
		if echoesValue(code) {
			fmt.Fprintln(out, valueColor.Sprint(v.String()))
		}
	}
}

// echoesValue reports whether the input ends in a bare expression, whose
// value the REPL shows.
func echoesValue(code string) bool {
	prog, err := runix.ParseSource(code)
	if err != nil || len(prog.Statements) == 0 {
		return false
	}
	_, ok := prog.Statements[len(prog.Statements)-1].(*runix.ExpressionStmt)
	return ok
}

// promptInput is the REPL's input(): one line read through prompt, or null
// once the user ends or aborts input.
func promptInput(prompt func(string) (string, error)) runix.NativeImpl {
	return func(_ *runix.Interpreter, _ []runix.Value) (runix.Value, error) {
		line, err := prompt("")
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
			return runix.Null, nil
		case err != nil:
			return runix.Null, err
		}
		return runix.Str(line), nil
	}
}

// readByParseProbe keeps prompting for continuation lines while the input so
// far only fails because it ends too early.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, perr := runix.ParseSource(src); perr != nil && runix.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}

// runix is the command-line front end of the Runix interpreter.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/runix-lang/runix"
)

const appName = "runix"

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "YAML or TOML configuration file",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level: crit, error, warn, info, debug, trace (or 0-5)",
	}
	maxStepsFlag = cli.Int64Flag{
		Name:  "max-steps",
		Usage: "Abort a run after this many statements and calls (0 = unlimited)",
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Usage: "Abort a run after this much wall-clock time (0 = none)",
	}
	haltFlag = cli.BoolFlag{
		Name:  "halt-on-syntax-error",
		Usage: "Do not run programs that have syntax errors",
	}
	rawFlag = cli.BoolFlag{
		Name:  "raw",
		Usage: "Dump the Go structures instead of S-expressions",
	}
	writeFlag = cli.BoolFlag{
		Name:  "w",
		Usage: "Write the result back to the file instead of stdout",
	}
)

// errReported is returned by commands that already printed their diagnostics.
var errReported = errors.New("errors reported")

// settings is the configuration assembled by the app's Before hook.
var settings = runix.DefaultConfig()

var (
	errColor   = color.New(color.FgRed)
	valueColor = color.New(color.FgHiBlue)
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "run and inspect Runix scripts"
	app.Version = fmt.Sprintf("%s (built %s)", runix.Version, runix.BuildDate)
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Flags = []cli.Flag{configFlag, verbosityFlag, maxStepsFlag, timeoutFlag, haltFlag}
	app.Before = func(ctx *cli.Context) error {
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		settings = cfg
		return setupLogging(ctx.App.ErrWriter, cfg.LogLevel)
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Run a script",
			ArgsUsage: "<file>",
			Action:    runCmd,
		},
		{
			Name:   "repl",
			Usage:  "Start an interactive session",
			Action: replCmd,
		},
		{
			Name:      "check",
			Usage:     "Report lexical and syntax errors without running",
			ArgsUsage: "<file>...",
			Action:    checkCmd,
		},
		{
			Name:      "tokens",
			Usage:     "Print the token stream as a table",
			ArgsUsage: "<file>",
			Action:    tokensCmd,
		},
		{
			Name:      "ast",
			Usage:     "Print the syntax tree",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{rawFlag},
			Action:    astCmd,
		},
		{
			Name:      "fmt",
			Usage:     "Print a script in canonical layout",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{writeFlag},
			Action:    fmtCmd,
		},
		{
			Name:  "version",
			Usage: "Print the version",
			Action: func(ctx *cli.Context) error {
				fmt.Fprintln(ctx.App.Writer, runix.Version)
				return nil
			},
		},
	}
	return app
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		}
		os.Exit(1)
	}
}

// makeConfig layers the config file, RUNIX_* variables and global flags.
func makeConfig(ctx *cli.Context) (runix.Config, error) {
	cfg := runix.DefaultConfig()
	if file := ctx.GlobalString(configFlag.Name); file != "" {
		var err error
		if cfg, err = runix.LoadConfig(file); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if ctx.GlobalIsSet(maxStepsFlag.Name) {
		cfg.MaxSteps = ctx.GlobalInt64(maxStepsFlag.Name)
	}
	if ctx.GlobalIsSet(timeoutFlag.Name) {
		cfg.Timeout = runix.Duration(ctx.GlobalDuration(timeoutFlag.Name))
	}
	if ctx.GlobalIsSet(haltFlag.Name) {
		cfg.HaltOnSyntaxError = ctx.GlobalBool(haltFlag.Name)
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.LogLevel = ctx.GlobalString(verbosityFlag.Name)
	}
	return cfg, cfg.Validate()
}

// readSource reads the single file argument of a command.
func readSource(ctx *cli.Context) (name, src string, err error) {
	if ctx.NArg() != 1 {
		return "", "", fmt.Errorf("usage: %s %s %s", appName, ctx.Command.Name, ctx.Command.ArgsUsage)
	}
	name = ctx.Args().First()
	data, err := os.ReadFile(name)
	if err != nil {
		return name, "", fmt.Errorf("cannot read %s: %w", name, err)
	}
	return name, string(data), nil
}

func report(w io.Writer, err error) {
	fmt.Fprintln(w, errColor.Sprint(strings.TrimRight(err.Error(), "\n")))
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func runCmd(ctx *cli.Context) error {
	name, src, err := readSource(ctx)
	if err != nil {
		return err
	}
	ip := runix.NewInterpreter(
		runix.WithConfig(settings),
		runix.WithOutput(ctx.App.Writer),
		runix.WithSourceName(name),
	)
	log.Debug("Running script", "file", name, "bytes", len(src))
	if _, err := ip.EvalSource(src); err != nil {
		report(ctx.App.ErrWriter, err)
		return errReported
	}
	return nil
}

// -----------------------------------------------------------------------------
// check
// -----------------------------------------------------------------------------

func checkCmd(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("usage: %s check <file>...", appName)
	}
	failed := 0
	for _, name := range ctx.Args() {
		data, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", name, err)
		}
		if _, err := runix.ParseSource(string(data)); err != nil {
			report(ctx.App.ErrWriter, runix.WrapErrorWithName(err, name, string(data)))
			failed++
			continue
		}
		fmt.Fprintf(ctx.App.Writer, "%s: ok\n", name)
	}
	if failed > 0 {
		return errReported
	}
	return nil
}

// -----------------------------------------------------------------------------
// tokens
// -----------------------------------------------------------------------------

func tokensCmd(ctx *cli.Context) error {
	name, src, err := readSource(ctx)
	if err != nil {
		return err
	}
	toks, lexErr := runix.Tokenize(src)

	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetHeader([]string{"#", "Kind", "Lexeme", "Pos", "Offset"})
	for i, t := range toks {
		table.Append([]string{
			fmt.Sprint(i),
			t.Kind.String(),
			t.Lexeme,
			t.Pos.String(),
			fmt.Sprint(t.Offset),
		})
	}
	table.Render()

	if lexErr != nil {
		report(ctx.App.ErrWriter, runix.WrapErrorWithName(lexErr, name, src))
		return errReported
	}
	return nil
}

// -----------------------------------------------------------------------------
// ast
// -----------------------------------------------------------------------------

func astCmd(ctx *cli.Context) error {
	name, src, err := readSource(ctx)
	if err != nil {
		return err
	}
	prog, perr := runix.ParseSource(src)
	if ctx.Bool(rawFlag.Name) {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(ctx.App.Writer, prog)
	} else {
		fmt.Fprint(ctx.App.Writer, runix.DumpAST(prog))
	}
	if perr != nil {
		report(ctx.App.ErrWriter, runix.WrapErrorWithName(perr, name, src))
		return errReported
	}
	return nil
}

// -----------------------------------------------------------------------------
// fmt
// -----------------------------------------------------------------------------

func fmtCmd(ctx *cli.Context) error {
	name, src, err := readSource(ctx)
	if err != nil {
		return err
	}
	pretty, err := runix.Pretty(src)
	if err != nil {
		report(ctx.App.ErrWriter, err)
		return errReported
	}
	if !ctx.Bool(writeFlag.Name) {
		fmt.Fprint(ctx.App.Writer, pretty)
		return nil
	}
	if pretty == src {
		return nil
	}
	info, err := os.Stat(name)
	if err != nil {
		return err
	}
	return os.WriteFile(name, []byte(pretty), info.Mode().Perm())
}

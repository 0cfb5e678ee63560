package main

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/runix-lang/runix"
)

// setupLogging routes the root logger to w at the given level. When w is the
// process's stderr and that is a terminal, records are colored.
func setupLogging(w io.Writer, level string) error {
	lvl, err := runix.ParseLogLevel(level)
	if err != nil {
		return err
	}
	usecolor := false
	if f, ok := w.(*os.File); ok && f == os.Stderr {
		usecolor = (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) && os.Getenv("TERM") != "dumb"
		if usecolor {
			w = colorable.NewColorableStderr()
		}
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(w, log.TerminalFormat(usecolor))))
	return nil
}

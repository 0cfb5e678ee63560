package runix

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

// The package logs through go-ethereum's log15-style root logger and never
// installs a handler itself: until the host calls log.Root().SetHandler,
// records are discarded.
var pkgLog = log.New("pkg", "runix")

// newRunLogger tags every record of one evaluation with a fresh run id.
func newRunLogger(base log.Logger) (log.Logger, string) {
	id := uuid.New().String()
	return base.New("run", id), id
}

// ParseLogLevel maps a level name (crit, error, warn, info, debug, trace) or
// its number (0 to 5) to a log.Lvl.
func ParseLogLevel(s string) (log.Lvl, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '5' {
		return log.Lvl(s[0] - '0'), nil
	}
	lvl, err := log.LvlFromString(s)
	if err != nil {
		return log.LvlInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

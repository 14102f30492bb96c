package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// SetLevel applies a level name such as "debug" or "trace". TRACE in the
// environment always wins.
func SetLevel(level string) {
	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
		return
	}

	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		L.Warn("unknown log level, keeping current", "level", level)
		return
	}

	L.SetLevel(lvl)
}

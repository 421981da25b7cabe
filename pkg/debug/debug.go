// Package debug provides conditional debug logging for dv.
//
// Debug logging is enabled by setting the DV_DEBUG environment variable:
//
//	DV_DEBUG=1 dv tree --tree bantu payload.json
//
// or by running with --log-level debug. When disabled (default), the helpers
// below return before formatting anything.
package debug

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	enabled atomic.Bool
	logger  atomic.Pointer[zerolog.Logger]
)

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000000"}).
		With().
		Timestamp().
		Logger()
	logger.Store(&l)
	if os.Getenv("DV_DEBUG") != "" {
		enabled.Store(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// SetLogger replaces the logger all helpers write to. A logger at debug level
// or below also enables debug logging.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
	if l.GetLevel() <= zerolog.DebugLevel {
		enabled.Store(true)
	}
}

// Logger returns the current logger. Components derive their own from it:
//
//	log := debug.Logger().With().Str("component", "geomap").Logger()
func Logger() zerolog.Logger {
	return *logger.Load()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	event().Msg(fmt.Sprintf(format, args...))
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	event().Str("op", name).Dur("took", d).Msg("timing")
}

// event writes regardless of the logger's level.
func event() *zerolog.Event {
	l := logger.Load()
	return l.Log().Str(zerolog.LevelFieldName, zerolog.DebugLevel.String())
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	}
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	Log("-> %s", name)
	start := time.Now()
	return func() {
		LogTiming(name, time.Since(start))
	}
}

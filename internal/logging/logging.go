// Package logging provides leveled helpers over the standard logger.
// Verbosity comes from the count of -v flags on the command line.
package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level represents logging severity.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetVerbosity maps the count of -v flags to a level:
// 0 info, 1 debug, 2 or more trace.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		SetLevel(LevelInfo)
	case count == 1:
		SetLevel(LevelDebug)
	default:
		SetLevel(LevelTrace)
	}
}

// SetLevel sets the most verbose level that is printed.
func SetLevel(l Level) {
	currentLevel.Store(int32(l))
}

// CurrentLevel returns the active level.
func CurrentLevel() Level {
	return Level(currentLevel.Load())
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLevel accepts the names printed by Level.String.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Enabled reports whether messages at l are printed.
func Enabled(l Level) bool {
	return l <= CurrentLevel()
}

func logf(l Level, prefix, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

// Errorf always prints.
func Errorf(format string, args ...any) {
	logf(LevelError, "ERR", format, args...)
}

func Warnf(format string, args ...any) {
	logf(LevelWarn, "WARN", format, args...)
}

func Infof(format string, args ...any) {
	logf(LevelInfo, "INFO", format, args...)
}

func Debugf(format string, args ...any) {
	logf(LevelDebug, "DBG", format, args...)
}

func Tracef(format string, args ...any) {
	logf(LevelTrace, "TRC", format, args...)
}

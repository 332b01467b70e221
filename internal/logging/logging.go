package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// levelNames are the names accepted by ParseLevel and printed by String.
var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
	output       atomic.Pointer[log.Logger]
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput sends every later message to w.
func SetOutput(w io.Writer) {
	output.Store(log.New(w, "", log.LstdFlags))
}

// ParseLevel converts a level name into a LogLevel. The boolean is false
// when the name is not recognised.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	for level, n := range levelNames {
		if n == name {
			return LogLevel(level), true
		}
	}
	return LevelInfo, false
}

// initLevel reads DEBUG and LOG_LEVEL once. DEBUG wins when truthy.
func initLevel() {
	levelOnce.Do(func() {
		switch strings.ToLower(os.Getenv("DEBUG")) {
		case "1", "true", "yes", "on":
			currentLevel.Store(int32(LevelDebug))
			return
		}
		level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
		currentLevel.Store(int32(level))
	})
}

// SetLevel overrides the level derived from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// logf writes one message tagged with level when the level is enabled.
func logf(level LogLevel, format string, args []interface{}) {
	if GetLevel() > level {
		return
	}
	tag := "[" + strings.ToUpper(level.String()) + "] "
	_ = output.Load().Output(3, tag+fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args) }

// Info logs an info message
func Info(format string, args ...interface{}) { logf(LevelInfo, format, args) }

// Warn logs a warning message
func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args) }

// Error logs an error message
func Error(format string, args ...interface{}) { logf(LevelError, format, args) }

// Fatal logs a message regardless of level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	_ = output.Load().Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", l)
}

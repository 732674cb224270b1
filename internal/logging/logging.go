// Package logging adds verbosity levels on top of the standard logger while
// keeping the "[Component] message" line format used across the code base.
package logging

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a logging verbosity
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps ERROR, WARN, INFO or DEBUG (any case) to a level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "INFO":
		return LevelInfo, true
	case "DEBUG":
		return LevelDebug, true
	}
	return LevelInfo, false
}

var current atomic.Int32

func init() {
	lvl, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
	current.Store(int32(lvl))
}

// SetLevel changes the process-wide level
func SetLevel(l Level) { current.Store(int32(l)) }

// GetLevel returns the process-wide level
func GetLevel() Level { return Level(current.Load()) }

// Enabled reports whether messages at l are written
func Enabled(l Level) bool { return GetLevel() >= l }

// Logger writes lines tagged with a component name
type Logger struct {
	prefix string
}

// New creates a logger for component, e.g. New("Reconcile")
func New(component string) *Logger {
	return &Logger{prefix: "[" + component + "] "}
}

// Errorf logs at LevelError
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LevelError, format, args...)
}

// Warnf logs at LevelWarn
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf(LevelWarn, format, args...)
}

// Infof logs at LevelInfo
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LevelInfo, format, args...)
}

// Debugf logs at LevelDebug
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LevelDebug, format, args...)
}

func (l *Logger) printf(lvl Level, format string, args ...interface{}) {
	if Enabled(lvl) {
		log.Printf(l.prefix+format, args...)
	}
}

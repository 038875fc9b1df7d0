// Package logger provides leveled logging for the non-pure layers.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a Level, defaulting to InfoLevel
// for unrecognized names.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger = &Logger{
	level:  InfoLevel,
	logger: log.New(os.Stderr, "", log.LstdFlags),
}

// Init initializes the default logger. Format "text" includes the
// caller's file and line, anything else keeps timestamps only.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  ParseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(level Level, format string, args ...interface{}) {
	if defaultLogger.level > level {
		return
	}
	msg := fmt.Sprintf("["+strings.ToUpper(level.String())+"] "+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	_ = defaultLogger.logger.Output(2, msg)
	os.Exit(1)
}

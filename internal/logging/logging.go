package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

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

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	sinkMu     sync.Mutex
	errorFile  *os.File
	errorLog   *log.Logger
	statusFile *os.File
	statusLog  *log.Logger
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// Check DEBUG environment variable first
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}

		// Check LOG_LEVEL environment variable
		levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
		switch levelStr {
		case "debug":
			currentLevel = LevelDebug
		case "info":
			currentLevel = LevelInfo
		case "warn", "warning":
			currentLevel = LevelWarn
		case "error":
			currentLevel = LevelError
		default:
			// Default to Info level (no debug logs)
			currentLevel = LevelInfo
		}
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// SetErrorLog opens (or creates) the application error log at path.
// ERROR and FATAL messages are appended there in addition to the console.
func SetErrorLog(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open error log: %w", err)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if errorFile != nil {
		_ = errorFile.Close()
	}
	errorFile = f
	errorLog = log.New(f, "", log.LstdFlags)
	return nil
}

// SetStatusLog opens (or creates) the status log at path. Completion
// messages written via Status are appended there.
func SetStatusLog(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open status log: %w", err)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if statusFile != nil {
		_ = statusFile.Close()
	}
	statusFile = f
	statusLog = log.New(f, "", log.LstdFlags)
	return nil
}

// CloseLogs closes the file sinks. Safe to call when no file sinks were
// configured.
func CloseLogs() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if errorFile != nil {
		_ = errorFile.Close()
		errorFile = nil
		errorLog = nil
	}
	if statusFile != nil {
		_ = statusFile.Close()
		statusFile = nil
		statusLog = nil
	}
}

func toErrorSink(format string, args ...interface{}) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if errorLog != nil {
		errorLog.Printf(format, args...)
	}
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message to the console and the error log file
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
	toErrorSink("ERROR "+format, args...)
}

// Fatal logs an error message to both sinks and exits
func Fatal(format string, args ...interface{}) {
	toErrorSink("FATAL "+format, args...)
	CloseLogs()
	log.Fatalf("[FATAL] "+format, args...)
}

// Status logs a completion message to the status log and the console
func Status(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if statusLog != nil {
		statusLog.Printf(format, args...)
	}
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Package logger is the process-wide file logger. Nothing is written until
// Init or SetOutput is called.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	verbose      bool
	mu           sync.Mutex
)

// Init opens (appending) the log file at logPath, creating its directory.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)
	return nil
}

// SetOutput logs to w instead of a file. A nil writer disables logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if w == nil {
		globalLogger = nil
		return
	}
	globalLogger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// SetVerbose enables Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

func printf(level, prefix, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		return
	}
	if level == "DEBUG" && !verbose {
		return
	}
	globalLogger.Printf("["+level+"] "+prefix+format, v...)
}

// Info logs an info message.
func Info(format string, v ...interface{}) { printf("INFO", "", format, v...) }

// Debug logs a debug message when verbose output is enabled.
func Debug(format string, v ...interface{}) { printf("DEBUG", "", format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { printf("ERROR", "", format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { printf("WARN", "", format, v...) }

// GetWriter returns the underlying log file, or io.Discard.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

// Logger writes through the global logger with a component prefix.
// The zero value logs without a prefix.
type Logger struct {
	prefix string
}

// Component returns a Logger whose lines are tagged with name.
func Component(name string) Logger {
	return Logger{prefix: name + ": "}
}

func (l Logger) Info(format string, v ...interface{})  { printf("INFO", l.prefix, format, v...) }
func (l Logger) Debug(format string, v ...interface{}) { printf("DEBUG", l.prefix, format, v...) }
func (l Logger) Warn(format string, v ...interface{})  { printf("WARN", l.prefix, format, v...) }
func (l Logger) Error(format string, v ...interface{}) { printf("ERROR", l.prefix, format, v...) }

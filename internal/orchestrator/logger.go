package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// logStamp is the timestamp layout for debug log lines.
const logStamp = "15:04:05.000"

var (
	pkgLogger   *DebugLogger
	pkgLoggerMu sync.RWMutex
)

// setPackageLogger installs the logger used by debugLog. Run sets it so
// components without an engine reference share the engine's log file.
func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes through the package-level logger, if one is installed.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// DebugLogger appends timestamped lines to a log file. A zero DebugLogger is
// a valid no-op logger; every method tolerates a nil receiver.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger opens a logger at the given path, creating parent
// directories as needed. An empty path yields a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{file: f}
	logger.Log("--- atlas engine log opened %s ---", time.Now().Format(time.RFC3339))

	return logger, nil
}

// NewDebugLoggerForDir opens the standard engine log under the given
// directory's .atlas/logs subdirectory, falling back to a no-op logger on
// failure.
func NewDebugLoggerForDir(dir string) *DebugLogger {
	logger, err := NewDebugLogger(filepath.Join(dir, ".atlas", "logs", "engine-debug.log"))
	if err != nil {
		return &DebugLogger{}
	}
	return logger
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one timestamped line. Each line is synced so the log survives a
// crash mid-run.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.file, "[%s] %s\n", time.Now().Format(logStamp), fmt.Sprintf(format, args...))
	l.file.Sync()
}

// Close closes the underlying file.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

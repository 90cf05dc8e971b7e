// Package applog provides general-purpose application logging.
//
// Logs are written as JSON lines to ~/.onyxprism/logs/app.log.
// The terminal belongs to the TUI, so nothing is ever written to stdout.
// Covers: app start/stop, sign-in, API calls, onboarding steps.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// DefaultPath returns ~/.onyxprism/logs/app.log.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".onyxprism", "logs", "app.log"), nil
}

// Init opens the log file at path and installs a zap logger at the
// given level ("debug", "info", "warn", "error").
func Init(path, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the process logger. Tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// L returns the process logger for structured fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	L().Info(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	L().Error(fmt.Sprintf(format, args...))
}

// Event logs a message under a category such as "session" or "onboard".
func Event(category string, format string, args ...interface{}) {
	L().Info(fmt.Sprintf(format, args...), zap.String("category", category))
}

// Close flushes buffered entries.
func Close() {
	_ = L().Sync()
}

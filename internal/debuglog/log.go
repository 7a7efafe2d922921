// Package debuglog writes leveled diagnostics to a file. The TUI owns
// stdout/stderr, so logging anywhere else would corrupt the screen.
package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	logger  zerolog.Logger
	logFile *os.File
	enabled bool
)

// Setup opens the log file and configures the level. An empty level or
// "off" disables logging entirely; an empty path defaults to
// ~/.reelfeed/reelfeed.log.
func Setup(level, path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	enabled = false

	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	if lvl == zerolog.Disabled {
		return nil
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		dir := filepath.Join(home, ".reelfeed")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		path = filepath.Join(dir, "reelfeed.log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}

	logFile = f
	logger = zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	enabled = true
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return zerolog.Disabled, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.Disabled, fmt.Errorf("unknown log level %q", s)
	}
}

// Close closes the log file if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	enabled = false
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

func Debugf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		logger.Debug().Msgf(format, args...)
	}
}

func Infof(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		logger.Info().Msgf(format, args...)
	}
}

func Warnf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		logger.Warn().Msgf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		logger.Error().Msgf(format, args...)
	}
}

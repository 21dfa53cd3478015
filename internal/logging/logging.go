// Package logging configures the process logger from the logging config section.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/config"
	"github.com/lestrrat-go/strftime"
	"github.com/sirupsen/logrus"
)

// ParseLevel accepts logrus level names plus the WARNING and CRITICAL
// spellings found in older config files.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "":
		return logrus.InfoLevel, nil
	case "WARNING":
		return logrus.WarnLevel, nil
	case "CRITICAL":
		return logrus.FatalLevel, nil
	}
	return logrus.ParseLevel(strings.ToLower(level))
}

// Setup builds a logger. With logging disabled only warnings and above reach
// stderr. Otherwise records go to the strftime-expanded log file, or stderr
// when no file is set. An unknown level falls back to info with a warning.
// The returned closer releases the file.
func Setup(cfg config.LoggingConfig, debug bool, now time.Time) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	noop := func() error { return nil }

	if !cfg.Enabled {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.WarnLevel)
		if debug {
			logger.SetLevel(logrus.DebugLevel)
		}
		return logger, noop, nil
	}

	level, levelErr := ParseLevel(cfg.Level)
	if levelErr != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.LogFile == "" {
		logger.SetOutput(os.Stderr)
		warnLevel(logger, cfg.Level, levelErr)
		return logger, noop, nil
	}

	path, err := FormatPath(cfg.LogFile, now)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger.SetOutput(f)
	warnLevel(logger, cfg.Level, levelErr)

	return logger, f.Close, nil
}

func warnLevel(logger *logrus.Logger, level string, err error) {
	if err != nil {
		logger.WithField("log_level", level).Warn("unknown logging level, using info")
	}
}

// FormatPath expands strftime verbs such as %Y%m%d in pattern.
func FormatPath(pattern string, now time.Time) (string, error) {
	path, err := strftime.Format(pattern, now)
	if err != nil {
		return "", fmt.Errorf("invalid strftime pattern %q: %w", pattern, err)
	}
	return config.ExpandPath(path)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

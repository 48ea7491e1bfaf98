// Package log configures logrus loggers used by rack components.
package log

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	debug  bool
	logger = logrus.New()
)

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("RACK_DEBUG"))
	if err != nil {
		debug = false
	}
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// GetLogger returns the shared logger instance.
func GetLogger() *logrus.Logger {
	return logger
}

// Component returns a logger with component fields.
func Component(kind, id string) logrus.FieldLogger {
	return logger.WithFields(logrus.Fields{
		"component": kind,
		"id":        id,
	})
}

// Configure sets level and output of the shared logger. Supported levels
// are none, error, warn, info and debug. RACK_DEBUG overrides the level.
// If file is not empty, JSON records are appended to it and returned
// closer must be called on exit.
func Configure(level, file string) (io.Closer, error) {
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		l = logrus.DebugLevel
	}
	logger.SetLevel(l)
	if file == "" {
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{})
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return f, nil
}

func parseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "none":
		return logrus.PanicLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

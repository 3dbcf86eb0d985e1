// Package logging provides component loggers sharing one configured logrus
// root logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	root      = newRoot()
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	logFile   *os.File
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("SAGRADA_LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// Setup applies cfg to the root logger shared by every component logger.
func Setup(cfg Config) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	levelStr := "info"
	if env := os.Getenv("SAGRADA_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("log level %q: %w", levelStr, err)
	}
	root.SetLevel(level)
	root.SetReportCaller(cfg.ReportCaller)

	switch cfg.Format {
	case "", "text":
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		root.SetOutput(os.Stderr)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	root.SetOutput(f)
	return nil
}

// SetOutput redirects the root logger, mainly for tests.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Root returns the shared root logger.
func Root() *logrus.Logger {
	return root
}

// NewLogger returns the logger for a component. Loggers are cached per
// component and follow later Setup calls.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}
	entry := root.WithField("component", component)
	loggers[component] = entry
	return entry
}

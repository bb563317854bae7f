/*
Package logger provides the process-wide structured logger.

PURPOSE:
  One charmbracelet/log logger shared by the server, the portal client and
  the CLI. When a log directory is configured, output goes to a rotating
  file (lumberjack) and, in debug mode, is mirrored to stderr. Without a
  directory it writes to stderr only.

USAGE:
  if err := logger.Init(logger.Config{Dir: cfg.LogDir, Debug: cfg.Debug}); err != nil {
      return err
  }
  logger.Info("server started", "addr", addr)

SEE ALSO:
  - config/config.go: log_dir, debug
*/
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger
)

// FileName is the name of the rotating log file inside Config.Dir.
const FileName = "quelio.log"

// Config holds logger configuration
type Config struct {
	Debug bool
	Dir   string // empty: stderr only
}

// New builds a logger for cfg without touching the global one.
func New(cfg Config) (*log.Logger, error) {
	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	var writer io.Writer = os.Stderr
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, FileName),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		if cfg.Debug {
			writer = io.MultiWriter(os.Stderr, fileWriter)
		} else {
			writer = fileWriter
		}
	}

	return log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "quelio",
	}), nil
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// Debug logs a debug message
func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

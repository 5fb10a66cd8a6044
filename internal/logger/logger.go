// Package logger provides process-wide logging for cmsync.
//
// Messages always go to the rotating log file once Configure has been
// called. When verbose mode is enabled via the --verbose flag they are
// also echoed to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	verbose bool
	console = zapcore.Lock(zapcore.AddSync(os.Stderr))
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	file    *lumberjack.Logger
	sugar   = zap.NewNop().Sugar()
	onFile  = zap.NewNop().Sugar()
)

// Options configures the log file.
type Options struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Configure opens the rotating log file and sets the file log level.
// An unknown level falls back to info and is reported as a warning.
func Configure(opts Options) error {
	lvl, lvlErr := zapcore.ParseLevel(strings.ToLower(opts.Level))
	if lvlErr != nil {
		lvl = zapcore.InfoLevel
	}

	mu.Lock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			mu.Unlock()
			return fmt.Errorf("create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
	}
	level.SetLevel(lvl)
	rebuild()
	mu.Unlock()

	if lvlErr != nil && opts.Level != "" {
		Warn("unknown log level %q, using info", opts.Level)
	}
	return nil
}

// Close flushes and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	_ = sugar.Sync()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	rebuild()
	return err
}

// SetVerbose enables or disables console logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the console writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = zapcore.Lock(zapcore.AddSync(w))
	rebuild()
}

// rebuild recreates the logger from current state (caller must hold lock).
func rebuild() {
	onFile = zap.NewNop().Sugar()
	var cores []zapcore.Core
	if verbose {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			console,
			zapcore.DebugLevel,
		))
	}
	if file != nil {
		fileCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(fileEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(file)),
			level,
		)
		onFile = zap.New(fileCore).Sugar()
		cores = append(cores, fileCore)
	}
	if len(cores) == 0 {
		sugar = zap.NewNop().Sugar()
		return
	}
	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      bracketLevelEncoder,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	}
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " - "
	return cfg
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	current().Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	current().Errorf(format, args...)
}

// Section prints a section header to the console if verbose mode is enabled
// and records it in the log file.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		_, _ = fmt.Fprintf(console, "\n=== %s ===\n", name)
	}
	onFile.Infof("=== %s ===", name)
}

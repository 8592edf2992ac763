// Package logger provides the unified logging system for LynxDB
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the log level
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for general informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
	// LevelFatal for fatal errors; logging at this level exits the process
	LevelFatal
	// LevelSilent disables all logging
	LevelSilent
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "fatal", "FATAL":
		return LevelFatal
	case "silent", "SILENT":
		return LevelSilent
	default:
		return LevelInfo // default to INFO
	}
}

// Config represents logger configuration
type Config struct {
	// Level is the minimum log level to output
	Level Level
	// Output specifies where to write logs: "stdout", "stderr", or a file path
	Output string
	// Format specifies log format: "text" or "json"
	Format string
	// EnableCaller adds file:line information to logs
	EnableCaller bool
	// EnableTimestamp adds timestamp to logs
	EnableTimestamp bool
	// File rotation settings (only used when Output is a file path)
	MaxSize    int  // megabytes
	MaxBackups int  // number of backups to keep
	MaxAge     int  // days
	Compress   bool // compress rotated files
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		Output:          "stdout",
		Format:          "text",
		EnableCaller:    false,
		EnableTimestamp: true,
		MaxSize:         100,  // 100 MB
		MaxBackups:      3,    // keep 3 backups
		MaxAge:          7,    // 7 days
		Compress:        true, // compress old logs
	}
}

// Logger is the main logger instance
type Logger struct {
	mu              sync.RWMutex
	level           Level
	out             io.Writer
	format          string
	enableCaller    bool
	enableTimestamp bool
	exit            func(int) // replaceable in tests
}

var (
	// globalLogger is the default logger instance
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger with the given configuration
func Init(cfg *Config) error {
	var initErr error
	once.Do(func() {
		globalLogger, initErr = NewLogger(cfg)
	})
	if initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	return nil
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var out io.Writer

	// Determine output destination
	switch cfg.Output {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		// File output with rotation
		dir := filepath.Dir(cfg.Output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
	}

	return &Logger{
		level:           cfg.Level,
		out:             out,
		format:          cfg.Format,
		enableCaller:    cfg.EnableCaller,
		enableTimestamp: cfg.EnableTimestamp,
		exit:            os.Exit,
	}, nil
}

// NewWriterLogger creates a text logger writing to w; used by tests and tools
// that capture log output
func NewWriterLogger(w io.Writer, level Level) *Logger {
	return &Logger{
		level:           level,
		out:             w,
		format:          "text",
		enableTimestamp: false,
		exit:            os.Exit,
	}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level && l.level != LevelSilent
}

// write renders one log line; all level methods funnel through here so the
// two formats stay consistent
func (l *Logger) write(level Level, msg string) {
	var caller string
	if l.enableCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := map[string]interface{}{
			"level":   level.String(),
			"message": msg,
		}
		if l.enableTimestamp {
			entry["timestamp"] = time.Now().Format("2006-01-02T15:04:05.000000Z07:00")
		}
		if caller != "" {
			entry["caller"] = caller
		}
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			// Fallback to text format if JSON marshaling fails
			fmt.Fprintf(l.out, "[%s] %s\n", level, msg)
			return
		}
		fmt.Fprintln(l.out, string(jsonBytes))
		return
	}

	line := "[" + level.String() + "] "
	if l.enableTimestamp {
		line += time.Now().Format("2006/01/02 15:04:05.000000") + " "
	}
	if caller != "" {
		line += caller + ": "
	}
	fmt.Fprintln(l.out, line+msg)
}

func (l *Logger) log(level Level, format string, v ...interface{}) {
	if !l.IsLevelEnabled(level) {
		return
	}
	l.write(level, fmt.Sprintf(format, v...))
	if level == LevelFatal {
		l.exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LevelWarn, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LevelError, format, v...)
}

// Fatal logs a fatal message and exits the process
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(LevelFatal, format, v...)
}

// Global logger functions

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with default config if not already initialized
		_ = Init(DefaultConfig())
	}
	return globalLogger
}

// SetLevel changes the global logger level
func SetLevel(level Level) {
	GetGlobalLogger().SetLevel(level)
}

// Debug logs a debug message using the global logger
func Debug(format string, v ...interface{}) {
	GetGlobalLogger().Debug(format, v...)
}

// Info logs an info message using the global logger
func Info(format string, v ...interface{}) {
	GetGlobalLogger().Info(format, v...)
}

// Warn logs a warning message using the global logger
func Warn(format string, v ...interface{}) {
	GetGlobalLogger().Warn(format, v...)
}

// Error logs an error message using the global logger
func Error(format string, v ...interface{}) {
	GetGlobalLogger().Error(format, v...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(format string, v ...interface{}) {
	GetGlobalLogger().Fatal(format, v...)
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return GetGlobalLogger().IsLevelEnabled(LevelDebug)
}

// IsInfoEnabled checks if info logging is enabled
func IsInfoEnabled() bool {
	return GetGlobalLogger().IsLevelEnabled(LevelInfo)
}

// WithField returns a FieldLogger with a single field
func WithField(key string, value interface{}) *FieldLogger {
	return &FieldLogger{
		logger: GetGlobalLogger(),
		fields: map[string]interface{}{key: value},
	}
}

// WithFields returns a FieldLogger with multiple fields
func WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{
		logger: GetGlobalLogger(),
		fields: fields,
	}
}

// Named returns a FieldLogger tagged with a component name; subsystems use
// this to keep one logger per component
func Named(component string) *FieldLogger {
	return WithField("component", component)
}

// FieldLogger provides structured logging with fields
type FieldLogger struct {
	logger *Logger
	fields map[string]interface{}
}

// WithField returns a new FieldLogger with an additional field
func (fl *FieldLogger) WithField(key string, value interface{}) *FieldLogger {
	fields := make(map[string]interface{}, len(fl.fields)+1)
	for k, v := range fl.fields {
		fields[k] = v
	}
	fields[key] = value
	return &FieldLogger{logger: fl.logger, fields: fields}
}

// formatWithFields formats a message with fields appended in key order
func (fl *FieldLogger) formatWithFields(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if len(fl.fields) == 0 {
		return msg
	}

	keys := make([]string, 0, len(fl.fields))
	for k := range fl.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldStr := ""
	for _, k := range keys {
		fieldStr += fmt.Sprintf(" %s=%v", k, fl.fields[k])
	}
	return msg + fieldStr
}

// Debug logs a debug message with fields
func (fl *FieldLogger) Debug(format string, v ...interface{}) {
	fl.logger.Debug("%s", fl.formatWithFields(format, v...))
}

// Info logs an info message with fields
func (fl *FieldLogger) Info(format string, v ...interface{}) {
	fl.logger.Info("%s", fl.formatWithFields(format, v...))
}

// Warn logs a warning message with fields
func (fl *FieldLogger) Warn(format string, v ...interface{}) {
	fl.logger.Warn("%s", fl.formatWithFields(format, v...))
}

// Error logs an error message with fields
func (fl *FieldLogger) Error(format string, v ...interface{}) {
	fl.logger.Error("%s", fl.formatWithFields(format, v...))
}

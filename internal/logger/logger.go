package logger

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
)

// Logger is the logging facility handed to the engine and every executor.
// zap serialises writes to each sink, so it is safe to share between the
// engine and the goroutines that drain child process output.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Config contains configuration for the logger
type Config struct {
	Debug     bool   // Enable debug level logging
	LogFormat string // "json" or "human"
	LogFile   string // Path to log file (optional)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Debug:     false,
		LogFormat: "human",
	}
}

// New builds a logger with the provided configuration
func New(config Config) (*Logger, error) {
	var zapConfig zap.Config

	if config.LogFormat == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.DisableStacktrace = true
	}

	outputPaths := []string{"stdout"}
	if config.LogFile != "" {
		logDir := filepath.Dir(config.LogFile)
		if err := fsutil.CreateDirIfNotExists(logDir); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		outputPaths = append(outputPaths, config.LogFile)
	}
	zapConfig.OutputPaths = outputPaths

	if config.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zl, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return FromZap(zl), nil
}

// FromZap wraps an existing zap logger
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{sugar: zl.Sugar()}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

func (l *Logger) LogInfo(message string, fields map[string]interface{}) {
	l.sugar.Infow(message, flattenFields(fields)...)
}

func (l *Logger) LogWarn(message string, fields map[string]interface{}) {
	l.sugar.Warnw(message, flattenFields(fields)...)
}

func (l *Logger) LogError(message string, err error, fields map[string]interface{}) {
	kv := flattenFields(fields)
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	l.sugar.Errorw(message, kv...)
}

func (l *Logger) LogDebug(message string, fields map[string]interface{}) {
	l.sugar.Debugw(message, flattenFields(fields)...)
}

// LogSuccess logs at info level tagged with status=success
func (l *Logger) LogSuccess(message string, fields map[string]interface{}) {
	l.sugar.Infow(message, append(flattenFields(fields), "status", "success")...)
}

// LogProgress reports percentage completion of a long running step
func (l *Logger) LogProgress(step string, percent int, status string) {
	l.sugar.Infow(status, "step", step, "progress", fmt.Sprintf("%d%%", percent))
}

// WithStep returns a logger that tags every entry with the step name
func (l *Logger) WithStep(name string) *Logger {
	return &Logger{sugar: l.sugar.With("step", name)}
}

// WithFields returns a logger with multiple fields added to every log
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(flattenFields(fields)...)}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// flattenFields turns a field map into sorted key/value pairs
func flattenFields(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flat := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		flat = append(flat, k, fields[k])
	}
	return flat
}

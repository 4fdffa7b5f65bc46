// Package logger holds the process-wide zap logger and the context keys
// used to tag log lines with pipeline, worker and expression.
package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
)

var global atomic.Pointer[zap.Logger]

type contextKey string

const (
	// PipelineKey carries the pipeline name
	PipelineKey contextKey = "pipeline"
	// WorkerKey carries the worker index
	WorkerKey contextKey = "worker"
	// ExpressionKey carries the expression text being compiled
	ExpressionKey contextKey = "expression"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init builds a logger from cfg and installs it as the global logger.
// A later Init replaces the previous logger.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	global.Store(l)
	return nil
}

func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid log level %q", cfg.Level)
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(cfg.Development),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if zapCfg.Encoding == "" {
		zapCfg.Encoding = "json"
	}
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stdout"}
	}

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	l, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build logger")
	}
	return l, nil
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if development {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}

// Get returns the global logger, installing an info-level JSON logger on
// first use.
func Get() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	l, err := newLogger(Config{Level: "info"})
	if err != nil {
		l = zap.NewNop()
	}
	global.CompareAndSwap(nil, l)
	return global.Load()
}

// Set replaces the global logger. Tests use it with zaptest or observer cores.
func Set(l *zap.Logger) {
	global.Store(l)
}

// ContextWithPipeline tags ctx with the pipeline name.
func ContextWithPipeline(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, PipelineKey, name)
}

// ContextWithWorker tags ctx with a worker index.
func ContextWithWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, WorkerKey, worker)
}

// ContextWithExpression tags ctx with expression text.
func ContextWithExpression(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, ExpressionKey, text)
}

// WithContext returns the global logger with the fields tagged on ctx.
func WithContext(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if v, ok := ctx.Value(PipelineKey).(string); ok {
		fields = append(fields, zap.String("pipeline", v))
	}
	if v, ok := ctx.Value(WorkerKey).(int); ok {
		fields = append(fields, zap.Int("worker", v))
	}
	if v, ok := ctx.Value(ExpressionKey).(string); ok {
		fields = append(fields, zap.String("expression", v))
	}
	if len(fields) == 0 {
		return Get()
	}
	return Get().With(fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }

// Info logs an info message
func Info(msg string, fields ...zap.Field) { Get().Info(msg, fields...) }

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) { Get().Warn(msg, fields...) }

// Error logs an error message
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

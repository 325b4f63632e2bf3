package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/requestid"
)

var globalLogger *Logger

// Logger wraps zap.SugaredLogger with optional error tracking
type Logger struct {
	*zap.SugaredLogger
	errorTracker errors.Tracker
}

// Init initializes the global logger
func Init(level string, env string) error {
	l, err := New(level, env)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// New builds a logger without touching the global one.
// Production uses JSON output, everything else the colored console encoder.
func New(level string, env string) (*Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	zl, err := config.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zl.Sugar()}, nil
}

// Wrap adapts an existing zap logger, mainly for tests
func Wrap(zl *zap.Logger) *Logger {
	return &Logger{SugaredLogger: zl.Sugar()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// SetErrorTracker sets the error tracker for automatic error reporting
func SetErrorTracker(tracker errors.Tracker) {
	if globalLogger != nil {
		globalLogger.errorTracker = tracker
	}
}

// Get returns the global logger
func Get() *Logger {
	if globalLogger == nil {
		zl, _ := zap.NewDevelopment()
		globalLogger = Wrap(zl)
	}
	return globalLogger
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		errorTracker:  l.errorTracker,
	}
}

// WithContext attaches the request id carried by ctx, if any
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := requestid.From(ctx)
	if id == "" {
		return l
	}
	return l.With("request_id", id)
}

// Error logs an error and optionally sends it to error tracker
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)

	if l.errorTracker != nil {
		err := errors.Wrapf(errors.ErrInternal, "%v", args)
		l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// Errorf logs a formatted error and optionally sends it to error tracker
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)

	if l.errorTracker != nil {
		err := fmt.Errorf(template, args...)
		l.errorTracker.CaptureError(context.Background(), err, map[string]string{
			"component": "logger",
		})
	}
}

// ErrorWithContext logs an error with its request id and sends it to the error tracker
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.WithContext(ctx).SugaredLogger.Errorw(err.Error(), "code", errors.Code(err))

	if l.errorTracker != nil {
		if tags == nil {
			tags = map[string]string{}
		}
		if id := requestid.From(ctx); id != "" {
			tags["request_id"] = id
		}
		l.errorTracker.CaptureError(ctx, err, tags)
	}
}

func Info(args ...interface{})                   { Get().Info(args...) }
func Infof(template string, args ...interface{}) { Get().Infof(template, args...) }
func Warn(args ...interface{})                   { Get().Warn(args...) }
func Fatal(args ...interface{})                  { Get().Fatal(args...) }
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

var dsplugLogger atomic.Pointer[DSPlugLogger]

func init() {
	dsplugLogger.Store(NewDSPlugLogger(slog.Default()))
}

type DSPlugLogger struct {
	slogger *slog.Logger
}

func NewDSPlugLogger(l *slog.Logger) *DSPlugLogger {
	if l == nil {
		l = slog.Default()
	}
	return &DSPlugLogger{
		slogger: l,
	}
}

func Default() *DSPlugLogger {
	return dsplugLogger.Load()
}

// SetDefault swaps the package logger. Tests use it to capture output.
func SetDefault(l *DSPlugLogger) {
	if l == nil {
		return
	}
	dsplugLogger.Store(l)
}

func SetLogLevel(level slog.Level) {
	slog.SetLogLoggerLevel(level)
}

// slog wrapper

func Debug(msg string, args ...any) {
	dsplugLogger.Load().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	dsplugLogger.Load().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	dsplugLogger.Load().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	dsplugLogger.Load().Error(msg, args...)
}

func (l *DSPlugLogger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *DSPlugLogger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *DSPlugLogger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *DSPlugLogger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

func (l *DSPlugLogger) Enabled(level slog.Level) bool {
	return l.slogger.Enabled(context.Background(), level)
}

func (l *DSPlugLogger) With(args ...any) *DSPlugLogger {
	return &DSPlugLogger{slogger: l.slogger.With(args...)}
}

// badger.Logger

func (l *DSPlugLogger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.slogger.Error(msg)
}

func (l *DSPlugLogger) Warningf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.slogger.Warn(msg)
}

func (l *DSPlugLogger) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.slogger.Info(msg)
}

func (l *DSPlugLogger) Debugf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.slogger.Debug(msg)
}

// genericPairs turns loosely typed key/value lists (hclog style) into slog attributes.
func genericPairs(v ...interface{}) []any {
	pairs := make([]any, 0, len(v)/2)
	for i := 0; i < len(v)-1; i += 2 {
		key, ok := v[i].(string)
		if !ok {
			key = fmt.Sprintf("non_string_key_%d", i)
		}
		pairs = append(pairs, slog.Any(key, v[i+1]))
	}
	return pairs
}

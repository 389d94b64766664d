package logger

import (
	"io"
	"log"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// HCLogAdapter adapts DSPlugLogger to the hashicorp/go-hclog.Logger interface.
// go-plugin clients and servers log through it so that remote plugin output
// ends up in the host's slog stream.
type HCLogAdapter struct {
	logger  *DSPlugLogger
	name    string
	implied []interface{}
}

// NewHCLogAdapter creates a new adapter wrapping the default logger.
func NewHCLogAdapter(name string) hclog.Logger {
	if name == "" {
		name = "plugin"
	}
	return &HCLogAdapter{
		logger: Default(),
		name:   name,
	}
}

func (h *HCLogAdapter) args(args []interface{}) []any {
	pairs := genericPairs(append(h.implied, args...)...)
	return append(pairs, slog.String("logger", h.name))
}

func (h *HCLogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.Debug(msg, args...)
	case hclog.Info, hclog.NoLevel, hclog.DefaultLevel:
		h.Info(msg, args...)
	case hclog.Warn:
		h.Warn(msg, args...)
	case hclog.Error:
		h.Error(msg, args...)
	}
}

func (h *HCLogAdapter) Trace(msg string, args ...interface{}) {
	h.logger.Debug(msg, h.args(args)...)
}

func (h *HCLogAdapter) Debug(msg string, args ...interface{}) {
	h.logger.Debug(msg, h.args(args)...)
}

func (h *HCLogAdapter) Info(msg string, args ...interface{}) {
	h.logger.Info(msg, h.args(args)...)
}

func (h *HCLogAdapter) Warn(msg string, args ...interface{}) {
	h.logger.Warn(msg, h.args(args)...)
}

func (h *HCLogAdapter) Error(msg string, args ...interface{}) {
	h.logger.Error(msg, h.args(args)...)
}

// IsTrace always reports false, slog has no trace level.
func (h *HCLogAdapter) IsTrace() bool {
	return false
}

func (h *HCLogAdapter) IsDebug() bool {
	return h.logger.Enabled(slog.LevelDebug)
}

func (h *HCLogAdapter) IsInfo() bool {
	return h.logger.Enabled(slog.LevelInfo)
}

func (h *HCLogAdapter) IsWarn() bool {
	return h.logger.Enabled(slog.LevelWarn)
}

func (h *HCLogAdapter) IsError() bool {
	return h.logger.Enabled(slog.LevelError)
}

func (h *HCLogAdapter) ImpliedArgs() []interface{} {
	return h.implied
}

// With creates a new logger carrying additional key/value pairs.
func (h *HCLogAdapter) With(args ...interface{}) hclog.Logger {
	implied := make([]interface{}, 0, len(h.implied)+len(args))
	implied = append(implied, h.implied...)
	implied = append(implied, args...)
	return &HCLogAdapter{
		logger:  h.logger,
		name:    h.name,
		implied: implied,
	}
}

func (h *HCLogAdapter) Name() string {
	return h.name
}

// Named creates a sub-logger, joining names with a dot.
func (h *HCLogAdapter) Named(name string) hclog.Logger {
	return &HCLogAdapter{
		logger:  h.logger,
		name:    h.name + "." + name,
		implied: h.implied,
	}
}

func (h *HCLogAdapter) ResetNamed(name string) hclog.Logger {
	return &HCLogAdapter{
		logger:  h.logger,
		name:    name,
		implied: h.implied,
	}
}

// SetLevel is a no-op, levels are driven by SetLogLevel.
func (h *HCLogAdapter) SetLevel(level hclog.Level) {}

func (h *HCLogAdapter) GetLevel() hclog.Level {
	switch {
	case h.logger.Enabled(slog.LevelDebug):
		return hclog.Debug
	case h.logger.Enabled(slog.LevelInfo):
		return hclog.Info
	case h.logger.Enabled(slog.LevelWarn):
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (h *HCLogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.Default()
}

func (h *HCLogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}

package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/metrics"
)

var (
	ErrInvalidHandle     = errors.New("invalid handle")
	ErrInvalidIndex      = errors.New("index out of range")
	ErrKindMismatch      = errors.New("control kind mismatch")
	ErrRealtimeViolation = errors.New("realtime contract violation")
	ErrMissingCallback   = errors.New("missing mandatory callback")
	ErrFinalized         = errors.New("plugin creation already finalized")
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateName     = errors.New("duplicate name")
)

type diagnosticKind struct {
	err  error
	kind string
}

var (
	kindsMu sync.RWMutex
	kinds   = []diagnosticKind{
		{ErrInvalidHandle, "invalid_handle"},
		{ErrInvalidIndex, "invalid_index"},
		{ErrKindMismatch, "kind_mismatch"},
		{ErrRealtimeViolation, "realtime_violation"},
		{ErrMissingCallback, "missing_callback"},
		{ErrFinalized, "finalized"},
		{ErrLimitExceeded, "limit_exceeded"},
		{ErrInvalidArgument, "invalid_argument"},
		{ErrDuplicateName, "duplicate_name"},
	}
)

// RegisterDiagnosticKind associates a sentinel error with the label used for
// it on the dsplug_diagnostics_total counter.
func RegisterDiagnosticKind(err error, kind string) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds = append(kinds, diagnosticKind{err: err, kind: kind})
}

// DiagnosticKind returns the label of the first registered sentinel err wraps,
// or "other".
func DiagnosticKind(err error) string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}

// Report publishes err on the diagnostic channel and returns it wrapped with op.
// A nil err is passed through.
func Report(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := DiagnosticKind(err)
	metrics.Diagnostics.WithLabelValues(kind).Inc()
	logger.Warn("DSPlug diagnostic",
		slog.String("op", op),
		slog.String("kind", kind),
		slog.Any("error", err))
	return fmt.Errorf("%s: %w", op, err)
}

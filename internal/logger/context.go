package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds iteration-scoped logging context for a single state
// controller dispatch.
type LogContext struct {
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	ObjectKind    string    // Controller object kind (network-segment, etc.)
	ObjectID      string    // Object identifier being reconciled
	ControllerState string  // Current controller state label
	Iteration     uint64    // Controller iteration number
	ProcessorID   string    // Worker/processor identity within the pool
	StateVersion  uint64    // Optimistic version of the persisted object
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for an object about to be dispatched.
func NewLogContext(objectKind, objectID string) *LogContext {
	return &LogContext{
		ObjectKind: objectKind,
		ObjectID:   objectID,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:         lc.TraceID,
		SpanID:          lc.SpanID,
		ObjectKind:      lc.ObjectKind,
		ObjectID:        lc.ObjectID,
		ControllerState: lc.ControllerState,
		Iteration:       lc.Iteration,
		ProcessorID:     lc.ProcessorID,
		StateVersion:    lc.StateVersion,
		StartTime:       lc.StartTime,
	}
}

// WithState returns a copy with the controller state and version set
func (lc *LogContext) WithState(state string, version uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ControllerState = state
		clone.StateVersion = version
	}
	return clone
}

// WithIteration returns a copy with the iteration and processor id set
func (lc *LogContext) WithIteration(iteration uint64, processorID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Iteration = iteration
		clone.ProcessorID = processorID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

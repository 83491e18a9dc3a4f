package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single broker
// request: the connection and correlation IDs that tie its log lines
// together, and the action/key/worker/pool it touches, when applicable.
type LogContext struct {
	CorrelationID string    // server-generated id, unique per accepted frame
	ConnectionID  string    // identifies the underlying stream connection
	Action        string    // request action: get, set, lease, ...
	Key           string    // value-store key, when the action touches one
	WorkerID      string    // lease worker id, when the action touches one
	PoolKey       string    // lease pool key, when the action touches one
	StartTime     time.Time // for duration calculation
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

// NewLogContext creates a new LogContext for a connection.
func NewLogContext(connectionID string) *LogContext {
	return &LogContext{
		ConnectionID: connectionID,
		StartTime:    time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithAction returns a copy with the action set
func (lc *LogContext) WithAction(action string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Action = action
	}
	return clone
}

// WithCorrelation returns a copy with the correlation id set
func (lc *LogContext) WithCorrelation(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.CorrelationID = id
	}
	return clone
}

// WithKey returns a copy with the store key set
func (lc *LogContext) WithKey(key string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Key = key
	}
	return clone
}

// WithLease returns a copy with the lease pool/worker set
func (lc *LogContext) WithLease(poolKey, workerID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.PoolKey = poolKey
		clone.WorkerID = workerID
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

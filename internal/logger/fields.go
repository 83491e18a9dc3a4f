package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the broker.
// Use these keys consistently so log aggregation and querying stay stable
// across handlers, the sweeper, and the lifecycle controller.
const (
	// ========================================================================
	// Request identity
	// ========================================================================
	KeyCorrelationID = "correlation_id" // per-request id, monotonic suffix on a wall-clock prefix
	KeyConnectionID  = "connection_id"  // identifies the underlying stream connection
	KeyAction        = "action"         // request action: get, set, lease, ...
	KeyResult        = "result"         // "success" or "error"
	KeyErrorToken    = "error_token"    // wire error token (not_found, ttl_required, ...)

	// ========================================================================
	// Value store
	// ========================================================================
	KeyKey        = "key"        // value-store key
	KeyTTLMs      = "ttl_ms"     // requested or resolved TTL in milliseconds
	KeyCompressed = "compressed" // whether the value is a client-compressed blob
	KeyValueBytes = "value_bytes"

	// ========================================================================
	// Lease allocator
	// ========================================================================
	KeyPoolKey       = "pool_key"
	KeyWorkerID      = "worker_id"
	KeyAssignedValue = "assigned_value"

	// ========================================================================
	// Transport & lifecycle
	// ========================================================================
	KeyEndpoint  = "endpoint"
	KeyDraining  = "draining"
	KeyInFlight  = "in_flight"
	KeyUptimeMs  = "uptime_ms"
	KeyChildPID  = "child_pid"
	KeySignal    = "signal"
	KeyAuthError = "auth_error"

	// ========================================================================
	// Generic
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyCount      = "count"

	KeyHealthStatus     = "status"
	KeyPrevHealthStatus = "previous_status"
)

// CorrelationID returns a slog.Attr for the per-request correlation id.
func CorrelationID(id string) slog.Attr { return slog.String(KeyCorrelationID, id) }

// ConnectionID returns a slog.Attr for the connection identifier.
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

// Action returns a slog.Attr for the request action name.
func Action(action string) slog.Attr { return slog.String(KeyAction, action) }

// Result returns a slog.Attr for the operation result ("success"/"error").
func Result(ok bool) slog.Attr {
	if ok {
		return slog.String(KeyResult, "success")
	}
	return slog.String(KeyResult, "error")
}

// ErrorToken returns a slog.Attr for the wire error token.
func ErrorToken(token string) slog.Attr { return slog.String(KeyErrorToken, token) }

// Key returns a slog.Attr for a value-store key.
func Key(key string) slog.Attr { return slog.String(KeyKey, key) }

// TTLMs returns a slog.Attr for a TTL in milliseconds.
func TTLMs(ttl int64) slog.Attr { return slog.Int64(KeyTTLMs, ttl) }

// Compressed returns a slog.Attr for the compressed flag.
func Compressed(compressed bool) slog.Attr { return slog.Bool(KeyCompressed, compressed) }

// ValueBytes returns a slog.Attr for a value size in bytes.
func ValueBytes(n int) slog.Attr { return slog.Int(KeyValueBytes, n) }

// PoolKey returns a slog.Attr for a lease pool key.
func PoolKey(pool string) slog.Attr { return slog.String(KeyPoolKey, pool) }

// WorkerID returns a slog.Attr for a lease worker id.
func WorkerID(id string) slog.Attr { return slog.String(KeyWorkerID, id) }

// AssignedValue returns a slog.Attr for an allocated lease integer.
func AssignedValue(v int) slog.Attr { return slog.Int(KeyAssignedValue, v) }

// Endpoint returns a slog.Attr for the socket/pipe endpoint path.
func Endpoint(path string) slog.Attr { return slog.String(KeyEndpoint, path) }

// Draining returns a slog.Attr for the draining flag.
func Draining(draining bool) slog.Attr { return slog.Bool(KeyDraining, draining) }

// InFlight returns a slog.Attr for the in-flight request count.
func InFlight(n uint64) slog.Attr { return slog.Uint64(KeyInFlight, n) }

// UptimeMs returns a slog.Attr for process uptime in milliseconds.
func UptimeMs(ms int64) slog.Attr { return slog.Int64(KeyUptimeMs, ms) }

// ChildPID returns a slog.Attr for a supervised child process id.
func ChildPID(pid int) slog.Attr { return slog.Int(KeyChildPID, pid) }

// Signal returns a slog.Attr for a received OS signal name.
func Signal(sig string) slog.Attr { return slog.String(KeySignal, sig) }

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error. Returns a zero Attr for a nil error
// so it can be passed unconditionally and dropped by the text handler.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Count returns a slog.Attr for a generic count.
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }

// HealthStatus returns a slog.Attr for the current health status.
func HealthStatus(status string) slog.Attr { return slog.String(KeyHealthStatus, status) }

// PrevHealthStatus returns a slog.Attr for the health status before a transition.
func PrevHealthStatus(status string) slog.Attr { return slog.String(KeyPrevHealthStatus, status) }

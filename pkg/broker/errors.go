// Package broker holds the types and error vocabulary shared by the wire
// protocol, the in-memory stores, and the lease allocator: the wire request
// and response envelopes, and the short lowercase error tokens every failure
// response carries.
package broker

import "errors"

// Token is one of the short lowercase tokens the broker puts in a failure
// response's "error" field. It implements error so store/lease code can
// return it directly; the transport never needs to translate.
type Token string

func (t Token) Error() string { return string(t) }

// Input-shape errors.
const (
	ErrInvalidJSON            Token = "invalid_json"
	ErrUnknownAction          Token = "unknown_action"
	ErrTooLarge               Token = "too_large"
	ErrKeyAndWorkerRequired   Token = "key_and_worker_required"
	ErrWorkerRequired         Token = "worker_required"
)

// Policy errors.
const (
	ErrTTLRequired         Token = "ttl_required"
	ErrInvalidTTL          Token = "invalid_ttl"
	ErrMaxItems            Token = "max_items"
	ErrWorkerAlreadyLeased Token = "worker_already_has_lease"
)

// Lookup errors.
const (
	ErrNotFound Token = "not_found"
	ErrExpired  Token = "expired"
)

// Security errors.
const (
	ErrAuthFailed Token = "auth_failed"
)

// Lifecycle errors. already_running never reaches the wire; it is raised to
// the caller of Start.
const (
	ErrDraining       Token = "draining"
	ErrAlreadyRunning Token = "already_running"
)

// TokenOf extracts the wire token from err, or "internal_error" if err is
// not a Token. Handlers are expected to only ever return Token values or
// nil, so "internal_error" indicates a bug, not a reachable client path.
func TokenOf(err error) string {
	if err == nil {
		return ""
	}
	var t Token
	if errors.As(err, &t) {
		return string(t)
	}
	return "internal_error"
}

// Package store implements the broker's in-memory value table: a map of
// key to (value, expiry, compressed-flag) guarded by a single mutex, with
// size and capacity policy enforced at write time.
package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/marmos91/statebroker/pkg/broker"
)

// Metrics is the optional, nil-safe hook the store uses to record
// operation and compression counters. A nil Metrics is valid; every method
// on Store checks before calling into it.
type Metrics interface {
	ObserveSet(compressed bool, beforeSize, afterSize int64)
	ObserveExpired(n int)
}

// Entry is one value-store row. Compressed values are opaque blobs the
// store never inspects; Value is stored exactly as received.
type Entry struct {
	Value      json.RawMessage
	ExpiresAt  int64 // wall-clock ms
	Compressed bool
}

// Config carries the policy knobs the store enforces on every set.
type Config struct {
	DefaultTTLMs   int64
	RequireTTL     bool
	MaxItems       int // 0 disables the cap
	MaxValueBytes  int
}

// Store is the value table. Zero value is not usable; construct with New.
type Store struct {
	cfg     Config
	metrics Metrics

	mu      sync.Mutex
	entries map[string]Entry
}

// New constructs an empty Store. metrics may be nil.
func New(cfg Config, metrics Metrics) *Store {
	return &Store{
		cfg:     cfg,
		metrics: metrics,
		entries: make(map[string]Entry),
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Get returns the entry for key if present and unexpired. An expired entry
// is deleted as a side effect and reported as broker.ErrExpired.
func (s *Store) Get(key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, broker.ErrNotFound
	}
	if e.ExpiresAt <= nowMs() {
		delete(s.entries, key)
		return Entry{}, broker.ErrExpired
	}
	return e, nil
}

// SetInput bundles the fields set needs beyond key; ttlMs and compressed
// mirror the wire request's optional fields.
type SetInput struct {
	Value      json.RawMessage
	TTLMs      *int64
	Compressed bool
	BeforeSize *int64
	AfterSize  *int64
}

// valueByteLen measures a wire value against MaxValueBytes the way the
// value-store contract defines "size": for a JSON string, the decoded
// string's own byte length (not the quoted/escaped wire encoding); for any
// other JSON shape, the serialized byte length as received.
func valueByteLen(raw json.RawMessage) int {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return len(s)
	}
	return len(raw)
}

// Set validates and stores value for key. See the value-store contract for
// the exact TTL/size/capacity rules this enforces.
func (s *Store) Set(key string, in SetInput) error {
	ttl, err := s.resolveTTL(in.TTLMs)
	if err != nil {
		return err
	}

	if valueByteLen(in.Value) > s.cfg.MaxValueBytes {
		return broker.ErrTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entries[key]
	if !exists && s.cfg.MaxItems > 0 && s.countLocked() >= s.cfg.MaxItems {
		return broker.ErrMaxItems
	}

	s.entries[key] = Entry{
		Value:      in.Value,
		ExpiresAt:  nowMs() + ttl,
		Compressed: in.Compressed,
	}

	if s.metrics != nil {
		if in.Compressed && in.BeforeSize != nil && in.AfterSize != nil {
			s.metrics.ObserveSet(true, *in.BeforeSize, *in.AfterSize)
		} else {
			s.metrics.ObserveSet(false, 0, int64(len(in.Value)))
		}
	}

	return nil
}

func (s *Store) resolveTTL(ttlMs *int64) (int64, error) {
	switch {
	case ttlMs == nil:
		if s.cfg.RequireTTL {
			return 0, broker.ErrTTLRequired
		}
		return s.cfg.DefaultTTLMs, nil
	case *ttlMs < 0:
		return 0, broker.ErrInvalidTTL
	case *ttlMs == 0:
		if s.cfg.RequireTTL {
			return 0, broker.ErrInvalidTTL
		}
		return s.cfg.DefaultTTLMs, nil
	default:
		return *ttlMs, nil
	}
}

// Del removes key unconditionally and always succeeds.
func (s *Store) Del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ListItem is one row of a list response: presence plus expiry, no value.
type ListItem struct {
	ExpiresAt int64
	HasValue  bool
}

// List returns every non-expired key with its expiry. Expired rows are
// silently skipped, not evicted (that is the sweeper's job).
func (s *Store) List() map[string]ListItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMs()
	out := make(map[string]ListItem, len(s.entries))
	for k, e := range s.entries {
		if e.ExpiresAt <= now {
			continue
		}
		out[k] = ListItem{ExpiresAt: e.ExpiresAt, HasValue: true}
	}
	return out
}

// Count returns the number of non-expired entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *Store) countLocked() int {
	now := nowMs()
	n := 0
	for _, e := range s.entries {
		if e.ExpiresAt > now {
			n++
		}
	}
	return n
}

// ApproxBytes returns a monotone, non-authoritative estimate of store size
// in bytes: the sum of each non-expired key's length and its value's
// serialised length. It exists only to give the stats block a number that
// grows and shrinks with the store; it is not an exact accounting.
func (s *Store) ApproxBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMs()
	var total int64
	for k, e := range s.entries {
		if e.ExpiresAt <= now {
			continue
		}
		total += int64(len(k)) + int64(len(e.Value))
	}
	return total
}

// Sweep deletes every entry with expires_at <= now and returns the count
// removed, for the sweeper's items_expired counter.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMs()
	removed := 0
	for k, e := range s.entries {
		if e.ExpiresAt <= now {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 && s.metrics != nil {
		s.metrics.ObserveExpired(removed)
	}
	return removed
}

// Clear empties the store. Called by the lifecycle controller on stop.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

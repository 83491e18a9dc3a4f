package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/marmos91/statebroker/pkg/broker"
)

func ttl(ms int64) *int64 { return &ms }

func newTestStore(cfg Config) *Store {
	if cfg.MaxValueBytes == 0 {
		cfg.MaxValueBytes = 1 << 20
	}
	return New(cfg, nil)
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(Config{DefaultTTLMs: 1000})

	if err := s.Set("foo", SetInput{Value: json.RawMessage(`"bar"`), TTLMs: ttl(60000)}); err != nil {
		t.Fatalf("set: %v", err)
	}

	e, err := s.Get("foo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(e.Value) != `"bar"` {
		t.Fatalf("value = %s, want \"bar\"", e.Value)
	}

	s.Del("foo")
	if _, err := s.Get("foo"); err != broker.ErrNotFound {
		t.Fatalf("get after del = %v, want not_found", err)
	}
}

func TestGetExpired(t *testing.T) {
	s := newTestStore(Config{})
	if err := s.Set("t", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(1)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := s.Get("t"); err != broker.ErrExpired {
		t.Fatalf("get = %v, want expired", err)
	}
	// the expired read evicted the entry; a second get reports not_found
	if _, err := s.Get("t"); err != broker.ErrNotFound {
		t.Fatalf("second get = %v, want not_found", err)
	}
}

func TestRequireTTL(t *testing.T) {
	s := newTestStore(Config{RequireTTL: true, DefaultTTLMs: 1000})

	if err := s.Set("k", SetInput{Value: json.RawMessage(`1`)}); err != broker.ErrTTLRequired {
		t.Fatalf("no ttl = %v, want ttl_required", err)
	}
	if err := s.Set("k", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(0)}); err != broker.ErrInvalidTTL {
		t.Fatalf("zero ttl = %v, want invalid_ttl", err)
	}
	if err := s.Set("k", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(-1)}); err != broker.ErrInvalidTTL {
		t.Fatalf("negative ttl = %v, want invalid_ttl", err)
	}
	if err := s.Set("k", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(1)}); err != nil {
		t.Fatalf("positive ttl = %v, want ok", err)
	}
}

func TestDefaultTTLWhenNotRequired(t *testing.T) {
	s := newTestStore(Config{RequireTTL: false, DefaultTTLMs: 60000})
	if err := s.Set("k", SetInput{Value: json.RawMessage(`1`)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, err := s.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.ExpiresAt <= nowMs() {
		t.Fatalf("expected future expiry")
	}
}

func TestTooLarge(t *testing.T) {
	s := newTestStore(Config{MaxValueBytes: 4})
	err := s.Set("k", SetInput{Value: json.RawMessage(`"toolong"`), TTLMs: ttl(1000)})
	if err != broker.ErrTooLarge {
		t.Fatalf("set = %v, want too_large", err)
	}
}

func TestStringSizeMeasuredByDecodedBytes(t *testing.T) {
	// "foo" decodes to 3 bytes but is 5 bytes on the wire (quotes included).
	// The cap must be checked against the decoded length, not the quoted
	// JSON encoding, so this must be accepted right at the boundary.
	s := newTestStore(Config{MaxValueBytes: 3})
	if err := s.Set("k", SetInput{Value: json.RawMessage(`"foo"`), TTLMs: ttl(1000)}); err != nil {
		t.Fatalf("set = %v, want nil (decoded length 3 fits MaxValueBytes 3)", err)
	}

	if err := s.Set("k2", SetInput{Value: json.RawMessage(`"foob"`), TTLMs: ttl(1000)}); err != broker.ErrTooLarge {
		t.Fatalf("set = %v, want too_large (decoded length 4 exceeds MaxValueBytes 3)", err)
	}
}

func TestNonStringSizeMeasuredBySerializedBytes(t *testing.T) {
	// Non-string JSON shapes have no "decoded" form distinct from the wire
	// bytes, so the cap applies to the serialized value as received.
	s := newTestStore(Config{MaxValueBytes: 7})
	if err := s.Set("k", SetInput{Value: json.RawMessage(`{"a":1}`), TTLMs: ttl(1000)}); err != nil {
		t.Fatalf("set = %v, want nil (serialized length 7 fits MaxValueBytes 7)", err)
	}
	if err := s.Set("k2", SetInput{Value: json.RawMessage(`{"a":12}`), TTLMs: ttl(1000)}); err != broker.ErrTooLarge {
		t.Fatalf("set = %v, want too_large (serialized length 8 exceeds MaxValueBytes 7)", err)
	}
}

func TestMaxItemsCapExemptsUpdates(t *testing.T) {
	s := newTestStore(Config{MaxItems: 2, DefaultTTLMs: 60000})

	if err := s.Set("a", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(60000)}); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := s.Set("b", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(60000)}); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if err := s.Set("c", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(60000)}); err != broker.ErrMaxItems {
		t.Fatalf("set c = %v, want max_items", err)
	}
	// updating an existing key is exempt from the cap
	if err := s.Set("a", SetInput{Value: json.RawMessage(`2`), TTLMs: ttl(60000)}); err != nil {
		t.Fatalf("update a: %v", err)
	}
}

func TestListOmitsExpiredAndValues(t *testing.T) {
	s := newTestStore(Config{})
	_ = s.Set("live", SetInput{Value: json.RawMessage(`"x"`), TTLMs: ttl(60000)})
	_ = s.Set("dead", SetInput{Value: json.RawMessage(`"y"`), TTLMs: ttl(1)})
	time.Sleep(10 * time.Millisecond)

	items := s.List()
	if _, ok := items["dead"]; ok {
		t.Fatalf("list included expired key")
	}
	item, ok := items["live"]
	if !ok {
		t.Fatalf("list missing live key")
	}
	if !item.HasValue {
		t.Fatalf("expected HasValue true")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	s := newTestStore(Config{})
	_ = s.Set("a", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(1)})
	_ = s.Set("b", SetInput{Value: json.RawMessage(`1`), TTLMs: ttl(60000)})
	time.Sleep(10 * time.Millisecond)

	n := s.Sweep()
	if n != 1 {
		t.Fatalf("swept %d entries, want 1", n)
	}
	if s.Count() != 1 {
		t.Fatalf("count after sweep = %d, want 1", s.Count())
	}
}

func TestCompressedFlagRoundTrips(t *testing.T) {
	s := newTestStore(Config{})
	if err := s.Set("k", SetInput{Value: json.RawMessage(`"blob"`), TTLMs: ttl(60000), Compressed: true}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, err := s.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !e.Compressed {
		t.Fatalf("expected compressed flag to round-trip")
	}
}

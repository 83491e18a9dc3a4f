//go:build !windows

package client

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/statebroker/pkg/auth"
	"github.com/marmos91/statebroker/pkg/lease"
	"github.com/marmos91/statebroker/pkg/metrics"
	"github.com/marmos91/statebroker/pkg/protocol"
	"github.com/marmos91/statebroker/pkg/store"
)

func startTestServer(t *testing.T, secret string) string {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "broker.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	reg := metrics.New()
	st := store.New(store.Config{DefaultTTLMs: 60_000, MaxValueBytes: 1 << 20}, reg)
	lt := lease.New(lease.Config{DefaultTTLMs: 60_000}, reg.ForLease())
	a := auth.New(secret)
	state := &protocol.State{}
	p := protocol.New(protocol.Config{MaxRequestBytes: 1 << 20}, st, lt, a, reg, state)

	go p.Accept(ln)

	return sockPath
}

func TestClientPing(t *testing.T) {
	sockPath := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Endpoint: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestClientSetGetRoundTrip(t *testing.T) {
	sockPath := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Endpoint: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ttl := 60 * time.Second
	if err := c.Set("foo", "bar", SetOptions{TTL: &ttl}); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, compressed, err := c.Get("foo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if compressed {
		t.Fatalf("expected uncompressed value")
	}
	var got string
	if err := json.Unmarshal(value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != "bar" {
		t.Fatalf("expected bar, got %q", got)
	}
}

func TestClientCompressionRoundTrip(t *testing.T) {
	sockPath := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Endpoint: sockPath, CompressionThreshold: 8})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	big := make([]byte, 1024)
	for i := range big {
		big[i] = 'x'
	}
	if err := c.Set("blob", string(big), SetOptions{}); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, compressed, err := c.Get("blob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !compressed {
		t.Fatalf("expected compressed value")
	}
	decoded, err := Decompress("blob", value)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	var got string
	if err := json.Unmarshal(decoded, &got); err != nil {
		t.Fatalf("unmarshal decompressed: %v", err)
	}
	if got != string(big) {
		t.Fatalf("decompressed value mismatch")
	}
}

func TestClientAuthSigning(t *testing.T) {
	sockPath := startTestServer(t, "supersecret")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Endpoint: sockPath, Secret: "supersecret"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Ping(); err != nil {
		t.Fatalf("ping with valid secret: %v", err)
	}
}

func TestClientLeaseThenRelease(t *testing.T) {
	sockPath := startTestServer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Endpoint: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	v, err := c.Lease("workers", "w1", nil)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected first lease to be 0, got %d", v)
	}

	released, err := c.Release("w1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatalf("expected released=true")
	}
}

func TestDialFailsFastWhenNothingListening(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, Config{Endpoint: filepath.Join(dir, "nope.sock"), ConnectTimeout: 150 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected dial to a nonexistent endpoint to fail")
	}
}

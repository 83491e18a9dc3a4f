// Package client is the broker's Go client library: connect-with-retry,
// request/response framing over the same newline-delimited JSON wire
// contract the server speaks, optional gzip+base64 compression above a
// configured threshold, and HMAC request signing when a secret is set.
package client

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/statebroker/pkg/auth"
	"github.com/marmos91/statebroker/pkg/broker"
)

// connectSchedule is the fixed backoff schedule Dial retries connection
// attempts on: 50, 100, 200, 400, 800ms, bounded by the overall
// connect timeout.
var connectSchedule = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
}

// DefaultConnectTimeout is the overall budget Dial allows connection
// attempts (including backoff sleeps) before giving up.
const DefaultConnectTimeout = 5 * time.Second

// Config carries a Client's connection and policy settings.
type Config struct {
	Endpoint             string // unix socket path or Windows named pipe path
	Secret               string // empty disables HMAC signing
	ConnectTimeout       time.Duration
	CompressionThreshold int // 0 disables client-side compression
}

// Client is a connection to one broker endpoint. The wire protocol is one
// request, one response per line over a single stream, so concurrent calls
// on one Client are serialised by an internal mutex; callers needing
// requests in parallel should pool multiple Clients.
type Client struct {
	cfg  Config
	auth *auth.Authenticator

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to cfg.Endpoint, retrying on the fixed backoff schedule
// until ConnectTimeout elapses.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	c := &Client{cfg: cfg, auth: auth.New(cfg.Secret)}

	deadline := time.Now().Add(cfg.ConnectTimeout)
	var lastErr error
	for attempt := 0; ; attempt++ {
		conn, err := dialEndpoint(cfg.Endpoint)
		if err == nil {
			c.conn = conn
			c.reader = bufio.NewReader(conn)
			return c, nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			break
		}

		wait := connectSchedule[len(connectSchedule)-1]
		if attempt < len(connectSchedule) {
			wait = connectSchedule[attempt]
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, lastErr)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) call(req broker.Request) (broker.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(req)
	if err != nil {
		return broker.Response{}, fmt.Errorf("marshal request: %w", err)
	}

	if c.auth.Enabled() {
		tag := c.auth.Sign(raw)
		raw, err = withHMAC(raw, tag)
		if err != nil {
			return broker.Response{}, fmt.Errorf("attach hmac: %w", err)
		}
	}

	raw = append(raw, '\n')
	if _, err := c.conn.Write(raw); err != nil {
		return broker.Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return broker.Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp broker.Response
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		return broker.Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

// withHMAC appends a "hmac" field carrying tag to a marshaled request,
// signed by auth.Authenticator.Sign over raw exactly as marshaled (raw
// itself never carries a placeholder hmac field, since broker.Request's
// HMAC field is left unset by callers here).
func withHMAC(raw []byte, tag string) ([]byte, error) {
	tagJSON, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	// raw is a marshaled broker.Request, always a non-empty object ending in
	// '}': splice the member in before it so every other byte stays as signed.
	out := make([]byte, 0, len(raw)+len(tagJSON)+len(`,"hmac":`))
	out = append(out, raw[:len(raw)-1]...)
	out = append(out, `,"hmac":`...)
	out = append(out, tagJSON...)
	out = append(out, '}')
	return out, nil
}

// Ping round-trips a ping request and returns the server's reported time.
func (c *Client) Ping() (int64, error) {
	resp, err := c.call(broker.Request{Action: "ping"})
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, broker.Token(resp.Error)
	}
	if resp.Pong == nil {
		return 0, fmt.Errorf("ping response missing pong")
	}
	return *resp.Pong, nil
}

// Get fetches key's value. The returned bool reports whether the value was
// stored with client-side compression; callers must Decompress it
// themselves if so.
func (c *Client) Get(key string) (json.RawMessage, bool, error) {
	resp, err := c.call(broker.Request{Action: "get", Key: key})
	if err != nil {
		return nil, false, err
	}
	if !resp.OK {
		return nil, false, broker.Token(resp.Error)
	}
	compressed := resp.Compressed != nil && *resp.Compressed
	return resp.Value, compressed, nil
}

// SetOptions mirrors the wire request's optional set fields.
type SetOptions struct {
	TTL *time.Duration
}

// Set stores value under key, applying client-side gzip+base64 compression
// when cfg.CompressionThreshold is set and value's marshaled size exceeds
// it. The only local TTL check is for a negative opts.TTL, which returns
// invalid_ttl without a round trip. The client has no require_ttl setting
// and never returns ttl_required itself: a nil opts.TTL is sent as-is and
// the server's require_ttl policy decides.
func (c *Client) Set(key string, value any, opts SetOptions) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	var ttlMs *int64
	if opts.TTL != nil {
		if *opts.TTL < 0 {
			return broker.ErrInvalidTTL
		}
		ms := opts.TTL.Milliseconds()
		ttlMs = &ms
	}

	req := broker.Request{Action: "set", Key: key, Value: raw, TTL: ttlMs}

	if c.cfg.CompressionThreshold > 0 && len(raw) > c.cfg.CompressionThreshold {
		compressed, err := compressValue(raw)
		if err != nil {
			return fmt.Errorf("compress value: %w", err)
		}
		encoded, err := json.Marshal(compressed.encoded)
		if err != nil {
			return fmt.Errorf("marshal compressed value: %w", err)
		}
		req.Value = encoded
		req.Compressed = broker.BoolPtr(true)
		req.BeforeSize = broker.Int64Ptr(int64(len(raw)))
		req.AfterSize = broker.Int64Ptr(int64(len(compressed.encoded)))
	}

	resp, err := c.call(req)
	if err != nil {
		return err
	}
	if !resp.OK {
		return broker.Token(resp.Error)
	}
	return nil
}

// Del removes key unconditionally.
func (c *Client) Del(key string) error {
	resp, err := c.call(broker.Request{Action: "del", Key: key})
	if err != nil {
		return err
	}
	if !resp.OK {
		return broker.Token(resp.Error)
	}
	return nil
}

// List returns every non-expired key with its expiry.
func (c *Client) List() (map[string]broker.ListItem, error) {
	resp, err := c.call(broker.Request{Action: "list"})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, broker.Token(resp.Error)
	}
	return resp.Items, nil
}

// Lease requests or renews a lease for workerID in poolKey, returning the
// assigned integer.
func (c *Client) Lease(poolKey, workerID string, ttl *time.Duration) (int, error) {
	var ttlMs *int64
	if ttl != nil {
		ms := ttl.Milliseconds()
		ttlMs = &ms
	}
	resp, err := c.call(broker.Request{Action: "lease", Key: poolKey, WorkerID: workerID, TTL: ttlMs})
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, broker.Token(resp.Error)
	}
	var v int
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return 0, fmt.Errorf("unmarshal assigned value: %w", err)
	}
	return v, nil
}

// Release releases workerID's lease, if any, reporting whether one was
// present.
func (c *Client) Release(workerID string) (bool, error) {
	resp, err := c.call(broker.Request{Action: "release", WorkerID: workerID})
	if err != nil {
		return false, err
	}
	if !resp.OK {
		return false, broker.Token(resp.Error)
	}
	return resp.Released != nil && *resp.Released, nil
}

// Stats fetches the broker's stats snapshot.
func (c *Client) Stats() (broker.StatsSnapshot, error) {
	resp, err := c.call(broker.Request{Action: "stats"})
	if err != nil {
		return broker.StatsSnapshot{}, err
	}
	if !resp.OK || resp.Stats == nil {
		return broker.StatsSnapshot{}, broker.Token(resp.Error)
	}
	return *resp.Stats, nil
}

// Health fetches the broker's health snapshot.
func (c *Client) Health() (broker.HealthSnapshot, error) {
	resp, err := c.call(broker.Request{Action: "health"})
	if err != nil {
		return broker.HealthSnapshot{}, err
	}
	if resp.HealthSnapshot == nil {
		return broker.HealthSnapshot{}, broker.Token(resp.Error)
	}
	// The wire "ok" member decodes into Response.OK, which shadows the
	// embedded snapshot's own OK field; copy it across.
	snap := *resp.HealthSnapshot
	snap.OK = resp.OK
	return snap, nil
}

// compressedValue wraps the base64-encoded gzip output this client writes
// for compressed sets; the server stores it opaquely and the receiving
// client's Decompress reverses it.
type compressedValue struct {
	encoded string
}

func compressValue(raw []byte) (compressedValue, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return compressedValue{}, err
	}
	if err := w.Close(); err != nil {
		return compressedValue{}, err
	}
	return compressedValue{encoded: base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
}

// versionMismatchHint is appended to every decompression error: a failure
// here almost always means the broker and client were built from
// different versions and disagree on the compressed envelope's shape.
const versionMismatchHint = "broker and client may be at different versions"

// Decompress reverses compressValue's encoding, for values Get reports as
// compressed. key identifies which value failed, so a caller juggling many
// keys can tell which one broke without re-threading it itself.
func Decompress(key string, value json.RawMessage) ([]byte, error) {
	var encoded string
	if err := json.Unmarshal(value, &encoded); err != nil {
		return nil, fmt.Errorf("unmarshal compressed envelope for key %q: %w (%s)", key, err, versionMismatchHint)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode for key %q: %w (%s)", key, err, versionMismatchHint)
	}
	r, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("gzip reader for key %q: %w (%s)", key, err, versionMismatchHint)
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("gzip decompress for key %q: %w (%s)", key, err, versionMismatchHint)
	}
	return out.Bytes(), nil
}

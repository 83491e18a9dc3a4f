// Package auth implements the broker's optional HMAC-SHA256 request
// authenticator. Verification runs over the exact wire bytes of a frame
// with the "hmac":"…" field textually excised, not a re-serialisation of
// the decoded JSON, so both sides never need to agree on key order.
package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/marmos91/statebroker/pkg/broker"
)

// hmacField matches a "hmac":"<value>" member together with at most one
// adjoining comma. The leftmost match wins, so when hmac is the first
// member its trailing comma is taken, when it is a middle or last member
// its leading comma is taken, and when it is the frame's only member no
// comma is taken; a match never consumes both separators. The pattern is
// textual and does not track nesting depth.
var hmacField = regexp.MustCompile(
	`"hmac"\s*:\s*"(?:[^"\\]|\\.)*",|,"hmac"\s*:\s*"(?:[^"\\]|\\.)*"|"hmac"\s*:\s*"(?:[^"\\]|\\.)*"`,
)

// Authenticator verifies frames against a shared secret. A nil secret
// (empty byte slice) means authentication is disabled; callers should
// check Enabled() before invoking Verify on the hot path.
type Authenticator struct {
	secret []byte
}

// New constructs an Authenticator. An empty secret disables verification.
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// Verify checks raw (the exact bytes of one frame, without its trailing
// newline) against the top-level hmac field decoded from raw. It never panics on
// malformed input; any failure to parse or decode the supplied hmac is a
// rejection.
func (a *Authenticator) Verify(raw []byte) error {
	var carrier struct {
		HMAC json.RawMessage `json:"hmac"`
	}
	if err := json.Unmarshal(raw, &carrier); err != nil {
		return broker.ErrAuthFailed
	}

	var supplied string
	if err := json.Unmarshal(carrier.HMAC, &supplied); err != nil {
		return broker.ErrAuthFailed
	}

	suppliedMAC, err := hex.DecodeString(supplied)
	if err != nil {
		return broker.ErrAuthFailed
	}

	expectedMAC := a.sign(StripHMACField(raw))
	if len(suppliedMAC) != len(expectedMAC) || !hmac.Equal(suppliedMAC, expectedMAC) {
		return broker.ErrAuthFailed
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 over a frame that carries no
// "hmac" field of its own (the client builds the frame, strips any
// placeholder with StripHMACField, then signs). Used by the client library
// so both sides compute the same tag the same way.
func (a *Authenticator) Sign(raw []byte) string {
	return hex.EncodeToString(a.sign(raw))
}

func (a *Authenticator) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// StripHMACField removes the first textual "hmac":"…" member (and one
// adjoining comma, as hmacField describes) from raw, leaving the remaining bytes otherwise
// untouched. This is a textual excision, not a JSON re-serialisation;
// client and server must both use it so they sign identical bytes.
func StripHMACField(raw []byte) []byte {
	loc := hmacField.FindIndex(raw)
	if loc == nil {
		return raw
	}
	out := make([]byte, 0, len(raw)-(loc[1]-loc[0]))
	out = append(out, raw[:loc[0]]...)
	out = append(out, raw[loc[1]:]...)
	return bytes.TrimSpace(out)
}
